package pricing

import (
	"fmt"

	"cargopay/internal/domain"

	"github.com/shopspring/decimal"
)

// bidRatesMNT maps bid currencies to tögrög per unit. Transport bids settle
// against this fixed table rather than the live invoice rate feed.
var bidRatesMNT = map[domain.Currency]decimal.Decimal{
	domain.MNT: decimal.NewFromInt(1),
	domain.CNY: decimal.NewFromInt(485),
	domain.USD: decimal.NewFromInt(3450),
}

// ConvertBid converts a bid amount to the settlement currency.
func ConvertBid(amount decimal.Decimal, currency domain.Currency) (decimal.Decimal, error) {
	rate, ok := bidRatesMNT[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("unsupported bid currency: %s", currency)
	}
	return amount.Mul(rate), nil
}

// BidRate returns the fixed settlement rate for a bid currency.
func BidRate(currency domain.Currency) (decimal.Decimal, error) {
	rate, ok := bidRatesMNT[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("unsupported bid currency: %s", currency)
	}
	return rate, nil
}
