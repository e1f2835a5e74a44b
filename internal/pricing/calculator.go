// Package pricing computes per-package shipping cost, platform commission,
// storage charges, and the weight-proportional carrier split. All functions
// are pure; persistence-time rounding happens in the invoice engine.
package pricing

import (
	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"

	"github.com/shopspring/decimal"
)

var cbmDivisor = decimal.NewFromInt(1_000_000)

// Calculator evaluates pricing against one platform settings snapshot.
type Calculator struct {
	settings domain.PlatformSettings
}

func NewCalculator(settings domain.PlatformSettings) *Calculator {
	return &Calculator{settings: settings}
}

// QuoteInput collects everything needed to price a single package.
type QuoteInput struct {
	Weight           decimal.Decimal
	Length           decimal.Decimal
	Width            decimal.Decimal
	Height           decimal.Decimal
	Rule             *domain.PricingRule
	CustomPrice      *decimal.Decimal
	ExchangeRate     decimal.Decimal
	InsuranceAmount  decimal.Decimal
	CustomsAmount    decimal.Decimal
	DaysSinceArrival int
}

// Quote is the priced breakdown in the settlement currency.
type Quote struct {
	ShippingAmount  decimal.Decimal
	InsuranceAmount decimal.Decimal
	CustomsAmount   decimal.Decimal
	StorageAmount   decimal.Decimal
	VatAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
}

// CBM returns the volume in cubic meters from centimeter dimensions.
func CBM(length, width, height decimal.Decimal) decimal.Decimal {
	return length.Mul(width).Mul(height).Div(cbmDivisor)
}

// Quote prices a package. A missing exchange rate is a configuration error;
// a missing rule with no custom price yields a zero shipping amount, which
// callers must accept (and may flag).
func (c *Calculator) Quote(in QuoteInput) (*Quote, error) {
	if in.ExchangeRate.IsZero() {
		return nil, pkgerrors.ErrRateNotAvailable
	}

	price := shippingPrice(in)
	shipping := price.Mul(in.ExchangeRate)
	storage := c.StorageAmount(in.DaysSinceArrival)

	vat := decimal.Zero
	if c.settings.VatEnabled {
		// Insurance and customs are VAT-exempt.
		vat = shipping.Add(storage).Mul(c.settings.VatRate)
	}

	total := shipping.Add(in.InsuranceAmount).Add(in.CustomsAmount).Add(storage).Add(vat)

	return &Quote{
		ShippingAmount:  shipping,
		InsuranceAmount: in.InsuranceAmount,
		CustomsAmount:   in.CustomsAmount,
		StorageAmount:   storage,
		VatAmount:       vat,
		TotalAmount:     total,
	}, nil
}

// shippingPrice resolves the price in the rule's source currency.
func shippingPrice(in QuoteInput) decimal.Decimal {
	if in.CustomPrice != nil {
		return *in.CustomPrice
	}
	if in.Rule == nil {
		return decimal.Zero
	}

	switch in.Rule.Kind {
	case domain.RuleFixed, domain.RuleCategory:
		return in.Rule.FixedPrice
	case domain.RuleWeightVolume:
		byWeight := in.Weight.Mul(in.Rule.PricePerKg)
		price := byWeight
		if in.Rule.PricePerCbm != nil {
			byVolume := CBM(in.Length, in.Width, in.Height).Mul(*in.Rule.PricePerCbm)
			if byVolume.GreaterThan(price) {
				price = byVolume
			}
		}
		if price.LessThan(in.Rule.MinPrice) {
			price = in.Rule.MinPrice
		}
		return price
	}
	return decimal.Zero
}

// StorageAmount charges nothing within the free window, phase-1 rates for the
// next window, and phase-2 rates beyond it.
func (c *Calculator) StorageAmount(daysSinceArrival int) decimal.Decimal {
	s := c.settings
	extra := daysSinceArrival - s.StorageFreeDays
	if extra <= 0 {
		return decimal.Zero
	}

	if extra <= s.StoragePhase1Days {
		return decimal.NewFromInt(int64(extra)).Mul(s.StoragePhase1Rate)
	}

	phase1 := decimal.NewFromInt(int64(s.StoragePhase1Days)).Mul(s.StoragePhase1Rate)
	phase2 := decimal.NewFromInt(int64(extra - s.StoragePhase1Days)).Mul(s.StoragePhase2Rate)
	return phase1.Add(phase2)
}

// Commission is the platform fee on shipping revenue, clamped to the
// configured floor and ceiling. The returned vat is zero when VAT is off.
func (c *Calculator) Commission(shippingAmount decimal.Decimal) (fee, vat decimal.Decimal) {
	s := c.settings
	fee = shippingAmount.Mul(s.FeeRate)
	if fee.LessThan(s.MinFee) {
		fee = s.MinFee
	}
	if s.MaxFee.IsPositive() && fee.GreaterThan(s.MaxFee) {
		fee = s.MaxFee
	}
	if s.VatEnabled {
		vat = fee.Mul(s.VatRate)
	} else {
		vat = decimal.Zero
	}
	return fee, vat
}

// QPayFee is the payment-processing fee on the invoice total.
func (c *Calculator) QPayFee(totalAmount decimal.Decimal) decimal.Decimal {
	return totalAmount.Mul(c.settings.QPayFeeRate)
}

// CarrierShare apportions a won bid to one package by weight. A zero batch
// weight yields a zero share.
func CarrierShare(bidAmount decimal.Decimal, bidCurrency domain.Currency, batchWeight, packageWeight decimal.Decimal) (decimal.Decimal, error) {
	if batchWeight.IsZero() || packageWeight.IsZero() {
		return decimal.Zero, nil
	}
	converted, err := ConvertBid(bidAmount, bidCurrency)
	if err != nil {
		return decimal.Zero, err
	}
	return converted.Div(batchWeight).Mul(packageWeight), nil
}

// NetToCargo is the hub company's retained amount for one invoice.
func NetToCargo(fee *domain.PlatformFee) decimal.Decimal {
	return fee.ShippingAmount.
		Add(fee.ShippingVat).
		Add(fee.StorageVat).
		Sub(fee.FeeAmount).
		Sub(fee.FeeVat).
		Sub(fee.QPayFee).
		Sub(fee.CarrierAmount)
}
