package pricing

import (
	"testing"

	"cargopay/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() domain.PlatformSettings {
	return domain.PlatformSettings{
		VatEnabled:        true,
		VatRate:           decimal.NewFromFloat(0.10),
		FeeRate:           decimal.NewFromFloat(0.05),
		MinFee:            decimal.NewFromInt(1000),
		MaxFee:            decimal.NewFromInt(500000),
		StorageFreeDays:   7,
		StoragePhase1Days: 7,
		StoragePhase1Rate: decimal.NewFromInt(500),
		StoragePhase2Rate: decimal.NewFromInt(1500),
		QPayFeeRate:       decimal.NewFromFloat(0.01),
	}
}

func weightRule(perKg float64) *domain.PricingRule {
	return &domain.PricingRule{
		Kind:       domain.RuleWeightVolume,
		PricePerKg: decimal.NewFromFloat(perKg),
		Currency:   domain.CNY,
	}
}

func TestQuote_WeightRuleWithVat(t *testing.T) {
	// 10kg at ¥12/kg, rate 485 -> 58,200₮ shipping, 5,820₮ VAT, 64,020₮ total.
	calc := NewCalculator(testSettings())

	q, err := calc.Quote(QuoteInput{
		Weight:       decimal.NewFromInt(10),
		Rule:         weightRule(12),
		ExchangeRate: decimal.NewFromInt(485),
	})
	require.NoError(t, err)

	assert.True(t, q.ShippingAmount.Equal(decimal.NewFromInt(58200)), "shipping = %s", q.ShippingAmount)
	assert.True(t, q.VatAmount.Equal(decimal.NewFromInt(5820)), "vat = %s", q.VatAmount)
	assert.True(t, q.TotalAmount.Equal(decimal.NewFromInt(64020)), "total = %s", q.TotalAmount)
}

func TestQuote_TotalInvariant(t *testing.T) {
	calc := NewCalculator(testSettings())

	q, err := calc.Quote(QuoteInput{
		Weight:           decimal.NewFromFloat(3.5),
		Rule:             weightRule(9.9),
		ExchangeRate:     decimal.NewFromFloat(484.73),
		InsuranceAmount:  decimal.NewFromInt(2500),
		CustomsAmount:    decimal.NewFromInt(1200),
		DaysSinceArrival: 10,
	})
	require.NoError(t, err)

	sum := q.ShippingAmount.Add(q.InsuranceAmount).Add(q.CustomsAmount).Add(q.StorageAmount).Add(q.VatAmount)
	assert.True(t, q.TotalAmount.Equal(sum))
}

func TestQuote_MissingRate(t *testing.T) {
	calc := NewCalculator(testSettings())

	_, err := calc.Quote(QuoteInput{
		Weight: decimal.NewFromInt(1),
		Rule:   weightRule(12),
	})
	assert.Error(t, err)
}

func TestQuote_NoRuleNoCustomPrice(t *testing.T) {
	calc := NewCalculator(testSettings())

	q, err := calc.Quote(QuoteInput{
		Weight:       decimal.NewFromInt(5),
		ExchangeRate: decimal.NewFromInt(485),
	})
	require.NoError(t, err)
	assert.True(t, q.ShippingAmount.IsZero())
}

func TestQuote_VolumePriceWins(t *testing.T) {
	perCbm := decimal.NewFromInt(800)
	rule := weightRule(12)
	rule.PricePerCbm = &perCbm

	calc := NewCalculator(testSettings())

	// 1 cbm (100x100x100cm), 1kg: volume price 800 beats weight price 12.
	q, err := calc.Quote(QuoteInput{
		Weight:       decimal.NewFromInt(1),
		Length:       decimal.NewFromInt(100),
		Width:        decimal.NewFromInt(100),
		Height:       decimal.NewFromInt(100),
		Rule:         rule,
		ExchangeRate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.True(t, q.ShippingAmount.Equal(decimal.NewFromInt(800)))
}

func TestQuote_MinimumClamp(t *testing.T) {
	rule := weightRule(12)
	rule.MinPrice = decimal.NewFromInt(50)

	calc := NewCalculator(testSettings())

	q, err := calc.Quote(QuoteInput{
		Weight:       decimal.NewFromFloat(0.5), // 6 < min 50
		Rule:         rule,
		ExchangeRate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.True(t, q.ShippingAmount.Equal(decimal.NewFromInt(50)))
}

func TestQuote_WeightMonotonicity(t *testing.T) {
	calc := NewCalculator(testSettings())

	prev := decimal.Zero
	for kg := 1; kg <= 50; kg++ {
		q, err := calc.Quote(QuoteInput{
			Weight:       decimal.NewFromInt(int64(kg)),
			Rule:         weightRule(12),
			ExchangeRate: decimal.NewFromInt(485),
		})
		require.NoError(t, err)
		assert.True(t, q.ShippingAmount.GreaterThanOrEqual(prev),
			"shipping decreased at %dkg: %s < %s", kg, q.ShippingAmount, prev)
		prev = q.ShippingAmount
	}
}

func TestStorageAmount(t *testing.T) {
	calc := NewCalculator(testSettings())

	tests := []struct {
		name string
		days int
		want int64
	}{
		{"within free days", 5, 0},
		{"last free day", 7, 0},
		{"first billable day", 8, 500},
		{"end of phase one", 14, 3500},
		{"into phase two", 16, 6500}, // 7*500 + 2*1500
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.StorageAmount(tt.days)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
		})
	}
}

func TestCommission_Clamp(t *testing.T) {
	calc := NewCalculator(testSettings())

	// Below floor.
	fee, vat := calc.Commission(decimal.NewFromInt(100))
	assert.True(t, fee.Equal(decimal.NewFromInt(1000)))
	assert.True(t, vat.Equal(decimal.NewFromInt(100)))

	// Within range: 5% of 100,000.
	fee, _ = calc.Commission(decimal.NewFromInt(100000))
	assert.True(t, fee.Equal(decimal.NewFromInt(5000)))

	// Above ceiling.
	fee, _ = calc.Commission(decimal.NewFromInt(100000000))
	assert.True(t, fee.Equal(decimal.NewFromInt(500000)))
}

func TestCarrierShare(t *testing.T) {
	// ¥10,000 bid over a 1,000kg batch, 10kg package:
	// 10,000*485/1,000*10 = 48,500₮.
	share, err := CarrierShare(
		decimal.NewFromInt(10000), domain.CNY,
		decimal.NewFromInt(1000), decimal.NewFromInt(10),
	)
	require.NoError(t, err)
	assert.True(t, share.Equal(decimal.NewFromInt(48500)), "share = %s", share)
}

func TestCarrierShare_ZeroWeight(t *testing.T) {
	share, err := CarrierShare(decimal.NewFromInt(10000), domain.CNY, decimal.Zero, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, share.IsZero())
}

func TestCarrierShare_UnsupportedCurrency(t *testing.T) {
	_, err := CarrierShare(decimal.NewFromInt(1), domain.Currency("JPY"), decimal.NewFromInt(10), decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestNetToCargo(t *testing.T) {
	fee := &domain.PlatformFee{
		ShippingAmount: decimal.NewFromInt(58200),
		ShippingVat:    decimal.NewFromInt(5820),
		StorageVat:     decimal.NewFromInt(0),
		FeeAmount:      decimal.NewFromInt(2910),
		FeeVat:         decimal.NewFromInt(291),
		QPayFee:        decimal.NewFromInt(640),
		CarrierAmount:  decimal.NewFromInt(48500),
	}
	got := NetToCargo(fee)
	assert.True(t, got.Equal(decimal.NewFromInt(11679)), "net = %s", got)
}

func TestCBM(t *testing.T) {
	got := CBM(decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.NewFromInt(100))
	assert.True(t, got.Equal(decimal.NewFromInt(1)))
}
