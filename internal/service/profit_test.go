package service

import (
	"testing"

	"fundwatch/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func holding(code, cost, share string) models.Holding {
	return models.Holding{
		Code:  code,
		Name:  "F" + code,
		Cost:  decimal.RequireFromString(cost),
		Share: decimal.RequireFromString(share),
	}
}

func TestComputeProfit_Scenario(t *testing.T) {
	h := holding("000311", "1.2345", "1000.00")
	p := ComputeProfit(h, models.Valuation{Value: "1.3000", Rate: "+0.45%", Kind: models.ValuationLive})

	assert.Equal(t, "1234.50", p.TotalCost.StringFixed(2))
	assert.Equal(t, "65.50", p.FloatProfit.StringFixed(2))
	assert.Equal(t, "5.31", p.ProfitRate.StringFixed(2))
}

func TestComputeProfit_TotalCostRounding(t *testing.T) {
	cases := []struct{ cost, share, want string }{
		{"1.2345", "1000", "1234.50"},
		{"0.0001", "0.01", "0.00"},
		{"2.3456", "333.33", "781.86"},
		{"1.0005", "0.50", "0.50"},
	}
	for _, c := range cases {
		p := ComputeProfit(holding("000001", c.cost, c.share), models.UnknownValuation())
		want := decimal.RequireFromString(c.cost).Mul(decimal.RequireFromString(c.share)).Round(2)
		assert.Equal(t, c.want, p.TotalCost.StringFixed(2), "%s x %s", c.cost, c.share)
		assert.True(t, p.TotalCost.Equal(want))
	}
}

func TestComputeProfit_NoDataCountsAsZero(t *testing.T) {
	p := ComputeProfit(holding("000311", "1.2345", "1000"), models.UnknownValuation())
	assert.Equal(t, "-1234.50", p.FloatProfit.StringFixed(2))
	assert.Equal(t, "-100.00", p.ProfitRate.StringFixed(2))
}

func TestComputeProfit_ZeroCostGuard(t *testing.T) {
	// cost x share rounds to 0.00
	p := ComputeProfit(holding("000001", "0.0001", "0.01"), models.Valuation{Value: "2.0000"})
	assert.True(t, p.TotalCost.IsZero())
	assert.True(t, p.ProfitRate.IsZero())
}

func TestSumProfit(t *testing.T) {
	a := ComputeProfit(holding("000311", "1.2345", "1000"), models.Valuation{Value: "1.3000"})
	b := ComputeProfit(holding("110022", "2.0000", "500"), models.Valuation{Value: "1.9000"})

	total := SumProfit([]Profit{a, b})
	assert.Equal(t, "2234.50", total.TotalCost.StringFixed(2))
	assert.Equal(t, "15.50", total.FloatProfit.StringFixed(2))
	assert.Equal(t, "0.69", total.ProfitRate.StringFixed(2))
}

func TestSumProfit_Empty(t *testing.T) {
	total := SumProfit(nil)
	assert.True(t, total.TotalCost.IsZero())
	assert.True(t, total.FloatProfit.IsZero())
	assert.True(t, total.ProfitRate.IsZero())
}
