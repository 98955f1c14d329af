package service

import (
	"fundwatch/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Profit is the profit of one holding, or the aggregate over several.
// All amounts are rounded to 2 decimals.
type Profit struct {
	TotalCost   decimal.Decimal
	FloatProfit decimal.Decimal
	ProfitRate  decimal.Decimal
}

// ComputeProfit values a holding at v. A valuation without a usable value
// counts as zero, which shows up as a loss of the full cost.
func ComputeProfit(h models.Holding, v models.Valuation) Profit {
	current, err := decimal.NewFromString(v.Value)
	if err != nil {
		current = decimal.Zero
	}
	totalCost := h.Cost.Mul(h.Share).Round(2)
	floatProfit := current.Sub(h.Cost).Mul(h.Share).Round(2)
	return Profit{
		TotalCost:   totalCost,
		FloatProfit: floatProfit,
		ProfitRate:  rateOf(floatProfit, totalCost),
	}
}

// SumProfit aggregates per-holding profits.
func SumProfit(items []Profit) Profit {
	totalCost, floatProfit := decimal.Zero, decimal.Zero
	for _, p := range items {
		totalCost = totalCost.Add(p.TotalCost)
		floatProfit = floatProfit.Add(p.FloatProfit)
	}
	return Profit{
		TotalCost:   totalCost,
		FloatProfit: floatProfit,
		ProfitRate:  rateOf(floatProfit, totalCost),
	}
}

// rateOf is profit/cost in percent, 0 when cost is not positive.
func rateOf(profit, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return profit.Div(cost).Mul(hundred).Round(2)
}
