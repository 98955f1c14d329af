package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Holding is a single fund position. Cost is kept to 4 decimal places and
// Share to 2.
type Holding struct {
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Cost  decimal.Decimal `json:"cost"`
	Share decimal.Decimal `json:"share"`
}

// MarshalJSON writes cost and share as plain JSON numbers with fixed
// precision so the stored file round-trips byte for byte.
func (h Holding) MarshalJSON() ([]byte, error) {
	type flat struct {
		Code  string      `json:"code"`
		Name  string      `json:"name"`
		Cost  json.Number `json:"cost"`
		Share json.Number `json:"share"`
	}
	return json.Marshal(flat{
		Code:  h.Code,
		Name:  h.Name,
		Cost:  json.Number(h.Cost.StringFixed(4)),
		Share: json.Number(h.Share.StringFixed(2)),
	})
}

type ProfitItem struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Cost         string `json:"cost"`
	Share        string `json:"share"`
	CurrentValue string `json:"current_value"`
	ChangeRate   string `json:"change_rate"`
	DataType     string `json:"data_type"`
	TotalCost    string `json:"total_cost"`
	FloatProfit  string `json:"float_profit"`
	ProfitRate   string `json:"profit_rate"`
	Error        string `json:"error,omitempty"`
}

type ProfitTotal struct {
	FundCount        int    `json:"fund_count"`
	TotalCost        string `json:"total_cost"`
	TotalFloatProfit string `json:"total_float_profit"`
	TotalProfitRate  string `json:"total_profit_rate"`
}

type ProfitReport struct {
	Funds []ProfitItem `json:"funds"`
	Total ProfitTotal  `json:"total"`
}

type SearchResult struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	CurrentValue string `json:"current_value"`
	ChangeRate   string `json:"change_rate"`
	DataType     string `json:"data_type"`
}
