package models

// NoData marks a valuation field the upstream did not provide.
const NoData = "N/A"

type ValuationKind string

const (
	ValuationLive    ValuationKind = "live"
	ValuationSettled ValuationKind = "settled"
	ValuationUnknown ValuationKind = "unknown"
)

// Valuation is the current value of a fund as read from the upstream site.
// It is produced per request and never stored.
type Valuation struct {
	Value string        `json:"value"`
	Rate  string        `json:"rate"`
	Kind  ValuationKind `json:"kind"`
	// AsOf is the estimate time for live estimates and the settlement date
	// for settled values.
	AsOf string `json:"as_of,omitempty"`
}

// UnknownValuation returns the all-NoData result.
func UnknownValuation() Valuation {
	return Valuation{Value: NoData, Rate: NoData, Kind: ValuationUnknown}
}

// DataType renders the kind tag exposed over HTTP.
func (v Valuation) DataType() string {
	switch v.Kind {
	case ValuationLive:
		return "live estimate"
	case ValuationSettled:
		if v.AsOf != "" {
			return "latest settled value (" + v.AsOf + ")"
		}
		return "latest settled value"
	default:
		return "unknown"
	}
}
