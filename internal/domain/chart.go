package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ChartRow one point in time of the APR history chart.
type ChartRow struct {
	Timestamp string
	Values    map[string]decimal.Decimal
}

// MarshalJSON flattens the row into {"timestamp": ..., "<symbol>": <number>}.
func (r ChartRow) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Values)+1)
	for symbol, v := range r.Values {
		flat[symbol] = v.InexactFloat64()
	}
	flat["timestamp"] = r.Timestamp

	return json.Marshal(flat)
}
