package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// backend timestamps come from SQLite CURRENT_TIMESTAMP or Python isoformat.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// ParseTimestamp parses a backend timestamp. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, errors.Errorf("unsupported timestamp format %q", s)
}

// APREntry arbitrage APR of one symbol inside a snapshot.
type APREntry struct {
	Symbol string          `json:"symbol"`
	APR    decimal.Decimal `json:"apr"`
}

// HistorySnapshot one timestamped capture of top arbitrage APR values.
type HistorySnapshot struct {
	ID        int64      `json:"id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Data      []APREntry `json:"data"`
}

// UnmarshalJSON accepts the backend created_at layouts.
func (h *HistorySnapshot) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        int64      `json:"id"`
		CreatedAt string     `json:"created_at"`
		Data      []APREntry `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	createdAt, err := ParseTimestamp(raw.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "decode created_at")
	}

	h.ID = raw.ID
	h.CreatedAt = createdAt
	h.Data = raw.Data
	return nil
}

// HourlyBucket top opportunity of one hour.
type HourlyBucket struct {
	Hour   string          `json:"hour"`
	Symbol string          `json:"symbol"`
	APR    decimal.Decimal `json:"apr"`
}

// Time parses Hour.
func (b HourlyBucket) Time() (time.Time, error) {
	return ParseTimestamp(b.Hour)
}

// Batch result of one full refresh.
type Batch struct {
	Funding   []FundingRow
	Arbitrage []ArbitrageRow
	History   []HistorySnapshot
}

// HistoryBatch result of a history tab fetch.
type HistoryBatch struct {
	Snapshots []HistorySnapshot
	Hourly    []HourlyBucket
}
