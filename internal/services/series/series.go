// Package series turns history snapshots into dense chart rows.
package series

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
)

const (
	// TimestampLayout x-axis label, UTC hour:minute.
	TimestampLayout = "15:04"
	// DateLayout date caption of the newest snapshot.
	DateLayout = "2006-01-02"
)

// Build returns one row per snapshot in chronological order.
// snapshots are newest first. Every row carries all selected symbols,
// a symbol missing from a snapshot is charted as zero.
func Build(snapshots []domain.HistorySnapshot, selected []string) []domain.ChartRow {
	rows := make([]domain.ChartRow, 0, len(snapshots))

	for i := len(snapshots) - 1; i >= 0; i-- {
		s := snapshots[i]

		aprs := make(map[string]decimal.Decimal, len(s.Data))
		for _, e := range s.Data {
			aprs[e.Symbol] = e.APR
		}

		values := make(map[string]decimal.Decimal, len(selected))
		for _, symbol := range selected {
			if v, ok := aprs[symbol]; ok {
				values[symbol] = v
			} else {
				values[symbol] = decimal.Zero
			}
		}

		rows = append(rows, domain.ChartRow{
			Timestamp: s.CreatedAt.UTC().Format(TimestampLayout),
			Values:    values,
		})
	}

	return rows
}

// LatestDate returns the UTC date of the newest snapshot, or "" without snapshots.
func LatestDate(snapshots []domain.HistorySnapshot) string {
	if len(snapshots) == 0 {
		return ""
	}
	return snapshots[0].CreatedAt.UTC().Format(DateLayout)
}
