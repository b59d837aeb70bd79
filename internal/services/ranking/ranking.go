// Package ranking selects the symbols to chart from the latest snapshot.
package ranking

import (
	"slices"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
)

// DefaultTopK number of symbols charted on the history tab.
const DefaultTopK = 5

// TopSymbols returns the symbols of the k entries with the highest APR.
// Ties keep input order.
func TopSymbols(entries []domain.APREntry, k int) []string {
	if len(entries) == 0 || k <= 0 {
		return []string{}
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b domain.APREntry) int {
		return b.APR.Cmp(a.APR)
	})

	if k > len(sorted) {
		k = len(sorted)
	}

	symbols := make([]string, 0, k)
	for _, e := range sorted[:k] {
		symbols = append(symbols, e.Symbol)
	}
	return symbols
}

// Latest ranks the newest snapshot. Snapshots are expected newest first.
func Latest(snapshots []domain.HistorySnapshot, k int) []string {
	if len(snapshots) == 0 {
		return []string{}
	}
	return TopSymbols(snapshots[0].Data, k)
}
