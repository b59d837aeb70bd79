package state

import (
	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/services/ranking"
	"github.com/vadiminshakov/fundingtracker/internal/services/series"
)

// View is ViewState plus the data derived for the history chart.
type View struct {
	ViewState
	TopSymbols []string
	Chart      []domain.ChartRow
	LatestDate string
}

// Derive ranks the newest snapshot and builds the chart for its top k symbols.
func (s ViewState) Derive(k int) View {
	top := ranking.Latest(s.History, k)
	return View{
		ViewState:  s,
		TopSymbols: top,
		Chart:      series.Build(s.History, top),
		LatestDate: series.LatestDate(s.History),
	}
}
