package web

import (
	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/render"
	"github.com/vadiminshakov/fundingtracker/internal/state"
)

// viewPayload is the JSON shape consumed by the dashboard page.
type viewPayload struct {
	Version        uint64         `json:"version"`
	ActiveTab      int            `json:"active_tab"`
	Tabs           []string       `json:"tabs"`
	Loading        bool           `json:"loading"`
	HistoryLoading bool           `json:"history_loading"`
	HourlyLoading  bool           `json:"hourly_loading"`
	Error          string         `json:"error,omitempty"`
	LastUpdated    string         `json:"last_updated"`
	Funding        []fundingCells `json:"funding"`
	Arbitrage      []arbCells     `json:"arbitrage"`
	Hourly         []hourlyCells  `json:"hourly"`
	Chart          chartPayload   `json:"chart"`
}

type rateCell struct {
	Text  string `json:"text"`
	Class string `json:"class,omitempty"`
}

type fundingCells struct {
	Symbol  string   `json:"symbol"`
	Binance rateCell `json:"binance"`
	Bybit   rateCell `json:"bybit"`
	OKX     rateCell `json:"okx"`
	Volume  string   `json:"volume"`
}

type exchangeCell struct {
	Name string `json:"name"`
	Rate string `json:"rate,omitempty"`
}

type arbCells struct {
	Symbol string       `json:"symbol"`
	Long   exchangeCell `json:"long"`
	Short  exchangeCell `json:"short"`
	APR    string       `json:"apr"`
}

type hourlyCells struct {
	Hour   string `json:"hour"`
	Symbol string `json:"symbol"`
	APR    string `json:"apr"`
}

type chartPayload struct {
	Date     string            `json:"date,omitempty"`
	Symbols  []string          `json:"symbols"`
	Colors   []string          `json:"colors"`
	Rows     []domain.ChartRow `json:"rows"`
	Disabled bool              `json:"disabled"`
}

func newViewPayload(v state.View, version uint64) viewPayload {
	p := viewPayload{
		Version:        version,
		ActiveTab:      int(v.ActiveTab),
		Tabs:           []string{domain.TabFunding.String(), domain.TabArbitrage.String(), domain.TabHistory.String()},
		Loading:        v.Loading,
		HistoryLoading: v.HistoryLoading,
		HourlyLoading:  v.HourlyLoading,
		Error:          v.Error,
		LastUpdated:    render.FormatLastUpdated(v.LastUpdated, nil),
		Funding:        make([]fundingCells, 0, len(v.Funding)),
		Arbitrage:      make([]arbCells, 0, len(v.Arbitrage)),
		Hourly:         make([]hourlyCells, 0, len(v.Hourly)),
		Chart: chartPayload{
			Date:     v.LatestDate,
			Symbols:  v.TopSymbols,
			Colors:   make([]string, len(v.TopSymbols)),
			Rows:     v.Chart,
			Disabled: len(v.TopSymbols) == 0,
		},
	}
	if p.Chart.Rows == nil {
		p.Chart.Rows = []domain.ChartRow{}
	}

	for i := range v.TopSymbols {
		p.Chart.Colors[i] = render.LineColor(i)
	}

	for _, r := range v.Funding {
		p.Funding = append(p.Funding, fundingCells{
			Symbol:  r.Symbol,
			Binance: rateCell{Text: render.FormatRate(r.Binance), Class: render.SignClass(r.Binance)},
			Bybit:   rateCell{Text: render.FormatRate(r.Bybit), Class: render.SignClass(r.Bybit)},
			OKX:     rateCell{Text: render.FormatRate(r.OKX), Class: render.SignClass(r.OKX)},
			Volume:  render.FormatVolume(r.VolumeBinance),
		})
	}

	for _, r := range v.Arbitrage {
		p.Arbitrage = append(p.Arbitrage, arbCells{
			Symbol: r.Symbol,
			Long:   splitCell(r.LongExchange),
			Short:  splitCell(r.ShortExchange),
			APR:    render.FormatAPR(r.APR),
		})
	}

	for _, b := range v.Hourly {
		hour := b.Hour
		if ts, err := b.Time(); err == nil {
			hour = ts.Format("2006-01-02 15:04")
		}
		p.Hourly = append(p.Hourly, hourlyCells{Hour: hour, Symbol: b.Symbol, APR: render.FormatAPR(b.APR)})
	}

	return p
}

func splitCell(label string) exchangeCell {
	name, rate, _ := render.SplitExchangeLabel(label)
	return exchangeCell{Name: name, Rate: rate}
}
