package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/state"
)

var (
	positive = lipgloss.AdaptiveColor{Light: "#2E9E4F", Dark: "#73F59F"}
	negative = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"}
	subtle   = lipgloss.AdaptiveColor{Light: "#9C9C9C", Dark: "#6C6C6C"}

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(negative)
	noteStyle   = lipgloss.NewStyle().Foreground(subtle)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		Headers(headers...)
}

// FundingTable renders the funding rates tab.
func FundingTable(rows []domain.FundingRow) string {
	t := newTable("Symbol", "Binance", "Bybit", "OKX", "Volume (Binance)")
	for _, r := range rows {
		t.Row(r.Symbol, FormatRate(r.Binance), FormatRate(r.Bybit), FormatRate(r.OKX), FormatVolume(r.VolumeBinance))
	}

	// cells keep the sign color of their rate
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if row < 0 || row >= len(rows) {
			return cellStyle
		}
		rate := rows[row]
		switch col {
		case 1:
			return signStyle(SignClass(rate.Binance))
		case 2:
			return signStyle(SignClass(rate.Bybit))
		case 3:
			return signStyle(SignClass(rate.OKX))
		}
		return cellStyle
	})
	return t.Render()
}

func signStyle(class string) lipgloss.Style {
	switch class {
	case ClassPositive:
		return cellStyle.Foreground(positive)
	case ClassNegative:
		return cellStyle.Foreground(negative)
	}
	return cellStyle
}

// ArbitrageTable renders the top arbitrage opportunities tab.
func ArbitrageTable(rows []domain.ArbitrageRow) string {
	t := newTable("Symbol", "Long", "Short", "APR")
	for _, r := range rows {
		t.Row(r.Symbol, exchangeCell(r.LongExchange), exchangeCell(r.ShortExchange), FormatAPR(r.APR))
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	return t.Render()
}

func exchangeCell(label string) string {
	name, rate, ok := SplitExchangeLabel(label)
	if !ok {
		return label
	}
	return name + " " + noteStyle.Render(rate)
}

// HourlyTable renders hourly average APR buckets.
func HourlyTable(buckets []domain.HourlyBucket) string {
	t := newTable("Hour (UTC)", "Symbol", "Avg APR")
	for _, b := range buckets {
		hour := b.Hour
		if ts, err := b.Time(); err == nil {
			hour = ts.Format("2006-01-02 15:04")
		}
		t.Row(hour, b.Symbol, FormatAPR(b.APR))
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	return t.Render()
}

// ChartTable renders the history chart as a table, one column per top symbol.
func ChartTable(symbols []string, rows []domain.ChartRow) string {
	t := newTable(append([]string{"Time (UTC)"}, symbols...)...)
	for _, r := range rows {
		cells := make([]string, 0, len(symbols)+1)
		cells = append(cells, r.Timestamp)
		for _, s := range symbols {
			cells = append(cells, FormatAPR(r.Values[s]))
		}
		t.Row(cells...)
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	return t.Render()
}

// Terminal renders every tab of v one after another.
func Terminal(v state.View) string {
	var b strings.Builder

	if v.Error != "" {
		b.WriteString(errorStyle.Render(v.Error))
		b.WriteString("\n")
	}

	b.WriteString(titleStyle.Render("Funding Rates"))
	b.WriteString("\n")
	b.WriteString(FundingTable(v.Funding))
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("Top Arbitrage Opportunities"))
	b.WriteString("\n")
	b.WriteString(ArbitrageTable(v.Arbitrage))
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("APR History"))
	b.WriteString("\n")
	if v.LatestDate != "" {
		b.WriteString(noteStyle.Render("Date (UTC): " + v.LatestDate))
		b.WriteString("\n")
	}
	if len(v.TopSymbols) == 0 {
		b.WriteString(noteStyle.Render("no history yet"))
		b.WriteString("\n")
	} else {
		b.WriteString(ChartTable(v.TopSymbols, v.Chart))
		b.WriteString("\n")
	}

	if len(v.Hourly) > 0 {
		b.WriteString(titleStyle.Render("Hourly Average APR"))
		b.WriteString("\n")
		b.WriteString(HourlyTable(v.Hourly))
		b.WriteString("\n")
	}

	b.WriteString(noteStyle.Render("Last updated: " + FormatLastUpdated(v.LastUpdated, nil)))
	b.WriteString("\n")
	return b.String()
}
