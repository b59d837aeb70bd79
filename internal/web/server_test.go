package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/metrics"
	"github.com/vadiminshakov/fundingtracker/internal/state"
)

func loadedStore(t *testing.T) *state.Store {
	t.Helper()

	store := state.NewStore(zap.NewNop(), nil)
	seq := store.BeginBatch()
	require.True(t, store.Dispatch(state.BatchLoaded{
		Seq: seq,
		At:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Batch: domain.Batch{
			Funding: []domain.FundingRow{{
				Symbol:        "BTCUSDT",
				Binance:       decimal.NewNullDecimal(decimal.RequireFromString("0.01")),
				Bybit:         decimal.NewNullDecimal(decimal.RequireFromString("-0.02")),
				VolumeBinance: decimal.NewNullDecimal(decimal.NewFromInt(1500000)),
			}},
			Arbitrage: []domain.ArbitrageRow{{
				Symbol:        "BTCUSDT",
				LongExchange:  "bybit (-0.020000%)",
				ShortExchange: "binance (0.010000%)",
				APR:           decimal.RequireFromString("32.85"),
			}},
			History: []domain.HistorySnapshot{
				{
					CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
					Data:      []domain.APREntry{{Symbol: "A", APR: decimal.NewFromInt(10)}, {Symbol: "B", APR: decimal.NewFromInt(30)}},
				},
				{
					CreatedAt: time.Date(2024, 5, 1, 9, 55, 0, 0, time.UTC),
					Data:      []domain.APREntry{{Symbol: "B", APR: decimal.NewFromInt(20)}},
				},
			},
		},
	}))
	return store
}

type fakeTabs struct {
	selected []domain.Tab
	err      error
}

func (f *fakeTabs) SelectTab(tab domain.Tab) error {
	if f.err != nil {
		return f.err
	}
	if !tab.Valid() {
		return state.ErrInvalidTab
	}
	f.selected = append(f.selected, tab)
	return nil
}

func TestServer_Index(t *testing.T) {
	srv := NewServer(":0", state.NewStore(nil, nil), &fakeTabs{}, nil, 5, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "chart.js")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_View(t *testing.T) {
	srv := NewServer(":0", loadedStore(t), &fakeTabs{}, nil, 1, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got viewPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.False(t, got.Loading)
	assert.True(t, got.HistoryLoading)
	assert.Empty(t, got.Error)
	assert.Equal(t, []string{"Funding Rates", "Top Arbitrage", "History Chart"}, got.Tabs)

	require.Len(t, got.Funding, 1)
	assert.Equal(t, rateCell{Text: "0.0100%", Class: "positive"}, got.Funding[0].Binance)
	assert.Equal(t, rateCell{Text: "-0.0200%", Class: "negative"}, got.Funding[0].Bybit)
	assert.Equal(t, rateCell{Text: "-"}, got.Funding[0].OKX)
	assert.Equal(t, "$1,500,000", got.Funding[0].Volume)

	require.Len(t, got.Arbitrage, 1)
	assert.Equal(t, exchangeCell{Name: "bybit", Rate: "-0.020000%"}, got.Arbitrage[0].Long)
	assert.Equal(t, "32.85%", got.Arbitrage[0].APR)

	assert.Equal(t, []string{"B"}, got.Chart.Symbols)
	assert.Equal(t, []string{"hsl(0, 70%, 50%)"}, got.Chart.Colors)
	assert.Equal(t, "2024-05-01", got.Chart.Date)
	require.Len(t, got.Chart.Rows, 2)
}

func TestServer_ViewRawChartRows(t *testing.T) {
	srv := NewServer(":0", loadedStore(t), &fakeTabs{}, nil, 5, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/view", nil))

	var raw struct {
		Chart struct {
			Rows []map[string]any `json:"rows"`
		} `json:"chart"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw.Chart.Rows, 2)

	// oldest first, missing symbols are zero
	assert.Equal(t, "09:55", raw.Chart.Rows[0]["timestamp"])
	assert.Equal(t, float64(0), raw.Chart.Rows[0]["A"])
	assert.Equal(t, float64(20), raw.Chart.Rows[0]["B"])
	assert.Equal(t, "10:00", raw.Chart.Rows[1]["timestamp"])
	assert.Equal(t, float64(30), raw.Chart.Rows[1]["B"])
}

func TestServer_ViewGzip(t *testing.T) {
	srv := NewServer(":0", loadedStore(t), &fakeTabs{}, nil, 5, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestServer_Tab(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		err      error
		wantCode int
	}{
		{name: "history", query: "index=2", wantCode: http.StatusNoContent},
		{name: "not a number", query: "index=x", wantCode: http.StatusBadRequest},
		{name: "out of range", query: "index=7", wantCode: http.StatusBadRequest},
		{name: "stopped", query: "index=1", err: assert.AnError, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tabs := &fakeTabs{err: tt.err}
			srv := NewServer(":0", state.NewStore(nil, nil), tabs, nil, 5, nil)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tab?"+tt.query, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	t.Run("get not allowed", func(t *testing.T) {
		srv := NewServer(":0", state.NewStore(nil, nil), &fakeTabs{}, nil, 5, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tab?index=1", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New()
	m.ObserveBatch("batch", time.Now(), nil)
	srv := NewServer(":0", state.NewStore(nil, m), &fakeTabs{}, m.Registry(), 5, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "batches_total")
}

func TestServer_ViewStream(t *testing.T) {
	store := loadedStore(t)
	srv := NewServer(":0", store, &fakeTabs{}, nil, 5, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/view/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() viewPayload {
		t.Helper()
		var sawEvent bool
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimSpace(line)
			if line == "event: view" {
				sawEvent = true
				continue
			}
			if sawEvent && strings.HasPrefix(line, "data: ") {
				var v viewPayload
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v))
				return v
			}
		}
	}

	first := next()
	assert.Equal(t, store.Version(), first.Version)
	assert.Equal(t, int(domain.TabFunding), first.ActiveTab)

	require.NoError(t, store.SelectTab(domain.TabArbitrage))
	second := next()
	assert.Equal(t, int(domain.TabArbitrage), second.ActiveTab)
	assert.Greater(t, second.Version, first.Version)
}
