package internal

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundingtracker/config"
	"github.com/vadiminshakov/fundingtracker/internal/clients"
	"github.com/vadiminshakov/fundingtracker/internal/state"
)

func newBackend(t *testing.T, failArbitrage bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(clients.EndpointFundingTable, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","binance":0.01,"bybit":-0.02,"okx":null,"Volume (Binance)":1500000}]`))
	})
	mux.HandleFunc(clients.EndpointTopArbitrage, func(w http.ResponseWriter, r *http.Request) {
		if failArbitrage {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"symbol":"ETHUSDT","long_exchange":"bybit (-0.020000%)","short_exchange":"binance (0.010000%)","apr":32.85}]`))
	})
	mux.HandleFunc(clients.EndpointHistory, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":2,"created_at":"2024-05-01 10:05:00","data":[{"symbol":"ETHUSDT","apr":32.85},{"symbol":"SOLUSDT","apr":12.5}]},
			{"id":1,"created_at":"2024-05-01 10:00:00","data":[{"symbol":"ETHUSDT","apr":30}]}
		]`))
	})
	mux.HandleFunc(clients.EndpointHourlyHistory, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"hour":"2024-05-01T10:00:00","symbol":"ETHUSDT","apr":31.2}]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(apiURL string) config.Config {
	conf := config.Default()
	conf.APIURL = apiURL
	conf.RequestTimeout = 5 * time.Second
	return conf
}

func TestNewTracker_InvalidURL(t *testing.T) {
	_, err := NewTracker(testConfig("ftp://nowhere"), zap.NewNop())
	assert.Error(t, err)
}

func TestTracker_RunOnce(t *testing.T) {
	backend := newBackend(t, false)
	tr, err := NewTracker(testConfig(backend.URL), zap.NewNop())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, tr.RunOnce(context.Background(), &out))

	snap := tr.Store.Snapshot()
	assert.False(t, snap.Loading)
	assert.False(t, snap.HistoryLoading)
	assert.Empty(t, snap.Error)
	require.Len(t, snap.History, 2)
	require.Len(t, snap.Hourly, 1)

	text := out.String()
	assert.Contains(t, text, "BTCUSDT")
	assert.Contains(t, text, "32.85%")
	assert.Contains(t, text, "Date (UTC): 2024-05-01")
	assert.Contains(t, text, "SOLUSDT")
}

func TestTracker_RunOnceBatchFailure(t *testing.T) {
	backend := newBackend(t, true)
	tr, err := NewTracker(testConfig(backend.URL), zap.NewNop())
	require.NoError(t, err)

	var out bytes.Buffer
	err = tr.RunOnce(context.Background(), &out)
	assert.ErrorIs(t, err, clients.ErrFetchFailed)

	snap := tr.Store.Snapshot()
	assert.Equal(t, state.BatchErrorMessage, snap.Error)
	assert.Empty(t, snap.Funding, "funding of a failed batch must not be applied")
	assert.Contains(t, out.String(), state.BatchErrorMessage)
}

func TestTracker_Run(t *testing.T) {
	backend := newBackend(t, false)

	// reserve a free port for the dashboard
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	conf := testConfig(backend.URL)
	conf.DashboardAddr = addr
	tr, err := NewTracker(conf, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool {
		return !tr.Store.Snapshot().Loading
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := http.Post("http://"+addr+"/api/tab?index=2", "", nil)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(tr.Store.Snapshot().Hourly) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("tracker did not stop")
	}
	assert.False(t, tr.Store.Mounted())
}
