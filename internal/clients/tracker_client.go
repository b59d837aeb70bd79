package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/pkg/retrier"
)

// Backend endpoints consumed by the tracker.
const (
	EndpointFundingTable  = "/api/common-funding-table"
	EndpointTopArbitrage  = "/api/top-arbitrage"
	EndpointHistory       = "/api/history/arbitrage"
	EndpointHourlyHistory = "/api/history/arbitrage/hourly"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 16 << 20
)

// ErrFetchFailed is matched by every error returned from TrackerClient.
var ErrFetchFailed = errors.New("fetch failed")

// FetchError describes a failed backend read.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrFetchFailed so callers can match any fetch failure.
func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// Temporary reports whether repeating the request may succeed.
func (e *FetchError) Temporary() bool {
	return e.Status == 0 || e.Status >= http.StatusInternalServerError
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

// TrackerClient reads snapshots from the funding tracker backend.
type TrackerClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	retrier    *retrier.Retrier
	logger     *zap.Logger
	retries    int
}

// Option configures TrackerClient.
type Option func(*TrackerClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *TrackerClient) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *TrackerClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries enables retrying of transport failures and 5xx answers.
func WithRetries(n int) Option {
	return func(c *TrackerClient) {
		c.retries = n
	}
}

// NewTrackerClient creates a client for the backend rooted at baseURL.
func NewTrackerClient(baseURL string, logger *zap.Logger, opts ...Option) (*TrackerClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid backend url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &TrackerClient{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.retrier = retrier.New(
		retrier.WithMaxRetries(c.retries),
		retrier.WithInitialInterval(500*time.Millisecond),
		retrier.WithMaxInterval(10*time.Second),
		retrier.WithRetryIf(isTemporary),
		retrier.WithOnRetry(func(attempt int, err error) {
			c.logger.Warn("retrying backend request", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	return c, nil
}

// BaseURL returns the backend root.
func (c *TrackerClient) BaseURL() string {
	return c.baseURL.String()
}

// FundingTable fetches the funding rate comparison table.
func (c *TrackerClient) FundingTable(ctx context.Context) ([]domain.FundingRow, error) {
	return getJSON[[]domain.FundingRow](ctx, c, EndpointFundingTable, nil)
}

// TopArbitrage fetches the current top arbitrage opportunities.
func (c *TrackerClient) TopArbitrage(ctx context.Context) ([]domain.ArbitrageRow, error) {
	return getJSON[[]domain.ArbitrageRow](ctx, c, EndpointTopArbitrage, nil)
}

// History fetches arbitrage snapshots, newest first.
// limit <= 0 leaves the page size to the backend.
func (c *TrackerClient) History(ctx context.Context, limit int) ([]domain.HistorySnapshot, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": []string{strconv.Itoa(limit)}}
	}
	return getJSON[[]domain.HistorySnapshot](ctx, c, EndpointHistory, query)
}

// HourlyHistory fetches the top opportunity of every hour.
func (c *TrackerClient) HourlyHistory(ctx context.Context) ([]domain.HourlyBucket, error) {
	return getJSON[[]domain.HourlyBucket](ctx, c, EndpointHourlyHistory, nil)
}

func getJSON[T any](ctx context.Context, c *TrackerClient, endpoint string, query url.Values) (T, error) {
	return retrier.DoWithData(ctx, c.retrier, func(ctx context.Context) (T, error) {
		var out T
		status, err := c.get(ctx, endpoint, query, &out)
		if err != nil {
			return out, &FetchError{Endpoint: endpoint, Status: status, Err: err}
		}
		return out, nil
	})
}

func (c *TrackerClient) get(ctx context.Context, endpoint string, query url.Values, out any) (int, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + endpoint
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, errors.Errorf("unexpected response: %s", truncate(string(body), 256))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, decodeError{err: err}
	}

	return resp.StatusCode, nil
}

func isTemporary(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	var de decodeError
	if errors.As(fe.Err, &de) {
		return false
	}
	return fe.Temporary()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
