// Package fetcher joins concurrent backend reads into all-or-nothing batches.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/fundingtracker/internal/clients"
	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/metrics"
)

// Batch kinds used in logs and metrics.
const (
	KindBatch   = "batch"
	KindHistory = "history"
)

// DefaultHistoryLimit page size of the history tab fetch.
const DefaultHistoryLimit = 50

// ErrFetchFailed is matched by every error returned from Fetcher.
var ErrFetchFailed = clients.ErrFetchFailed

// BatchError failure of a whole batch. Partial results are never returned with it.
type BatchError struct {
	Kind      string
	RequestID string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.RequestID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Is reports ErrFetchFailed regardless of the underlying cause.
func (e *BatchError) Is(target error) bool { return target == ErrFetchFailed }

type snapshotSource interface {
	FundingTable(ctx context.Context) ([]domain.FundingRow, error)
	TopArbitrage(ctx context.Context) ([]domain.ArbitrageRow, error)
	History(ctx context.Context, limit int) ([]domain.HistorySnapshot, error)
	HourlyHistory(ctx context.Context) ([]domain.HourlyBucket, error)
}

// Fetcher issues the concurrent reads of one refresh.
type Fetcher struct {
	source            snapshotSource
	logger            *zap.Logger
	metrics           *metrics.Collector
	historyLimit      int
	batchHistoryLimit int
}

// Option configures Fetcher.
type Option func(*Fetcher)

// WithHistoryLimit sets the limit of the history tab fetch.
func WithHistoryLimit(n int) Option {
	return func(f *Fetcher) {
		f.historyLimit = n
	}
}

// WithBatchHistoryLimit sets the limit of the history read inside the main batch.
// Zero keeps the backend default.
func WithBatchHistoryLimit(n int) Option {
	return func(f *Fetcher) {
		f.batchHistoryLimit = n
	}
}

// WithMetrics records per-endpoint latency and batch outcomes.
func WithMetrics(m *metrics.Collector) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// New creates a Fetcher.
func New(source snapshotSource, logger *zap.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		source:       source,
		logger:       logger,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBatch reads funding, arbitrage and history together.
func (f *Fetcher) FetchBatch(ctx context.Context) (domain.Batch, error) {
	requestID := uuid.NewString()
	logger := f.logger.With(zap.String("kind", KindBatch), zap.String("request_id", requestID))
	start := time.Now()

	var batch domain.Batch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(read(gctx, f, clients.EndpointFundingTable, &batch.Funding, f.source.FundingTable))
	g.Go(read(gctx, f, clients.EndpointTopArbitrage, &batch.Arbitrage, f.source.TopArbitrage))
	g.Go(read(gctx, f, clients.EndpointHistory, &batch.History, func(ctx context.Context) ([]domain.HistorySnapshot, error) {
		return f.source.History(ctx, f.batchHistoryLimit)
	}))

	if err := g.Wait(); err != nil {
		f.metrics.ObserveBatch(KindBatch, time.Now(), err)
		logger.Error("batch fetch failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.Batch{}, &BatchError{Kind: KindBatch, RequestID: requestID, Err: errors.WithStack(err)}
	}

	f.metrics.ObserveBatch(KindBatch, time.Now(), nil)
	logger.Debug("batch fetched",
		zap.Duration("duration", time.Since(start)),
		zap.Int("funding_rows", len(batch.Funding)),
		zap.Int("arbitrage_rows", len(batch.Arbitrage)),
		zap.Int("snapshots", len(batch.History)))

	return batch, nil
}

// FetchHistory reads the history snapshots and hourly buckets together.
func (f *Fetcher) FetchHistory(ctx context.Context) (domain.HistoryBatch, error) {
	requestID := uuid.NewString()
	logger := f.logger.With(zap.String("kind", KindHistory), zap.String("request_id", requestID))
	start := time.Now()

	var batch domain.HistoryBatch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(read(gctx, f, clients.EndpointHistory, &batch.Snapshots, func(ctx context.Context) ([]domain.HistorySnapshot, error) {
		return f.source.History(ctx, f.historyLimit)
	}))
	g.Go(read(gctx, f, clients.EndpointHourlyHistory, &batch.Hourly, f.source.HourlyHistory))

	if err := g.Wait(); err != nil {
		f.metrics.ObserveBatch(KindHistory, time.Now(), err)
		logger.Error("history fetch failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.HistoryBatch{}, &BatchError{Kind: KindHistory, RequestID: requestID, Err: errors.WithStack(err)}
	}

	f.metrics.ObserveBatch(KindHistory, time.Now(), nil)
	logger.Debug("history fetched",
		zap.Duration("duration", time.Since(start)),
		zap.Int("snapshots", len(batch.Snapshots)),
		zap.Int("hourly_buckets", len(batch.Hourly)))

	return batch, nil
}

func read[T any](ctx context.Context, f *Fetcher, endpoint string, dst *T, fn func(context.Context) (T, error)) func() error {
	return func() error {
		start := time.Now()
		v, err := fn(ctx)
		f.metrics.ObserveRequest(endpoint, time.Since(start), err)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
