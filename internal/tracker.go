package internal

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/fundingtracker/config"
	"github.com/vadiminshakov/fundingtracker/internal/clients"
	"github.com/vadiminshakov/fundingtracker/internal/metrics"
	"github.com/vadiminshakov/fundingtracker/internal/render"
	"github.com/vadiminshakov/fundingtracker/internal/services/fetcher"
	"github.com/vadiminshakov/fundingtracker/internal/services/scheduler"
	"github.com/vadiminshakov/fundingtracker/internal/state"
	"github.com/vadiminshakov/fundingtracker/internal/web"
)

// Tracker wires the fetcher, the view store and the scheduler for one backend.
type Tracker struct {
	Config  config.Config
	Store   *state.Store
	Metrics *metrics.Collector

	fetcher   *fetcher.Fetcher
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

// NewTracker creates a new tracker instance.
func NewTracker(conf config.Config, logger *zap.Logger, opts ...clients.Option) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := metrics.New()

	clientOpts := append([]clients.Option{
		clients.WithTimeout(conf.RequestTimeout),
		clients.WithRetries(conf.Retries),
	}, opts...)
	client, err := clients.NewTrackerClient(conf.APIURL, logger.Named("client"), clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tracker client")
	}

	f := fetcher.New(client, logger.Named("fetcher"),
		fetcher.WithHistoryLimit(conf.HistoryLimit),
		fetcher.WithBatchHistoryLimit(conf.BatchHistoryLimit),
		fetcher.WithMetrics(m),
	)
	store := state.NewStore(logger.Named("state"), m)

	return &Tracker{
		Config:  conf,
		Store:   store,
		Metrics: m,
		fetcher: f,
		scheduler: scheduler.New(f, store, logger.Named("scheduler"),
			scheduler.WithInterval(conf.RefreshInterval),
			scheduler.WithRequestTimeout(conf.RequestTimeout),
		),
		logger: logger,
	}, nil
}

// Run starts the refresh schedule and serves the dashboard until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	handle := t.scheduler.Start(ctx)
	server := web.NewServer(t.Config.DashboardAddr, t.Store, handle, t.Metrics.Registry(), t.Config.TopK, t.logger.Named("web"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(t.Config.TLSDomains) > 0 {
			return server.StartWithAutoTLS(gctx, t.Config.TLSDomains, t.Config.TLSCacheDir)
		}
		return server.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		handle.Stop()
		t.Store.Unmount()
		t.logger.Info("tracker stopped")
		return nil
	})

	return g.Wait()
}

// RunOnce performs one main batch and one history fetch and prints the result to w.
func (t *Tracker) RunOnce(ctx context.Context, w io.Writer) error {
	batchSeq := t.Store.BeginBatch()
	historySeq := t.Store.BeginHistory()

	var batchErr, historyErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		batch, err := t.fetcher.FetchBatch(ctx)
		if err != nil {
			batchErr = err
			t.Store.Dispatch(state.BatchFailed{Seq: batchSeq, Err: err})
			return nil
		}
		t.Store.Dispatch(state.BatchLoaded{Seq: batchSeq, Batch: batch, At: time.Now()})
		return nil
	})
	g.Go(func() error {
		hist, err := t.fetcher.FetchHistory(ctx)
		if err != nil {
			historyErr = err
			t.Store.Dispatch(state.HistoryFailed{Seq: historySeq, Err: err})
			return nil
		}
		t.Store.Dispatch(state.HistoryLoaded{Seq: historySeq, Batch: hist})
		return nil
	})
	_ = g.Wait()

	if _, err := io.WriteString(w, render.Terminal(t.Store.Snapshot().Derive(t.Config.TopK))); err != nil {
		return errors.Wrap(err, "write output")
	}

	if batchErr != nil {
		return errors.Wrap(batchErr, "main batch")
	}
	if historyErr != nil {
		return errors.Wrap(historyErr, "history")
	}
	return nil
}
