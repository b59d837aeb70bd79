// Package scheduler drives periodic refreshes and the lazy history tab fetch.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/state"
)

// DefaultInterval main refresh period.
const DefaultInterval = 5 * time.Minute

// ErrStopped is returned by a Handle after Stop.
var ErrStopped = errors.New("scheduler stopped")

type snapshotFetcher interface {
	FetchBatch(ctx context.Context) (domain.Batch, error)
	FetchHistory(ctx context.Context) (domain.HistoryBatch, error)
}

type viewStore interface {
	BeginBatch() uint64
	BeginHistory() uint64
	Dispatch(msg state.Msg) bool
	SelectTab(tab domain.Tab) error
}

// Scheduler decides when fetches are issued and routes their results into the store.
type Scheduler struct {
	fetcher        snapshotFetcher
	store          viewStore
	logger         *zap.Logger
	interval       time.Duration
	requestTimeout time.Duration
	now            func() time.Time
}

// Option configures Scheduler.
type Option func(*Scheduler)

// WithInterval sets the main refresh period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRequestTimeout bounds every fetch issued by the scheduler.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.requestTimeout = d
	}
}

// WithClock overrides the clock stamped into LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler.
func New(fetcher snapshotFetcher, store viewStore, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		fetcher:  fetcher,
		store:    store,
		logger:   logger,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the main refresh period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Handle is a running scheduler. Results of fetches that complete after Stop are dropped.
type Handle struct {
	s        *Scheduler
	parent   context.Context
	active   atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	// fetches in flight, guarded by mu and signalled through idle
	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
}

// Start fires the first batch immediately and then one per interval.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		s:      s,
		parent: ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.idle = sync.NewCond(&h.mu)
	h.active.Store(true)

	go h.run(loopCtx)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return h
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	h.refresh()

	// a Ticker drops ticks a slow receiver misses, so the schedule never drifts
	ticker := time.NewTicker(h.s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.s.logger.Info("scheduler loop stopped")
			return
		case <-ticker.C:
			h.refresh()
		}
	}
}

// Active reports whether results may still be applied.
func (h *Handle) Active() bool {
	return h.active.Load()
}

// Stop clears the timer and invalidates the handle. In-flight requests keep
// running but their results are ignored.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.active.Store(false)
		h.cancel()
		<-h.done
	})
}

// Done is closed when the timer loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until no fetch issued by this handle is in flight.
// It may be called while the handle keeps issuing fetches.
func (h *Handle) Wait() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.inflight > 0 {
		h.idle.Wait()
	}
}

// Refresh issues an out-of-band main batch.
func (h *Handle) Refresh() error {
	if !h.Active() {
		return ErrStopped
	}
	h.refresh()
	return nil
}

// SelectTab switches tabs. Every selection of the history tab fetches
// history and hourly data again.
func (h *Handle) SelectTab(tab domain.Tab) error {
	if !h.Active() {
		return ErrStopped
	}
	if err := h.s.store.SelectTab(tab); err != nil {
		return err
	}
	if tab == domain.TabHistory {
		h.loadHistory()
	}
	return nil
}

func (h *Handle) refresh() {
	seq := h.s.store.BeginBatch()
	h.spawn(func(ctx context.Context) {
		batch, err := h.s.fetcher.FetchBatch(ctx)
		if !h.Active() {
			h.s.logger.Debug("dropping batch result after stop", zap.Uint64("seq", seq))
			return
		}
		if err != nil {
			h.s.store.Dispatch(state.BatchFailed{Seq: seq, Err: err})
			return
		}
		h.s.store.Dispatch(state.BatchLoaded{Seq: seq, Batch: batch, At: h.s.now()})
	})
}

func (h *Handle) loadHistory() {
	seq := h.s.store.BeginHistory()
	h.spawn(func(ctx context.Context) {
		batch, err := h.s.fetcher.FetchHistory(ctx)
		if !h.Active() {
			h.s.logger.Debug("dropping history result after stop", zap.Uint64("seq", seq))
			return
		}
		if err != nil {
			h.s.store.Dispatch(state.HistoryFailed{Seq: seq, Err: err})
			return
		}
		h.s.store.Dispatch(state.HistoryLoaded{Seq: seq, Batch: batch})
	})
}

// spawn runs fn on a context that outlives Stop, bounded by the request timeout.
func (h *Handle) spawn(fn func(ctx context.Context)) {
	h.mu.Lock()
	h.inflight++
	h.mu.Unlock()

	go func() {
		defer h.release()

		ctx := context.WithoutCancel(h.parent)
		if h.s.requestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.s.requestTimeout)
			defer cancel()
		}
		fn(ctx)
	}()
}

func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inflight--
	if h.inflight == 0 {
		h.idle.Broadcast()
	}
}
