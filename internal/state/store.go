package state

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/events"
	"github.com/vadiminshakov/fundingtracker/internal/metrics"
)

// ErrInvalidTab is returned for a tab index outside 0..2.
var ErrInvalidTab = errors.New("invalid tab")

// Store owns the ViewState. Every update goes through Dispatch under a single lock.
type Store struct {
	mu      sync.RWMutex
	state   ViewState
	seq     uint64
	version uint64
	mounted bool
	changes *events.Broadcaster[uint64]

	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewStore creates a mounted store holding New().
func NewStore(logger *zap.Logger, m *metrics.Collector) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:   New(),
		mounted: true,
		changes: events.NewBroadcaster[uint64](1),
		logger:  logger,
		metrics: m,
	}
}

// BeginBatch allocates a sequence number and marks a main batch in flight.
func (s *Store) BeginBatch() uint64 {
	return s.begin(func(seq uint64) Msg { return BatchStarted{Seq: seq} })
}

// BeginHistory allocates a sequence number and marks a history fetch in flight.
func (s *Store) BeginHistory() uint64 {
	return s.begin(func(seq uint64) Msg { return HistoryStarted{Seq: seq} })
}

func (s *Store) begin(started func(seq uint64) Msg) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	if s.mounted {
		s.state = Reduce(s.state, started(s.seq))
		s.bump()
	}
	return s.seq
}

// Dispatch applies msg. It returns false when the store is unmounted
// or the message is an outdated completion.
func (s *Store) Dispatch(msg Msg) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return false
	}

	stale := Stale(s.state, msg)
	s.state = Reduce(s.state, msg)
	s.bump()

	if stale {
		kind := kindOf(msg)
		s.metrics.StaleDiscarded(kind)
		s.logger.Debug("discarded outdated completion", zap.String("kind", kind))
		return false
	}
	return true
}

// SelectTab switches the active tab.
func (s *Store) SelectTab(tab domain.Tab) error {
	if !tab.Valid() {
		return errors.Wrapf(ErrInvalidTab, "index %d", int(tab))
	}
	s.Dispatch(TabSelected{Tab: tab})
	return nil
}

// Snapshot returns a copy of the current state. Its slices must not be modified.
func (s *Store) Snapshot() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Version grows on every applied change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe returns a channel that receives the new version after every change.
// Notifications coalesce, a reader always sees the latest version on its next read.
// The channel is closed by Unsubscribe or Unmount.
func (s *Store) Subscribe() chan uint64 {
	return s.changes.Subscribe()
}

// Unsubscribe stops notifications for ch.
func (s *Store) Unsubscribe(ch chan uint64) {
	s.changes.Unsubscribe(ch)
}

// Unmount tears the view down. Later dispatches are ignored.
func (s *Store) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = false
	s.changes.Close()
}

// bump must be called with mu held.
func (s *Store) bump() {
	s.version++
	s.changes.Publish(s.version)
}

// Mounted reports whether the view is still alive.
func (s *Store) Mounted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mounted
}

func kindOf(msg Msg) string {
	switch msg.(type) {
	case HistoryStarted, HistoryLoaded, HistoryFailed:
		return "history"
	default:
		return "batch"
	}
}
