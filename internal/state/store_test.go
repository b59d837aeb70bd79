package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/metrics"
)

func TestStore_SequencesAreMonotonic(t *testing.T) {
	s := NewStore(zap.NewNop(), nil)

	a := s.BeginBatch()
	b := s.BeginHistory()
	c := s.BeginBatch()
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestStore_Dispatch(t *testing.T) {
	s := NewStore(zap.NewNop(), metrics.New())
	v0 := s.Version()

	seq := s.BeginBatch()
	assert.True(t, s.Snapshot().Loading)
	assert.True(t, s.Dispatch(BatchLoaded{Seq: seq, Batch: batch("BTC"), At: t0}))

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, "BTC", snap.Funding[0].Symbol)
	assert.Greater(t, s.Version(), v0)
}

func TestStore_StaleDispatchReturnsFalse(t *testing.T) {
	s := NewStore(zap.NewNop(), metrics.New())

	older := s.BeginBatch()
	newer := s.BeginBatch()
	require.True(t, s.Dispatch(BatchLoaded{Seq: newer, Batch: batch("NEW"), At: t1}))
	assert.False(t, s.Dispatch(BatchLoaded{Seq: older, Batch: batch("OLD"), At: t0}))

	snap := s.Snapshot()
	assert.Equal(t, "NEW", snap.Funding[0].Symbol)
	assert.False(t, snap.Loading)
}

func TestStore_UnmountIgnoresLateResults(t *testing.T) {
	s := NewStore(zap.NewNop(), nil)
	seq := s.BeginBatch()

	s.Unmount()
	assert.False(t, s.Mounted())
	assert.False(t, s.Dispatch(BatchLoaded{Seq: seq, Batch: batch("BTC"), At: t0}))
	assert.False(t, s.Dispatch(BatchFailed{Seq: seq, Err: errors.New("late")}))

	snap := s.Snapshot()
	assert.Empty(t, snap.Funding)
	assert.Empty(t, snap.Error)
}

func TestStore_SelectTab(t *testing.T) {
	s := NewStore(zap.NewNop(), nil)

	require.NoError(t, s.SelectTab(domain.TabArbitrage))
	assert.Equal(t, domain.TabArbitrage, s.Snapshot().ActiveTab)

	err := s.SelectTab(domain.Tab(3))
	assert.ErrorIs(t, err, ErrInvalidTab)
	assert.Equal(t, domain.TabArbitrage, s.Snapshot().ActiveTab)
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	s := NewStore(zap.NewNop(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq := s.BeginBatch()
			s.Dispatch(BatchLoaded{Seq: seq, Batch: batch("BTC"), At: t0})
			_ = s.Snapshot().Derive(5)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Funding, 1)
}

func TestStore_SubscribeCoalescesChanges(t *testing.T) {
	store := NewStore(zap.NewNop(), nil)
	ch := store.Subscribe()

	require.NoError(t, store.SelectTab(domain.TabArbitrage))
	require.NoError(t, store.SelectTab(domain.TabHistory))

	// the second notification is dropped, the reader catches up through Version
	v, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, uint64(2), store.Version())

	store.Unsubscribe(ch)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestStore_UnmountClosesSubscriptions(t *testing.T) {
	store := NewStore(zap.NewNop(), nil)
	ch := store.Subscribe()

	store.Unmount()
	_, ok := <-ch
	assert.False(t, ok)
}
