// Package state holds the dashboard view state and the reducer that updates it.
package state

import (
	"time"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
)

// User-visible error banners.
const (
	BatchErrorMessage   = "Failed to fetch data. Please try again later."
	HistoryErrorMessage = "Failed to fetch history. Please try again later."
)

// ViewState everything the render layer reads.
type ViewState struct {
	Funding     []domain.FundingRow
	Arbitrage   []domain.ArbitrageRow
	History     []domain.HistorySnapshot
	Hourly      []domain.HourlyBucket
	LastUpdated time.Time

	Loading        bool
	HistoryLoading bool
	HourlyLoading  bool

	Error     string
	ActiveTab domain.Tab

	// failures of the last applied completion per source, Error is derived from them
	batchFailed    bool
	historyFailed  bool
	batchPending   int
	historyPending int

	// sequence numbers of the last applied completion per slice
	batchSeq   uint64
	historySeq uint64
	hourlySeq  uint64
}

// New returns the empty state of a freshly mounted view.
func New() ViewState {
	return ViewState{
		Loading:        true,
		HistoryLoading: true,
		HourlyLoading:  true,
		ActiveTab:      domain.TabFunding,
	}
}

// Msg is an input of Reduce.
type Msg interface {
	msg()
}

// BatchStarted a main batch was issued.
type BatchStarted struct{ Seq uint64 }

// BatchLoaded a main batch completed.
type BatchLoaded struct {
	Seq   uint64
	Batch domain.Batch
	At    time.Time
}

// BatchFailed a main batch failed.
type BatchFailed struct {
	Seq uint64
	Err error
}

// HistoryStarted a history tab fetch was issued.
type HistoryStarted struct{ Seq uint64 }

// HistoryLoaded a history tab fetch completed.
type HistoryLoaded struct {
	Seq   uint64
	Batch domain.HistoryBatch
}

// HistoryFailed a history tab fetch failed.
type HistoryFailed struct {
	Seq uint64
	Err error
}

// TabSelected the user switched tabs.
type TabSelected struct{ Tab domain.Tab }

func (BatchStarted) msg()   {}
func (BatchLoaded) msg()    {}
func (BatchFailed) msg()    {}
func (HistoryStarted) msg() {}
func (HistoryLoaded) msg()  {}
func (HistoryFailed) msg()  {}
func (TabSelected) msg()    {}

// Reduce applies msg to s and returns the new state.
// Completions older than the last applied one of the same kind only release
// their loading flag. Data lists are always replaced, never merged.
func Reduce(s ViewState, m Msg) ViewState {
	switch m := m.(type) {
	case BatchStarted:
		s.batchPending++
		s.Loading = true

	case BatchLoaded:
		s = s.finishBatch()
		if m.Seq > s.batchSeq {
			s.Funding = m.Batch.Funding
			s.Arbitrage = m.Batch.Arbitrage
			s.LastUpdated = m.At
			s.batchSeq = m.Seq
			s.batchFailed = false
		}
		if m.Seq > s.historySeq {
			s.History = m.Batch.History
			s.historySeq = m.Seq
			s.historyFailed = false
		}

	case BatchFailed:
		s = s.finishBatch()
		if m.Seq > s.batchSeq {
			s.batchSeq = m.Seq
			s.batchFailed = true
		}

	case HistoryStarted:
		s.historyPending++
		s.HistoryLoading = true
		s.HourlyLoading = true

	case HistoryLoaded:
		s = s.finishHistory()
		if m.Seq > s.historySeq {
			s.History = m.Batch.Snapshots
			s.historySeq = m.Seq
		}
		if m.Seq > s.hourlySeq {
			s.Hourly = m.Batch.Hourly
			s.hourlySeq = m.Seq
			s.historyFailed = false
		}

	case HistoryFailed:
		s = s.finishHistory()
		if m.Seq > s.hourlySeq {
			s.hourlySeq = m.Seq
			if m.Seq > s.historySeq {
				s.historySeq = m.Seq
			}
			s.historyFailed = true
		}

	case TabSelected:
		if m.Tab.Valid() {
			s.ActiveTab = m.Tab
		}
	}

	return s.withError()
}

// Stale reports whether a completion message would be discarded by Reduce.
func Stale(s ViewState, m Msg) bool {
	switch m := m.(type) {
	case BatchLoaded:
		return m.Seq <= s.batchSeq && m.Seq <= s.historySeq
	case BatchFailed:
		return m.Seq <= s.batchSeq
	case HistoryLoaded:
		return m.Seq <= s.historySeq && m.Seq <= s.hourlySeq
	case HistoryFailed:
		return m.Seq <= s.hourlySeq
	default:
		return false
	}
}

func (s ViewState) finishBatch() ViewState {
	if s.batchPending > 0 {
		s.batchPending--
	}
	s.Loading = s.batchPending > 0
	return s
}

func (s ViewState) finishHistory() ViewState {
	if s.historyPending > 0 {
		s.historyPending--
	}
	s.HistoryLoading = s.historyPending > 0
	s.HourlyLoading = s.historyPending > 0
	return s
}

// withError derives the banner. A failing main batch wins over a failing history fetch.
func (s ViewState) withError() ViewState {
	switch {
	case s.batchFailed:
		s.Error = BatchErrorMessage
	case s.historyFailed:
		s.Error = HistoryErrorMessage
	default:
		s.Error = ""
	}
	return s
}
