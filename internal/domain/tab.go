package domain

// Tab dashboard tab.
type Tab int

const (
	// TabFunding funding rate comparison table.
	TabFunding Tab = iota
	// TabArbitrage top arbitrage opportunities table.
	TabArbitrage
	// TabHistory APR history chart.
	TabHistory
)

// Valid checks if the tab index is known.
func (t Tab) Valid() bool {
	return t >= TabFunding && t <= TabHistory
}

// String returns the tab title.
func (t Tab) String() string {
	switch t {
	case TabFunding:
		return "Funding Rates"
	case TabArbitrage:
		return "Top Arbitrage"
	case TabHistory:
		return "History Chart"
	default:
		return "unknown"
	}
}
