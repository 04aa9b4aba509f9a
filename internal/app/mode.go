package app

import "expensetrack/internal/store"

// DataMode is either RealMode or SampleMode. Only SampleMode carries the
// snapshot to restore, so leaving sample mode cannot lose real data.
type DataMode interface {
	isDataMode()
	Name() string
}

type RealMode struct{}

// SampleMode holds the real ledger while fixtures are shown.
type SampleMode struct {
	SavedReal store.Snapshot
}

func (RealMode) isDataMode()   {}
func (SampleMode) isDataMode() {}

func (RealMode) Name() string   { return "real" }
func (SampleMode) Name() string { return "sample" }

func isSample(m DataMode) bool {
	_, ok := m.(SampleMode)
	return ok
}
