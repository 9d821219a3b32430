package store

import (
	"sync"
	"time"
)

// Operation names reported in observations.
const (
	OpLoad  = "load"
	OpSave  = "save"
	OpClear = "clear"
)

// Observation captures one store operation outcome.
type Observation struct {
	Driver     string
	Operation  string
	Spells     int
	Skipped    int
	DurationMS int64
	Success    bool
}

// Observer receives store-level observability events.
type Observer interface {
	ObserveStore(observation Observation)
}

type noopObserver struct{}

func (noopObserver) ObserveStore(Observation) {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide store observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

func emitObservation(driver, op string, started time.Time, spells, skipped int, err error) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveStore(Observation{
		Driver:     driver,
		Operation:  op,
		Spells:     spells,
		Skipped:    skipped,
		DurationMS: time.Since(started).Milliseconds(),
		Success:    err == nil,
	})
}
