package bundle

import (
	"sync"

	"github.com/petal-labs/spellbook/spell"
)

// Observation captures one bundle write.
type Observation struct {
	Spell      string
	Kind       spell.ActionKind
	Files      int
	Bytes      int
	DurationMS int64
	Success    bool
	Validation bool
}

// Observer receives bundle-level observability events.
type Observer interface {
	ObserveGenerate(observation Observation)
}

type noopObserver struct{}

func (noopObserver) ObserveGenerate(Observation) {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide bundle observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

func emitObservation(observation Observation) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveGenerate(observation)
}
