// Package fault provides the ledger's synthetic failure seam. The injector
// sits in front of every mutating operation and, when enabled, fails a
// configurable fraction of calls before any state is touched. It exists to
// exercise the orchestrator's failure handling; it never corrupts committed
// state.
package fault

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrInjectedFault is the synthetic transient error returned by the seam
var ErrInjectedFault = errors.New("injected transient fault")

// Injector decides per call whether to fail. Runtime-toggleable over HTTP.
type Injector struct {
	mu          sync.RWMutex
	enabled     bool
	probability float64
	rng         *rand.Rand
}

// NewInjector creates an injector. seed 0 means time-based seeding.
func NewInjector(enabled bool, probability float64, seed int64) *Injector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Injector{
		enabled:     enabled,
		probability: probability,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Check returns ErrInjectedFault with the configured probability, nil
// otherwise. Callers invoke it before mutating state.
func (i *Injector) Check() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.enabled || i.probability <= 0 {
		return nil
	}
	if i.rng.Float64() < i.probability {
		return ErrInjectedFault
	}
	return nil
}

// SetEnabled toggles the seam at runtime
func (i *Injector) SetEnabled(enabled bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.enabled = enabled
}

// Enabled reports the current toggle state
func (i *Injector) Enabled() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.enabled
}

// SetProbability updates the failure probability, clamped to [0, 1)
func (i *Injector) SetProbability(p float64) {
	if p < 0 {
		p = 0
	}
	if p >= 1 {
		p = 0.99
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.probability = p
}

// Probability reports the current failure probability
func (i *Injector) Probability() float64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.probability
}
