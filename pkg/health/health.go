// Package health provides component health tracking for recordstore.
package health

import (
	"context"
	"sync"
	"time"
)

// State represents the health state of a component or the service.
type State int

const (
	// StateHealthy indicates the component is fully operational
	StateHealthy State = iota

	// StateDegraded indicates the component is operational with reduced
	// guarantees (e.g. the change watcher lost its notification source)
	StateDegraded

	// StateUnavailable indicates the component is not operational
	StateUnavailable
)

// String returns the string representation of a health state.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Check probes one component. A nil error means healthy.
type Check func(ctx context.Context) error

// ComponentStatus is a snapshot of one component's health.
type ComponentStatus struct {
	Name      string        `json:"name"`
	State     State         `json:"-"`
	StateName string        `json:"state"`
	LastCheck time.Time     `json:"last_check"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Tracker runs registered checks and tracks per-component state.
// Components without a check (e.g. a watcher whose failures are pushed
// in via SetState) are tracked by their last reported state.
type Tracker struct {
	mu         sync.RWMutex
	checks     map[string]Check
	statuses   map[string]ComponentStatus
	checkOrder []string
}

// NewTracker creates an empty health tracker.
func NewTracker() *Tracker {
	return &Tracker{
		checks:   make(map[string]Check),
		statuses: make(map[string]ComponentStatus),
	}
}

// RegisterCheck registers a named component probe.
func (t *Tracker) RegisterCheck(name string, check Check) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.checks[name]; !exists {
		t.checkOrder = append(t.checkOrder, name)
	}
	t.checks[name] = check
	if _, exists := t.statuses[name]; !exists {
		t.statuses[name] = ComponentStatus{Name: name, State: StateHealthy, StateName: StateHealthy.String()}
	}
}

// SetState reports a component's state directly, for components whose
// failures are observed asynchronously rather than probed.
func (t *Tracker) SetState(name string, state State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := ComponentStatus{
		Name:      name,
		State:     state,
		StateName: state.String(),
		LastCheck: time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	if _, exists := t.statuses[name]; !exists {
		t.checkOrder = append(t.checkOrder, name)
	}
	t.statuses[name] = status
}

// Check runs every registered probe and returns the refreshed statuses.
func (t *Tracker) Check(ctx context.Context) []ComponentStatus {
	t.mu.RLock()
	names := make([]string, len(t.checkOrder))
	copy(names, t.checkOrder)
	checks := make(map[string]Check, len(t.checks))
	for name, check := range t.checks {
		checks[name] = check
	}
	t.mu.RUnlock()

	for _, name := range names {
		check, ok := checks[name]
		if !ok {
			continue
		}
		start := time.Now()
		err := check(ctx)
		status := ComponentStatus{
			Name:      name,
			State:     StateHealthy,
			LastCheck: time.Now(),
			Duration:  time.Since(start),
		}
		if err != nil {
			status.State = StateUnavailable
			status.Error = err.Error()
		}
		status.StateName = status.State.String()

		t.mu.Lock()
		t.statuses[name] = status
		t.mu.Unlock()
	}

	return t.Statuses()
}

// Statuses returns the last known status of every component, in
// registration order.
func (t *Tracker) Statuses() []ComponentStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ComponentStatus, 0, len(t.checkOrder))
	for _, name := range t.checkOrder {
		if status, ok := t.statuses[name]; ok {
			out = append(out, status)
		}
	}
	return out
}

// OverallState folds component states into one service state: any
// unavailable component wins, then any degraded one.
func (t *Tracker) OverallState() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	overall := StateHealthy
	for _, status := range t.statuses {
		if status.State == StateUnavailable {
			return StateUnavailable
		}
		if status.State == StateDegraded {
			overall = StateDegraded
		}
	}
	return overall
}
