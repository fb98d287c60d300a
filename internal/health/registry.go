package health

import (
	"sort"
	"sync"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// State is the health of one adapter as seen by the dispatcher.
type State string

const (
	StateUnknown   State = "unknown"
	StateHealthy   State = "healthy"
	StateUnhealthy State = "unhealthy"
)

func (s State) String() string { return string(s) }

// Observer receives health transitions. Used to mirror state into metrics.
type Observer func(provider string, state State)

// Registry tracks per-adapter health. An adapter that reports an auth failure stays unhealthy until
// Reset; there is no automatic recovery.
type Registry struct {
	mu       sync.RWMutex
	states   map[string]State
	observer Observer
}

func NewRegistry(observer Observer) *Registry {
	return &Registry{
		states:   make(map[string]State),
		observer: observer,
	}
}

// State returns the current state of provider; unseen providers are unknown.
func (r *Registry) State(provider string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if state, ok := r.states[provider]; ok {
		return state
	}
	return StateUnknown
}

func (r *Registry) IsUnhealthy(provider string) bool {
	return r.State(provider) == StateUnhealthy
}

// Observe applies the outcome of one attempt to provider's state.
func (r *Registry) Observe(provider string, result domain.AttemptResult) {
	r.mu.Lock()
	current, ok := r.states[provider]
	if !ok {
		current = StateUnknown
	}

	next := current
	switch {
	case result == domain.ResultAuthError:
		next = StateUnhealthy
	case result == domain.ResultSkipped:
	case current == StateUnknown:
		next = StateHealthy
	}

	r.states[provider] = next
	r.mu.Unlock()

	if next != current && r.observer != nil {
		r.observer(provider, next)
	}
}

// Snapshot returns a copy of every known state.
func (r *Registry) Snapshot() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]State, len(r.states))
	for name, state := range r.states {
		out[name] = state
	}
	return out
}

// Reset forgets all state. Called when providers are reloaded.
func (r *Registry) Reset() {
	r.mu.Lock()
	names := make([]string, 0, len(r.states))
	for name, state := range r.states {
		if state != StateUnknown {
			names = append(names, name)
		}
	}
	r.states = make(map[string]State)
	r.mu.Unlock()

	if r.observer == nil {
		return
	}
	sort.Strings(names)
	for _, name := range names {
		r.observer(name, StateUnknown)
	}
}
