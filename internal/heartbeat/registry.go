package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallUnknown = "unknown"
	OverallIdle    = "idle"
)

// Reporter is implemented by the registry and handed to the scanner and the
// chat connectors so they can publish their own health.
type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	BaseState      string `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

// Component returns the status of one component by name.
func (s Snapshot) Component(name string) (ComponentStatus, bool) {
	name = normalizeComponent(name)
	for _, item := range s.Components {
		if item.Name == name {
			return item, true
		}
	}
	return ComponentStatus{}, false
}

type record struct {
	state      string
	message    string
	lastError  string
	lastBeatAt time.Time
	updatedAt  time.Time
}

type Registry struct {
	mu         sync.RWMutex
	components map[string]record
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		components: map[string]record{},
		now:        time.Now,
	}
}

func (r *Registry) Starting(component, message string) {
	r.update(component, StateStarting, message, "", false)
}

func (r *Registry) Beat(component, message string) {
	r.update(component, StateHealthy, message, "", true)
}

func (r *Registry) Degrade(component, message string, err error) {
	errorText := ""
	if err != nil {
		errorText = err.Error()
	}
	r.update(component, StateDegraded, message, errorText, false)
}

func (r *Registry) Disabled(component, message string) {
	r.update(component, StateDisabled, message, "", false)
}

func (r *Registry) Stopped(component, message string) {
	r.update(component, StateStopped, message, "", false)
}

func (r *Registry) update(component, state, message, errorText string, beat bool) {
	name := normalizeComponent(component)
	if name == "" {
		return
	}
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.components[name]
	current.state = state
	current.message = strings.TrimSpace(message)
	current.lastError = strings.TrimSpace(errorText)
	current.updatedAt = now
	if beat || current.lastBeatAt.IsZero() {
		current.lastBeatAt = now
	}
	r.components[name] = current
}

// Snapshot reports every component. A healthy or starting component whose
// last beat is older than staleAfter is reported as stale; staleAfter <= 0
// disables the check.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now().UTC()
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]ComponentStatus, 0, len(r.components))
	for name, current := range r.components {
		status := ComponentStatus{
			Name:          name,
			State:         current.state,
			BaseState:     current.state,
			Message:       current.message,
			Error:         current.lastError,
			UpdatedAtUnix: current.updatedAt.Unix(),
		}
		if !current.lastBeatAt.IsZero() {
			status.LastBeatAtUnix = current.lastBeatAt.Unix()
		}
		if staleAfter > 0 && canBecomeStale(current.state) && now.Sub(current.lastBeatAt) > staleAfter {
			status.State = StateStale
			status.Stale = true
		}
		results = append(results, status)
	}
	sort.Slice(results, func(left, right int) bool {
		return results[left].Name < results[right].Name
	})

	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         computeOverall(results),
		Components:      results,
	}
}

func IsDegradedState(state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case StateDegraded, StateStale:
		return true
	default:
		return false
	}
}

func normalizeComponent(component string) string {
	return strings.ToLower(strings.TrimSpace(component))
}

func canBecomeStale(state string) bool {
	return state == StateHealthy || state == StateStarting
}

func computeOverall(items []ComponentStatus) string {
	if len(items) == 0 {
		return OverallUnknown
	}
	hasHealthy := false
	hasStarting := false
	for _, item := range items {
		switch item.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateHealthy:
			hasHealthy = true
		case StateStarting:
			hasStarting = true
		}
	}
	if hasStarting {
		return StateStarting
	}
	if hasHealthy {
		return StateHealthy
	}
	return OverallIdle
}
