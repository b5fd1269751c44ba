package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Degraded reports a move from a working state into degraded or stale.
func (t Transition) Degraded() bool {
	return !IsDegradedState(t.FromState) && IsDegradedState(t.ToState)
}

// Recovered reports a move from degraded or stale back to healthy.
func (t Transition) Recovered() bool {
	return IsDegradedState(t.FromState) && t.ToState == StateHealthy
}

type MonitorConfig struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	Logger       *slog.Logger
	OnTransition func(context.Context, Transition, Snapshot)
}

// Monitor polls the registry and reports component state changes.
type Monitor struct {
	registry     *Registry
	interval     time.Duration
	staleAfter   time.Duration
	logger       *slog.Logger
	onTransition func(context.Context, Transition, Snapshot)
	previous     map[string]string
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry:     registry,
		interval:     interval,
		staleAfter:   cfg.StaleAfter,
		logger:       logger,
		onTransition: cfg.OnTransition,
		previous:     map[string]string{},
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	if m.registry == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.logger.Info("heartbeat monitor started", "interval", m.interval.String(), "stale_after", m.staleAfter.String())
	for {
		m.Check(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Check takes one snapshot and returns the transitions since the previous
// call. The first observation of a component is not a transition.
func (m *Monitor) Check(ctx context.Context) []Transition {
	snapshot := m.registry.Snapshot(m.staleAfter)
	transitions := []Transition{}
	for _, item := range snapshot.Components {
		before, seen := m.previous[item.Name]
		m.previous[item.Name] = item.State
		if !seen || before == item.State {
			continue
		}
		transition := Transition{
			Component: item.Name,
			FromState: before,
			ToState:   item.State,
			Message:   item.Message,
			Error:     item.Error,
		}
		transitions = append(transitions, transition)
		m.logger.Info("heartbeat transition", "component", item.Name, "from", before, "to", item.State)
		if m.onTransition != nil {
			m.onTransition(ctx, transition, snapshot)
		}
	}
	return transitions
}
