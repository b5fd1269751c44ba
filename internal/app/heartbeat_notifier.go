package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/heartbeat"
)

type messageSender interface {
	Send(ctx context.Context, destination, text string) error
}

// heartbeatNotifier posts degraded and recovered transitions to a single
// operator destination such as "slack:C0123".
type heartbeatNotifier struct {
	sender      messageSender
	destination string
	logger      *slog.Logger
	now         func() time.Time
}

func newHeartbeatNotifier(sender messageSender, destination string, logger *slog.Logger) *heartbeatNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &heartbeatNotifier{
		sender:      sender,
		destination: strings.TrimSpace(destination),
		logger:      logger,
		now:         time.Now,
	}
}

func (n *heartbeatNotifier) HandleTransition(ctx context.Context, transition heartbeat.Transition, snapshot heartbeat.Snapshot) {
	if n == nil || n.sender == nil || n.destination == "" {
		return
	}
	eventType := heartbeatTransitionType(transition)
	if eventType == "" {
		return
	}
	message := buildHeartbeatTransitionMessage(eventType, transition, snapshot, n.now())
	if err := n.sender.Send(ctx, n.destination, message); err != nil {
		n.logger.Error("heartbeat publish failed",
			"destination", n.destination,
			"component", transition.Component,
			"error", err,
		)
	}
}

func heartbeatTransitionType(transition heartbeat.Transition) string {
	switch {
	case transition.Degraded():
		return "degraded"
	case transition.Recovered():
		return "recovered"
	default:
		return ""
	}
}

func buildHeartbeatTransitionMessage(eventType string, transition heartbeat.Transition, snapshot heartbeat.Snapshot, at time.Time) string {
	title := "Heartbeat recovered"
	if eventType == "degraded" {
		title = "Heartbeat degraded"
	}
	builder := strings.Builder{}
	builder.WriteString(title)
	builder.WriteString("\n- component: `")
	builder.WriteString(strings.TrimSpace(transition.Component))
	builder.WriteString("`")
	builder.WriteString("\n- state: `")
	builder.WriteString(strings.TrimSpace(transition.FromState))
	builder.WriteString("` -> `")
	builder.WriteString(strings.TrimSpace(transition.ToState))
	builder.WriteString("`")
	builder.WriteString("\n- overall: `")
	builder.WriteString(strings.TrimSpace(snapshot.Overall))
	builder.WriteString("`")
	if message := strings.TrimSpace(transition.Message); message != "" {
		builder.WriteString("\n- detail: ")
		builder.WriteString(truncateSingleLine(message, 500))
	}
	if errorText := strings.TrimSpace(transition.Error); errorText != "" {
		builder.WriteString("\n- error: ")
		builder.WriteString(truncateSingleLine(errorText, 500))
	}
	builder.WriteString("\n- at: ")
	builder.WriteString(at.UTC().Format(time.RFC3339))
	return builder.String()
}

func truncateSingleLine(input string, maxLen int) string {
	line := strings.Join(strings.Fields(input), " ")
	if maxLen < 1 || len(line) <= maxLen {
		return line
	}
	return strings.TrimSpace(line[:maxLen]) + "..."
}
