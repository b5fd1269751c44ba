package slack

import (
	"encoding/json"
	"strings"
)

// eventCallback is the outer Events API body. Socket Mode delivers the same
// body as the envelope payload.
type eventCallback struct {
	Type      string       `json:"type"`
	Challenge string       `json:"challenge"`
	TeamID    string       `json:"team_id"`
	EventID   string       `json:"event_id"`
	Event     messageEvent `json:"event"`
}

type messageEvent struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	User        string `json:"user"`
	BotID       string `json:"bot_id"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
}

type socketEnvelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Reason     string          `json:"reason"`
	Payload    json.RawMessage `json:"payload"`
}

// acceptsEvent filters out edits, joins, bot echoes and channel chatter that
// does not address the bot.
func acceptsEvent(event messageEvent) bool {
	if event.BotID != "" || event.Subtype != "" || strings.TrimSpace(event.User) == "" {
		return false
	}
	switch event.Type {
	case "app_mention":
		return true
	case "message":
		return event.ChannelType == "im"
	default:
		return false
	}
}

// stripMentions drops "<@U123>" tokens so "<@UBOT> list" becomes "list".
func stripMentions(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, field := range fields {
		if strings.HasPrefix(field, "<@") && strings.HasSuffix(field, ">") {
			continue
		}
		kept = append(kept, field)
	}
	return strings.Join(kept, " ")
}
