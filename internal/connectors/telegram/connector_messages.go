package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/dialogue"
)

// handleMessage forwards a chat message to the dialogue. Private chats are
// forwarded as-is; group chats only when the text is a slash command or
// starts with a mention of the bot.
func (c *Connector) handleMessage(ctx context.Context, message telegramMessage) error {
	if message.From.IsBot {
		return nil
	}
	raw := strings.TrimSpace(message.Text)
	if raw == "" {
		return nil
	}
	text := normalizeIncoming(raw, c.botUsername)
	if message.Chat.Type != "private" && !strings.HasPrefix(raw, "/") {
		stripped, mentioned := mentionStripped(raw, c.botUsername)
		if !mentioned {
			return nil
		}
		text = stripped
	}
	if text == "" {
		return nil
	}
	event := dialogue.Event{
		UserID:      connectors.Address(connectorName, strconv.FormatInt(message.From.ID, 10)),
		Destination: connectors.Address(connectorName, strconv.FormatInt(message.Chat.ID, 10)),
		Text:        text,
	}
	c.logger.Info("telegram message received",
		"chat_id", message.Chat.ID,
		"message_id", message.MessageID,
		"user_id", event.UserID,
	)
	return c.inbound.HandleMessage(ctx, event)
}
