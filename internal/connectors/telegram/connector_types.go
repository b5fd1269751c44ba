package telegram

import (
	"strings"
)

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64        `json:"message_id"`
	From      telegramUser `json:"from"`
	Chat      telegramChat `json:"chat"`
	Text      string       `json:"text"`
}

type telegramChat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type telegramUser struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

// normalizeIncoming maps slash commands onto the plain chat commands:
// "/add@permitbot https://..." becomes "add https://...", "/start" becomes
// "help". Other text is returned trimmed.
func normalizeIncoming(input, botUsername string) string {
	text := strings.TrimSpace(input)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	command, rest, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	command, target, addressed := strings.Cut(command, "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return ""
	}
	command = strings.ToLower(command)
	if command == "start" {
		command = "help"
	}
	return strings.TrimSpace(command + " " + strings.TrimSpace(rest))
}

// mentionStripped removes a leading "@botname" from group chat text and
// reports whether it was there.
func mentionStripped(text, botUsername string) (string, bool) {
	if botUsername == "" {
		return text, false
	}
	mention := "@" + strings.ToLower(botUsername)
	if !strings.HasPrefix(strings.ToLower(text), mention) {
		return text, false
	}
	return strings.TrimSpace(text[len(mention):]), true
}
