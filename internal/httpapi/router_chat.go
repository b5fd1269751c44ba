package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/dialogue"
)

// ChatConnector is the connector name for conversations driven through
// /api/v1/chat; its replies are collected by the reply inbox.
const ChatConnector = "api"

type chatRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type chatResponse struct {
	UserID  string   `json:"user_id"`
	State   string   `json:"state"`
	Replies []string `json:"replies"`
}

func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Chat == nil || r.deps.Inbox == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat is unavailable"})
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	externalID := strings.TrimSpace(payload.UserID)
	if externalID == "" {
		externalID = "cli"
	}
	address := connectors.Address(ChatConnector, externalID)

	err := r.deps.Chat.HandleMessage(req.Context(), dialogue.Event{
		UserID:      address,
		Destination: address,
		Text:        text,
	})
	if err != nil {
		r.deps.Logger.Error("api chat failed", "user_id", address, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "chat failed"})
		return
	}
	response := chatResponse{UserID: address, Replies: r.deps.Inbox.Drain(externalID)}
	if conversation, err := r.deps.Chat.Conversation(req.Context(), address); err == nil {
		response.State = conversation.State.String()
	}
	writeJSON(w, http.StatusOK, response)
}
