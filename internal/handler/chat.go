package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/wealthwizard/finance-api/internal/ctxkeys"
	"github.com/wealthwizard/finance-api/internal/service"
	"github.com/wealthwizard/finance-api/internal/validation"
)

const maxChatMessageLength = 1000

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

type chatResponse struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, r, &validation.Error{Field: "message", Message: "Message is required"})
		return
	}
	if len([]rune(message)) > maxChatMessageLength {
		writeError(w, r, &validation.Error{Field: "message", Message: "Message is too long"})
		return
	}

	reply, err := h.chatService.Reply(r.Context(), user.ID, message)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Success:   true,
		Response:  reply,
		Timestamp: time.Now().UTC(),
	})
}
