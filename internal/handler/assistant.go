package handler

import (
	"net/http"

	"github.com/geniesugar/glucose-monitor/internal/service"
)

type ChatHandler struct {
	Responder
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService, rs Responder) *ChatHandler {
	return &ChatHandler{Responder: rs, chat: chat}
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

// HandleChat forwards a question to the assistant.
//
// HTTP: POST /api/ai/chat
//
// Provider failures are not HTTP errors: the response is 200 with
// "success": false and a fallback message the client can show as-is.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	reply, err := h.chat.Chat(r.Context(), caller.ID, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"success": reply.OK, "response": reply.Message})
}
