package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"stayprivate/internal/services"
)

// MessageHandler 封装了私信相关的 HTTP 处理器方法。
type MessageHandler struct {
	messaging services.MessagingService
	log       *zap.Logger
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(messaging services.MessagingService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messaging: messaging, log: log}
}

type sendMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// SendMessageHandler 处理 POST /api/v1/messages。
func (h *MessageHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	var payload sendMessagePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	message, err := h.messaging.Send(r.Context(), userID, payload.RecipientID, payload.Content)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, envelope{"message": message})
}

// GetConversationHandler 处理 GET /api/v1/messages/{userID}。
func (h *MessageHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	messages, err := h.messaging.FetchConversation(r.Context(), userID, mux.Vars(r)["userID"])
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"messages": messages})
}

// ListConversationsHandler 处理 GET /api/v1/messages。
func (h *MessageHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	conversations, err := h.messaging.ListConversations(r.Context(), userID)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"conversations": conversations})
}

// UnreadCountHandler 处理 GET /api/v1/messages/unread。
func (h *MessageHandler) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	n, err := h.messaging.UnreadCount(r.Context(), userID)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"unreadCount": n})
}
