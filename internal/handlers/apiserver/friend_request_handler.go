package apiserver

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"stayprivate/internal/models"
	"stayprivate/internal/services"
)

// FriendHandler handles HTTP requests related to friend requests and the friends list.
type FriendHandler struct {
	relationships services.RelationshipService
	log           *zap.Logger
}

// NewFriendHandler creates a new FriendHandler.
func NewFriendHandler(relationships services.RelationshipService, log *zap.Logger) *FriendHandler {
	return &FriendHandler{relationships: relationships, log: log}
}

type submitRequestPayload struct {
	ReceiverID string `json:"receiverId"`
}

type respondPayload struct {
	Action models.FriendAction `json:"action"`
}

// SubmitRequestHandler handles POST /api/v1/friends/requests
func (h *FriendHandler) SubmitRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	var payload submitRequestPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}

	request, err := h.relationships.SubmitRequest(r.Context(), userID, payload.ReceiverID)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	status := http.StatusCreated
	if request.Status == models.FriendRequestStatusAccepted {
		// reconciliation of an already accepted pair
		status = http.StatusOK
	}
	writeJSONResponse(w, status, envelope{"request": request})
}

// RespondToRequestHandler handles PUT /api/v1/friends/requests/{requestID}
func (h *FriendHandler) RespondToRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	var payload respondPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}

	request, err := h.relationships.RespondToRequest(r.Context(), mux.Vars(r)["requestID"], userID, payload.Action)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"request": request})
}

// ListIncomingHandler handles GET /api/v1/friends/requests
func (h *FriendHandler) ListIncomingHandler(w http.ResponseWriter, r *http.Request) {
	h.listPending(w, r, h.relationships.ListIncoming)
}

// ListOutgoingHandler handles GET /api/v1/friends/requests/outgoing
func (h *FriendHandler) ListOutgoingHandler(w http.ResponseWriter, r *http.Request) {
	h.listPending(w, r, h.relationships.ListOutgoing)
}

func (h *FriendHandler) listPending(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, userID string) ([]models.FriendRequestView, error)) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	requests, err := list(r.Context(), userID)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"requests": requests})
}

// ListFriendsHandler handles GET /api/v1/friends and GET /api/v1/contacts
func (h *FriendHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	friends, err := h.relationships.ListContacts(r.Context(), userID)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"friends": friends})
}

// RemoveFriendHandler handles DELETE /api/v1/friends/{userID}
func (h *FriendHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	if err := h.relationships.RemoveFriend(r.Context(), userID, mux.Vars(r)["userID"]); err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"message": "好友已移除"})
}

// SyncFriendsHandler handles POST /api/v1/friends/sync
func (h *FriendHandler) SyncFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	res, err := h.relationships.SyncFriends(r.Context(), userID)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"synced": res.Synced, "friends": res.Friends})
}
