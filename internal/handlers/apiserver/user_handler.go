package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"stayprivate/internal/services"
)

// UserHandler 封装了用户资料和搜索相关的 HTTP 处理器方法。
type UserHandler struct {
	userService services.UserService
	log         *zap.Logger
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// GetMyProfileHandler 处理 GET /api/v1/profile。
func (h *UserHandler) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"user": user})
}

// UpdateMyProfileHandler 处理 PUT /api/v1/profile。
func (h *UserHandler) UpdateMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	var req services.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"user": user})
}

// GetUserProfileHandler 处理 GET /profile/{userID}，返回任意用户的公开资料。
func (h *UserHandler) GetUserProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.GetPublicProfile(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"user": profile})
}

// SearchUsersHandler 处理 GET /api/v1/users/search?q=...
func (h *UserHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	users, err := h.userService.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"users": users})
}
