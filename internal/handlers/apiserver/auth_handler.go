package apiserver

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/config"
	"stayprivate/internal/middleware"
	"stayprivate/internal/services"
)

// AuthHandler 封装了认证相关的 HTTP 处理器方法。
type AuthHandler struct {
	authService services.AuthService
	cfg         config.AuthConfig
	log         *zap.Logger
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService services.AuthService, cfg config.AuthConfig, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg, log: log}
}

// Register 处理 POST /auth/register。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}

	res, err := h.authService.Register(r.Context(), req)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	h.setAuthCookie(w, res.Token, res.ExpiresAt)
	writeJSONResponse(w, http.StatusCreated, envelope{"token": res.Token, "user": res.User})
}

// Login 处理 POST /auth/login。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}

	res, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	h.setAuthCookie(w, res.Token, res.ExpiresAt)
	writeJSONResponse(w, http.StatusOK, envelope{"token": res.Token, "user": res.User})
}

// Logout 处理 POST /api/v1/auth/logout，将当前 Token 加入黑名单并清除 Cookie。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, h.log, r, apperr.New(apperr.KindUnauthenticated, apperr.ReasonUnauthenticated, "用户未认证或无法解析用户声明"))
		return
	}
	if err := h.authService.Logout(r.Context(), claims); err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	h.setAuthCookie(w, "", time.Unix(0, 0))
	writeJSONResponse(w, http.StatusOK, envelope{"message": "登出成功"})
}

// Me 处理 GET /api/v1/auth/me。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	user, err := h.authService.Me(r.Context(), userID)
	if err != nil {
		writeJSONError(w, h.log, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, envelope{"user": user})
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
