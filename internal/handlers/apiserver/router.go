package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Handlers 汇总了 API 服务器的所有处理器。
type Handlers struct {
	Auth    *AuthHandler
	User    *UserHandler
	Friend  *FriendHandler
	Message *MessageHandler
	Health  *HealthHandler
}

// NewRouter 注册全部路由。authMW 只作用于 /api/v1 下的路由。
func NewRouter(h Handlers, authMW mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()

	// 公开路由
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", h.Auth.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)
	r.HandleFunc("/profile/{userID}", h.User.GetUserProfileHandler).Methods(http.MethodGet)
	r.HandleFunc("/health/db", h.Health.DatabaseHandler).Methods(http.MethodGet)

	// 需要认证的路由
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW)

	api.HandleFunc("/auth/logout", h.Auth.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.Auth.Me).Methods(http.MethodGet)

	api.HandleFunc("/profile", h.User.GetMyProfileHandler).Methods(http.MethodGet)
	api.HandleFunc("/profile", h.User.UpdateMyProfileHandler).Methods(http.MethodPut)
	api.HandleFunc("/users/search", h.User.SearchUsersHandler).Methods(http.MethodGet)

	friends := api.PathPrefix("/friends").Subrouter()
	friends.HandleFunc("", h.Friend.ListFriendsHandler).Methods(http.MethodGet)
	friends.HandleFunc("/sync", h.Friend.SyncFriendsHandler).Methods(http.MethodPost)
	friends.HandleFunc("/requests", h.Friend.SubmitRequestHandler).Methods(http.MethodPost)
	friends.HandleFunc("/requests", h.Friend.ListIncomingHandler).Methods(http.MethodGet)
	friends.HandleFunc("/requests/outgoing", h.Friend.ListOutgoingHandler).Methods(http.MethodGet)
	friends.HandleFunc("/requests/{requestID}", h.Friend.RespondToRequestHandler).Methods(http.MethodPut)
	friends.HandleFunc("/{userID}", h.Friend.RemoveFriendHandler).Methods(http.MethodDelete)
	api.HandleFunc("/contacts", h.Friend.ListFriendsHandler).Methods(http.MethodGet)

	// /messages/unread 必须在 /messages/{userID} 之前注册
	api.HandleFunc("/messages", h.Message.SendMessageHandler).Methods(http.MethodPost)
	api.HandleFunc("/messages", h.Message.ListConversationsHandler).Methods(http.MethodGet)
	api.HandleFunc("/messages/unread", h.Message.UnreadCountHandler).Methods(http.MethodGet)
	api.HandleFunc("/messages/{userID}", h.Message.GetConversationHandler).Methods(http.MethodGet)

	return r
}
