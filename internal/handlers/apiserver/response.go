package apiserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"stayprivate/internal/apperr"
	"stayprivate/internal/middleware"
)

// envelope 是成功响应的负载，写出时会自动加上 "ok": true。
type envelope map[string]interface{}

// ErrorResponse 是失败响应的统一结构。
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data envelope) {
	if data == nil {
		data = envelope{}
	}
	data["ok"] = true
	writeJSON(w, statusCode, data)
}

// writeJSONError 把应用错误映射为状态码和失败响应。Unavailable 和未分类的错误会记录日志。
func writeJSONError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{
		OK:      false,
		Error:   apperr.ReasonOf(err),
		Message: apperr.MessageOf(err),
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// 头部已经发出，编码失败时无法再改写响应
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON 解析请求体，失败时返回 InvalidInput。
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(err, apperr.KindInvalidInput, apperr.ReasonValidationFailed, "请求体无效")
	}
	return nil
}

// callerID 从上下文中取出已认证的用户 ID。
func callerID(r *http.Request) (string, error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return "", apperr.New(apperr.KindUnauthenticated, apperr.ReasonUnauthenticated, "无法从上下文中获取用户ID")
	}
	return userID, nil
}
