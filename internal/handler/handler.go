// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/engine"
	"github.com/yipai/yipai/pkg/errors"
)

// Handler 排班引擎HTTP处理器
type Handler struct {
	engine *engine.Engine
}

// New 创建处理器
func New(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.GetHTTPStatus(err))

	body := map[string]interface{}{
		"error": true,
		"code":  errors.GetCode(err),
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		body["message"] = appErr.Message
		if appErr.Details != "" {
			body["details"] = appErr.Details
		}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
	} else {
		body["message"] = err.Error()
	}
	json.NewEncoder(w).Encode(body)
}

// requireMethod 校验请求方法
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持"+method+"方法"))
		return false
	}
	return true
}

// decodeJSON 解析请求体
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// parseUUID 解析UUID参数
func parseUUID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errors.InvalidInput(field, "不能为空")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.InvalidInput(field, "无效的UUID格式")
	}
	return id, nil
}

// pathID 从路由参数中取UUID
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	return parseUUID(name, r.PathValue(name))
}
