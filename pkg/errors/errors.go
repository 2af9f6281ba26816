// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown       Code = "UNKNOWN"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeTimeout       Code = "TIMEOUT"

	// 排班引擎相关
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION" // 触碰硬上限被拒
	CodeScheduleConflict    Code = "SCHEDULE_CONFLICT"    // 同日时间重叠
	CodeStaleState          Code = "STALE_STATE_CONFLICT" // 并发修改冲突（可重试）
	CodeNoEligibleStaff     Code = "NO_ELIGIBLE_STAFF"    // 无可用员工
	CodeInvalidTransition   Code = "INVALID_TRANSITION"   // 非法状态流转
	CodeNotEligible         Code = "NOT_ELIGIBLE"         // 不满足申请前置条件

	// 数据相关
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
	CodeValidationFail     Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeScheduleConflict, CodeStaleState, CodeInvalidTransition:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeConstraintViolation, CodeNoEligibleStaff, CodeNotEligible:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsRetryable 检查错误是否可重试（并发冲突类）
func IsRetryable(err error) bool {
	return Is(err, CodeStaleState)
}

// 预定义错误
var (
	ErrNotFound            = New(CodeNotFound, "资源不存在")
	ErrInvalidInput        = New(CodeInvalidInput, "输入参数无效")
	ErrInternal            = New(CodeInternal, "内部错误")
	ErrConstraintViolation = New(CodeConstraintViolation, "违反工作量硬上限")
	ErrStaleState          = New(CodeStaleState, "并发修改冲突，请重试")
)

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// ConstraintViolation 创建硬上限违反错误
func ConstraintViolation(staffID, details string) *AppError {
	return New(CodeConstraintViolation, fmt.Sprintf("员工 %s 触碰工作量上限: %s", staffID, details))
}

// ScheduleConflict 创建排班冲突错误
func ScheduleConflict(staffID, date, details string) *AppError {
	return New(CodeScheduleConflict, fmt.Sprintf("员工 %s 在 %s 存在排班冲突: %s", staffID, date, details))
}

// StaleState 创建并发冲突错误
func StaleState(resource, id string) *AppError {
	return New(CodeStaleState, fmt.Sprintf("%s '%s' 已被并发修改", resource, id))
}

// InvalidTransition 创建非法状态流转错误
func InvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("状态不允许从 %s 流转到 %s", from, to))
}

// NotEligible 创建不满足前置条件错误
func NotEligible(reason string) *AppError {
	return New(CodeNotEligible, reason)
}

// PersistenceFailure 包装存储层错误，原样向上传递
func PersistenceFailure(err error, op string) *AppError {
	return Wrap(err, CodePersistenceFailure, fmt.Sprintf("存储操作失败: %s", op))
}
