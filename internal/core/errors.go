package core

import "fmt"

type ErrorCode string

const (
	ErrBadRequest         ErrorCode = "PVS_BAD_REQUEST"
	ErrNotFound           ErrorCode = "PVS_NOT_FOUND"
	ErrConflict           ErrorCode = "PVS_CONFLICT"
	ErrPreconditionFailed ErrorCode = "PVS_PRECONDITION_FAILED"
	ErrInternal           ErrorCode = "PVS_INTERNAL"
	ErrProvisioner        ErrorCode = "PVS_PROVISIONER_ERROR"
	ErrAgentError         ErrorCode = "PVS_AGENT_ERROR"
	ErrAgentTimeout       ErrorCode = "PVS_AGENT_TIMEOUT"
)

// HTTPStatus returns the HTTP status code for this error code.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	case ErrBadRequest:
		return 400
	case ErrNotFound:
		return 404
	case ErrConflict:
		return 409
	case ErrPreconditionFailed:
		return 412
	case ErrProvisioner, ErrAgentError:
		return 502
	case ErrAgentTimeout:
		return 504
	default:
		return 500
	}
}

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}
