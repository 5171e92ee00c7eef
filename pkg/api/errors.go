package api

import (
	"fmt"
	"net/http"

	"taskboard-api/pkg/task"

	"github.com/pkg/errors"
)

type ErrorCode string

const (
	ErrParse              ErrorCode = "PARSE_ERROR"
	ErrBadRequest         ErrorCode = "BAD_REQUEST"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrMethodNotSupported ErrorCode = "METHOD_NOT_SUPPORTED"
	ErrPayloadTooLarge    ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrInternal           ErrorCode = "INTERNAL_SERVER_ERROR"
)

var jsonRPCCodes = map[ErrorCode]int{
	ErrParse:              -32700,
	ErrBadRequest:         -32600,
	ErrNotFound:           -32004,
	ErrMethodNotSupported: -32005,
	ErrPayloadTooLarge:    -32413,
	ErrInternal:           -32603,
}

var httpStatuses = map[ErrorCode]int{
	ErrParse:              http.StatusBadRequest,
	ErrBadRequest:         http.StatusBadRequest,
	ErrNotFound:           http.StatusNotFound,
	ErrMethodNotSupported: http.StatusMethodNotAllowed,
	ErrPayloadTooLarge:    http.StatusRequestEntityTooLarge,
	ErrInternal:           http.StatusInternalServerError,
}

// RPCError is an error as the caller sees it.
type RPCError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *RPCError) Error() string {
	return e.Message
}

func (e *RPCError) Unwrap() error {
	return e.Cause
}

func (e *RPCError) JSONRPCCode() int {
	return jsonRPCCodes[e.Code]
}

func (e *RPCError) HTTPStatus() int {
	if status, ok := httpStatuses[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newRPCError(code ErrorCode, format string, args ...interface{}) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// toRPCError maps task errors onto RPC error codes. The message is passed
// through untouched so clients can show it as is.
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	switch {
	case task.IsValidationError(err):
		return &RPCError{Code: ErrBadRequest, Message: err.Error(), Cause: err}
	case task.IsNotFoundError(err):
		return &RPCError{Code: ErrNotFound, Message: err.Error(), Cause: err}
	default:
		return &RPCError{Code: ErrInternal, Message: err.Error(), Cause: err}
	}
}
