package metastore

import (
	"errors"
	"fmt"
)

// Store error codes.  The values follow the store's negative error code
// convention; `CodeOK` is never carried by an `Error`.
const (
	CodeOK           int32 = 0
	CodeNoAccess     int32 = -818000
	CodeNoSuchObject int32 = -814000
	CodeNoSuchAttr   int32 = -808000
	CodeInternal     int32 = -900000
)

// `Error` is a store failure with the store's error code and message.
type Error struct {
	Code    int32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("store error %d: %s", e.Code, e.Message)
}

func NewError(code int32, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// `ErrorCode()` returns the store code of `err`, or `CodeInternal` if `err`
// is not a store error.
func ErrorCode(err error) int32 {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return CodeInternal
}

func IsNoAccess(err error) bool {
	return ErrorCode(err) == CodeNoAccess
}

func IsNoSuchAttr(err error) bool {
	return ErrorCode(err) == CodeNoSuchAttr
}

func IsNoSuchObject(err error) bool {
	return ErrorCode(err) == CodeNoSuchObject
}
