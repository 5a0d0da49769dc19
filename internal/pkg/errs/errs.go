package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tempchat/internal/pkg/logx"
)

// CustomError carries an application code, a client-facing message and an HTTP status.
type CustomError struct {
	Code    int
	Message string
	Status  int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds a *CustomError for a known code.
// details are printf arguments for messages that contain a verb; for ErrUnknown an
// error in details[0] is logged instead. Unknown codes fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("code %d missing from errorMap", code),
			"Unknown error code requested",
			"requested_code", code,
		)
		templateErr = errorMap[ErrUnknown]
	}

	customErr := templateErr
	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	switch {
	case len(details) == 0:
	case customErr.Code == ErrUnknown || customErr.Code == ErrStorageFailed:
		if cause, ok := details[0].(error); ok {
			logx.Error(cause, "Internal error reported to client", "code", customErr.Code)
		}
	case strings.Contains(customErr.Message, "%"):
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	default:
		logx.Warn("Error details ignored: message has no format verbs", "code", code)
	}

	return &customErr
}

// CodeOf returns the application code carried by err, or ErrUnknown.
func CodeOf(err error) int {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code
	}
	return ErrUnknown
}
