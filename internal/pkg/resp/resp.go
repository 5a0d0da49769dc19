/*
Package resp writes the JSON envelope every HTTP endpoint answers with:
{"code": 0, "message": "success", "data": ...} on success and the errs code table on failure.
*/
package resp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tempchat/internal/pkg/errs"
)

// JSONResponse is the response envelope.
type JSONResponse struct {
	// Code is 0 on success, otherwise an errs code.
	Code int `json:"code"`

	Message string `json:"message"`

	Data any `json:"data,omitempty"`

	// RequestID echoes the chi request id on failures so clients can quote it.
	RequestID string `json:"requestId,omitempty"`
}

// RespondJSON writes payload with httpStatus.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("http_status", httpStatus).Msg("Error encoding JSON response")
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}

// RespondSuccess sends data with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{Code: 0, Message: "success", Data: data})
}

// RespondError sends customErr with its HTTP status. A nil error is reported as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	if customErr.Status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Warn().Int("code", customErr.Code).Msg("Request failed with server error")
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{
		Code:      customErr.Code,
		Message:   customErr.Message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// RespondErr maps err onto a CustomError (ErrUnknown when it carries none) and sends it.
func RespondErr(w http.ResponseWriter, r *http.Request, err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		customErr = errs.NewError(errs.ErrUnknown, err)
	}
	RespondError(w, r, customErr)
}
