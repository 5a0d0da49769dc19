/*
Package req provides helpers for parsing HTTP request bodies and path/query values.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tempchat/internal/pkg/errs"
)

// MaxJSONBodySize bounds JSON request bodies accepted by BindJSON.
const MaxJSONBodySize int64 = 1 << 20

// BindJSON decodes the JSON request body into dst.
// Unknown fields, trailing data and bodies larger than MaxJSONBodySize are rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// OptionalJSON behaves like BindJSON but accepts an empty body, leaving dst untouched.
func OptionalJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return BindJSON(w, r, dst)
}
