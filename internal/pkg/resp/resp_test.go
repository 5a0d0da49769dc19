package resp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempchat/internal/pkg/errs"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var body JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondSuccess(rec, httptest.NewRequest(http.MethodGet, "/", nil), map[string]int{"count": 2})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "success", body.Message)
}

func TestRespondErr_CustomError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("lookup: %w", errs.NewError(errs.ErrRoomNotFound))
	RespondErr(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrRoomNotFound, decode(t, rec).Code)
}

func TestRespondErr_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErr(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errs.ErrUnknown, decode(t, rec).Code)
}

func TestRespondError_EchoesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
	}))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := decode(t, rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrRoomNotFound, body.Code)
	assert.NotEmpty(t, body.RequestID)
}
