/*
Package handler provides HTTP handler functions for room records and their message history.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tempchat/internal/app/chat"
	"tempchat/internal/app/model"
	"tempchat/internal/app/store"
	"tempchat/internal/pkg/errs"
	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/randx"
	"tempchat/internal/pkg/req"
	"tempchat/internal/pkg/resp"
)

type UpsertRoomInput struct {
	// Code is optional; a 12-character code is generated when omitted.
	Code string `json:"code,omitempty"`
}

// HandleUpsertRoom returns the room with the requested code, creating it if needed.
func HandleUpsertRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input UpsertRoomInput
		if customErr := req.OptionalJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		code := input.Code
		if code == "" {
			generated, err := randx.RoomCode()
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
				return
			}
			code = generated
		}

		room, err := deps.Manager.Registry().EnsureRoom(r.Context(), code)
		if err != nil {
			if errs.CodeOf(err) == errs.ErrUnknown {
				err = errs.NewError(errs.ErrStorageFailed, err)
			}
			resp.RespondErr(w, r, err)
			return
		}

		logx.Info("Room upserted", "room_code", room.Code)
		resp.RespondSuccess(w, r, room)
	}
}

// roomCodeParam normalizes the {code} path parameter.
func roomCodeParam(r *http.Request) (string, error) {
	return chat.NormalizeCode(chi.URLParam(r, "code"))
}

// HandleGetRoom returns the unexpired room record or ErrRoomNotFound.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := roomCodeParam(r)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		room, err := deps.Store.GetRoom(r.Context(), code)
		if errors.Is(err, store.ErrNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed, err))
			return
		}

		resp.RespondSuccess(w, r, room)
	}
}

// HandleListMessages returns the most recent messages of a room, oldest first.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := roomCodeParam(r)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		msgs, err := deps.Store.ListMessages(r.Context(), code, store.MaxMessages)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed, err))
			return
		}
		if msgs == nil {
			msgs = []model.Message{}
		}

		resp.RespondSuccess(w, r, msgs)
	}
}

// HandleDeleteRoom removes a room with its messages and files. Deleting a missing room succeeds.
func HandleDeleteRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := roomCodeParam(r)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		if err := deps.Manager.DeleteRoom(r.Context(), code); err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"code":    code,
			"deleted": true,
		})
	}
}
