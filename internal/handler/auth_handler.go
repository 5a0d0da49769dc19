/*
Package handler provides HTTP handler functions for account signup and login.
*/
package handler

import (
	"net/http"

	"tempchat/internal/pkg/auth/jwt"
	"tempchat/internal/pkg/errs"
	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/req"
	"tempchat/internal/pkg/resp"
)

type CredentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleSignup creates an account and returns it with a fresh token.
func HandleSignup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, err := deps.Users.Signup(r.Context(), input.Username, input.Password)
		if err != nil {
			if errs.CodeOf(err) == errs.ErrUserAlreadyExists {
				logx.Warn("signup conflict: username already exists", "username", input.Username)
			}
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, result)
	}
}

// HandleLogin verifies credentials, records the login time and issues a token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			logx.Info("login: caller already holds a token", "username", identity.Username)
		}

		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, err := deps.Users.Login(r.Context(), input.Username, input.Password)
		if err != nil {
			if errs.CodeOf(err) == errs.ErrInvalidCredentials {
				logx.Warn("login: invalid credentials", "username", input.Username)
			}
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, result)
	}
}
