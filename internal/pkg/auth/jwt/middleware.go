package jwt

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tempchat/internal/pkg/logx"
)

type contextKey string

const (
	// ContextAuthPayloadKey stores the parsed *Payload in the request context.
	ContextAuthPayloadKey contextKey = "auth_payload"

	// TokenQueryParam carries the token on websocket upgrades, where browsers cannot set headers.
	TokenQueryParam = "token"
)

// tokenFromRequest reads "Authorization: Bearer <token>", falling back to the token query parameter.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	return r.URL.Query().Get(TokenQueryParam)
}

// IdentityExtractorMiddleware injects the token's Payload into the request context when a
// valid token is present. Missing or invalid tokens never fail the request; the caller is
// treated as anonymous.
func IdentityExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := ParseToken(tokenString, secretKey)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					logx.Info("Expired JWT provided, treating as anonymous")
				} else {
					logx.Warn("Invalid JWT provided, treating as anonymous", "error", err.Error())
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPayloadFromContext returns the authenticated Payload, or nil for anonymous callers.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)
	if !ok {
		return nil
	}

	return payload
}
