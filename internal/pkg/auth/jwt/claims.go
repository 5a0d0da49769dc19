package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of an account token.
type Payload struct {
	jwt.StandardClaims `json:"standard_claims"`

	// Username is the account the token was issued to.
	Username string `json:"username"`

	// DisplayName is informational; the server never trusts it for identity checks.
	DisplayName string `json:"display_name,omitempty"`
}
