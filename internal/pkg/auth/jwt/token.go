package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const (
	// AccountTokenExpiration is the default lifetime of tokens issued at signup and login.
	AccountTokenExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "TempChat-Server"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// GenerateToken signs payload with HS256. The subject is the username and every token
// gets its own id.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.StandardClaims = jwt.StandardClaims{
		Id:        uuid.NewString(),
		Subject:   payload.Username,
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte(secretKey))
}

func hmacKey(secretKey string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}
}

// ParseToken validates tokenString against secretKey and returns its claims.
// Failures wrap ErrTokenExpired or ErrTokenInvalid.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, hmacKey(secretKey))
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	switch {
	case !token.Valid:
		return nil, ErrTokenInvalid
	case claims.Issuer != TokenIssuer:
		return nil, fmt.Errorf("%w: issuer %q", ErrTokenInvalid, claims.Issuer)
	case claims.Username == "" || claims.Subject != claims.Username:
		return nil, fmt.Errorf("%w: subject does not match username", ErrTokenInvalid)
	}

	return claims, nil
}
