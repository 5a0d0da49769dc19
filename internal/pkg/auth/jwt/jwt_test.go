package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(&Payload{Username: "alice", DisplayName: "Alice"}, testSecret, time.Hour)
	require.NoError(t, err)

	payload, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", payload.Username)
	assert.Equal(t, TokenIssuer, payload.Issuer)
}

func TestParseToken_Rejects(t *testing.T) {
	token, err := GenerateToken(&Payload{Username: "alice"}, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired, err := GenerateToken(&Payload{Username: "alice"}, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(expired, testSecret)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = ParseToken("not.a.token", testSecret)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestGenerateToken_UniqueIDs(t *testing.T) {
	a := &Payload{Username: "alice"}
	b := &Payload{Username: "alice"}

	_, err := GenerateToken(a, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = GenerateToken(b, testSecret, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a.Id, b.Id)
	assert.Equal(t, "alice", a.Subject)
}

func TestIdentityExtractorMiddleware(t *testing.T) {
	token, err := GenerateToken(&Payload{Username: "bob"}, testSecret, time.Hour)
	require.NoError(t, err)

	var got *Payload
	h := IdentityExtractorMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetPayloadFromContext(r)
	}))

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantUser string
	}{
		{"header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "bob"},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=" + token }, "bob"},
		{"anonymous", func(r *http.Request) {}, ""},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.prepare(r)
			h.ServeHTTP(httptest.NewRecorder(), r)

			if tt.wantUser == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantUser, got.Username)
		})
	}
}
