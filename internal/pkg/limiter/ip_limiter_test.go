package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestMiddleware_RejectsOverBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Every(time.Hour), 2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = "198.51.100.7:5000"
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// A different client has its own bucket.
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "198.51.100.8:5000"
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrune_RemovesFullBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, rate.Every(time.Hour), 1)
	l.GetLimiter("idle")
	l.GetLimiter("busy").Allow()

	removed, remaining := l.prune(time.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, remaining)
}
