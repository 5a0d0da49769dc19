/*
Package limiter provides per-IP rate limiting for the HTTP boundary.

Each client IP gets its own token bucket (rate.Limiter). A background goroutine
removes buckets that have refilled completely so idle clients do not pin memory.
*/
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"tempchat/internal/pkg/errs"
	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/metrics"
	"tempchat/internal/pkg/resp"

	"golang.org/x/time/rate"
)

const cleanupInterval = 3 * time.Minute

// IPRateLimiter implements a rate limiter keyed by client IP address.
type IPRateLimiter struct {
	mu *sync.RWMutex

	// limits maps client IP address to its token bucket.
	limits map[string]*rate.Limiter

	// r is the refill rate in events per second.
	r rate.Limit

	// b is the bucket size.
	b int
}

// NewIPRateLimiter creates a limiter with rate r and burst b.
// The cleanup goroutine runs until ctx is cancelled.
func NewIPRateLimiter(ctx context.Context, r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		mu:     &sync.RWMutex{},
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.cleanUpVisitors(ctx)

	return i
}

// GetLimiter returns the bucket for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// prune removes buckets that are full at now and returns how many were removed
// and how many remain.
func (i *IPRateLimiter) prune(now time.Time) (removed, remaining int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for ip, limiter := range i.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(i.limits, ip)
			removed++
		}
	}
	return removed, len(i.limits)
}

func (i *IPRateLimiter) cleanUpVisitors(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, remaining := i.prune(now)
			if removed > 0 {
				logx.Info("Rate limiter cleanup finished", "removed", removed, "remaining", remaining)
			}
		}
	}
}

// Middleware rejects requests over the limit with ErrRateLimitExceeded (HTTP 429).
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !i.GetLimiter(ip).Allow() {
			metrics.RateLimitHits.Inc()
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
