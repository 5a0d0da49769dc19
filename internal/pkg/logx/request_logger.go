package logx

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// AnonymizeIP truncates a client address before it is logged.
// IPv4 keeps the first three octets, IPv6 the first 64 bits; loopback is reported as-is.
func AnonymizeIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		addr = host
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return "unknown_ip"
	}

	if ip.IsLoopback() {
		return ip.String()
	}

	if v4 := ip.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}

	masked := ip.Mask(net.CIDRMask(64, 128))
	return masked.String()
}

// RequestLogger logs one line per HTTP request and stores a request-scoped logger
// in the request context (retrievable with zerolog.Ctx).
func RequestLogger() func(next http.Handler) http.Handler {
	base := Component("http")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := base.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", AnonymizeIP(r.RemoteAddr)).
				Str("method", r.Method).
				Str("uri", r.RequestURI).
				Logger()

			r = r.WithContext(logger.WithContext(r.Context()))

			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			event := logger.Info()
			switch {
			case status >= 500:
				event = logger.Error()
			case status >= 400:
				event = logger.Warn()
			}

			event.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("request completed")
		}

		return http.HandlerFunc(fn)
	}
}
