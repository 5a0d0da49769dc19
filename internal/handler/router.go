/*
Package handler provides the HTTP handlers and routing setup for the TempChat server.

This file defines the main Router, applying middleware for request ids, logging, metrics,
CORS and token extraction, plus IP-based rate limiting on room creation and websocket upgrades.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"tempchat/internal/app/chat"
	"tempchat/internal/pkg/auth/jwt"
	"tempchat/internal/pkg/limiter"
	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/metrics"
	"tempchat/internal/pkg/resp"
)

const (
	CreateRate   = 0.2
	CreateBurst  = 5
	ConnectRate  = 1
	ConnectBurst = 10
)

// Router sets up the HTTP routing table. The rate limiters' cleanup goroutines stop with ctx.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(CreateRate), CreateBurst)
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := deps.Store.Ping(r.Context()); err != nil {
			logx.Error(err, "Health check: store unreachable")
			status = "degraded"
		}

		resp.RespondSuccess(w, r, map[string]any{
			"status":      status,
			"service":     "TempChat Server",
			"store":       deps.Config.StoreBackend,
			"rooms":       deps.Manager.Registry().RoomCount(),
			"fileOffload": deps.StorageService != nil,
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", HandleSignup(deps))
			auth.Post("/login", HandleLogin(deps))
		})

		api.Route("/rooms", func(rooms chi.Router) {
			rooms.With(createLimiter.Middleware).Post("/", HandleUpsertRoom(deps))
			rooms.Get("/{code}", HandleGetRoom(deps))
			rooms.Delete("/{code}", HandleDeleteRoom(deps))
			rooms.Get("/{code}/messages", HandleListMessages(deps))
		})

		api.Get("/files/download", HandleDownloadFile(deps))
	})

	r.With(connectLimiter.Middleware, jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret)).
		Get("/ws", HandleWebSocket(deps.Manager, wsUpgrader, chat.ReadLimit(deps.Config.MaxFileBytes)))

	return r
}
