/*
Package main is the entry point for the TempChat server.

It loads configuration, initializes the global logger, opens the retention store selected
by STORE_BACKEND, starts the chat manager, the retention sweeper and the HTTP server, and
shuts everything down in order on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tempchat/internal/app/chat"
	"tempchat/internal/app/db"
	"tempchat/internal/app/storage"
	"tempchat/internal/app/store"
	"tempchat/internal/app/user"
	"tempchat/internal/configs"
	"tempchat/internal/handler"
	"tempchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_backend", cfg.StoreBackend).
		Dur("grace_window", cfg.GraceWindow).
		Int64("max_file_bytes", cfg.MaxFileBytes).
		Bool("s3_enabled", cfg.S3Enabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open retention store", "backend", cfg.StoreBackend)
	}

	var blobs storage.StorageService
	if cfg.S3Enabled() {
		blobs, err = storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize storage service")
		}
	}

	manager := chat.NewManager(st, chat.Options{
		GraceWindow:  cfg.GraceWindow,
		MaxFileBytes: cfg.MaxFileBytes,
		Blobs:        blobs,
	})

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		store.NewSweeper(st, cfg.SweepInterval).Run(sweepCtx)
	}()

	deps := &handler.AppDeps{
		Manager:        manager,
		Store:          st,
		Users:          user.NewService(st, cfg.JWTSecret, cfg.AccountTTL),
		Config:         cfg,
		StorageService: blobs,
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("TempChat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	manager.Shutdown()

	stopSweeper()
	<-sweeperDone

	if err := st.Close(); err != nil {
		logx.Error(err, "Failed to close retention store")
	}

	logx.Info("Server gracefully stopped.")
}

// openStore builds the backend named by cfg.StoreBackend.
func openStore(ctx context.Context, cfg *configs.AppConfig) (store.Store, error) {
	opts := store.Options{Retention: store.Retention{
		Account: cfg.AccountTTL,
		Room:    cfg.RoomTTL,
		Message: cfg.MessageTTL,
	}}

	switch cfg.StoreBackend {
	case configs.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(pool, opts), nil

	case configs.BackendRedis:
		client, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client, opts), nil

	default:
		return store.NewMemoryStore(opts), nil
	}
}
