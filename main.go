package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"

	"github.com/msomdec/snapgram/internal/cache"
	"github.com/msomdec/snapgram/internal/config"
	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/filestore/filesystem"
	"github.com/msomdec/snapgram/internal/filestore/s3"
	"github.com/msomdec/snapgram/internal/handler"
	"github.com/msomdec/snapgram/internal/logging"
	"github.com/msomdec/snapgram/internal/queries"
	"github.com/msomdec/snapgram/internal/repository/postgres"
	"github.com/msomdec/snapgram/internal/repository/sqlite"
	"github.com/msomdec/snapgram/internal/service"
)

// database is a document store that can also hold file bytes.
type database interface {
	domain.Database
	FileStore() domain.FileStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied", "driver", cfg.Database.Driver)

	store, err := openFileStore(ctx, cfg.Storage, db, logger)
	if err != nil {
		slog.Error("failed to open file storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	urls := service.URLBuilder{Endpoint: cfg.Server.PublicURL, ProjectID: cfg.Server.ProjectID}
	authService := service.NewAuthService(db, urls, service.AuthOptions{
		JWTSecret:  cfg.Auth.JWTSecret,
		BcryptCost: cfg.Auth.BcryptCost,
		SessionTTL: cfg.Auth.SessionTTLDuration(),
	}, logger)
	fileService := service.NewFileService(store, urls, cfg.Storage.MaxUploadSizeBytes(), logger)
	postService := service.NewPostService(db.Posts(), fileService, logger)
	saveService := service.NewSaveService(db.Saves(), db.Posts(), logger)
	userService := service.NewUserService(db.Users(), fileService, logger)

	queryCache := cache.New(cache.Options{
		StaleTime: cfg.Cache.StaleTimeDuration(),
		GCTime:    cfg.Cache.GCTimeDuration(),
		Logger:    logger,
	})
	defer queryCache.Close()
	q := queries.New(queryCache, authService, postService, saveService, userService)

	// Five sign-in attempts per minute per client, with bursts of five.
	loginLimiter := service.NewTokenBucket(5.0/60.0, 5)
	defer loginLimiter.Stop()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, q, fileService, db, loginLimiter, handler.Options{
		CookieSecure:  cfg.Server.SecureCookies(),
		MaxUploadSize: cfg.Storage.MaxUploadSizeBytes(),
	})

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler(handler.SecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "public_url", cfg.Server.PublicURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer cancel()

	// Closing the cache ends open event streams so Shutdown does not wait on them.
	queryCache.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (database, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.URL, cfg.MaxConns)
	case config.DriverSQLite:
		return sqlite.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

func openFileStore(ctx context.Context, cfg config.StorageConfig, db database, logger *slog.Logger) (domain.FileStore, error) {
	switch cfg.Backend {
	case config.StorageFilesystem:
		return filesystem.New(cfg.Path, logger)
	case config.StorageS3:
		return s3.New(ctx, s3.Options{Bucket: cfg.Bucket, Endpoint: cfg.S3Endpoint, Region: cfg.S3Region}, logger)
	case config.StorageDatabase:
		return db.FileStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
