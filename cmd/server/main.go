package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/account-backend/internal/api"
	"github.com/dom/account-backend/internal/config"
	"github.com/dom/account-backend/internal/logging"
	"github.com/dom/account-backend/internal/media"
	"github.com/dom/account-backend/internal/ratelimit"
	"github.com/dom/account-backend/internal/repository"
	"github.com/dom/account-backend/internal/repository/memory"
	"github.com/dom/account-backend/internal/repository/mongo"
	"github.com/dom/account-backend/internal/repository/postgres"
	"github.com/dom/account-backend/internal/service"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize credential store
	repos, closeStore, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open credential store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	// Initialize media store
	mediaStore, err := media.NewS3Store(ctx, media.Config{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
		KeyPrefix:     "accounts",
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize media store", zap.Error(err))
	}

	// Failed-login throttling is optional
	var limiter service.LoginLimiter
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		limiter = ratelimit.NewLoginLimiter(client, cfg.LoginMaxAttempts, cfg.LoginWindow)
	}

	// Initialize services
	services := service.NewServices(repos, mediaStore, limiter, cfg, logger)

	// Initialize router
	router := api.NewRouter(services, cfg, logger)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}

func openRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Repositories, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.NewConnection(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			client.Disconnect(ctx)
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongodb disconnect failed", zap.Error(err))
			}
		}
		return mongo.NewRepositories(db), closeFn, nil

	case config.StorePostgres:
		db, err := postgres.NewConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return postgres.NewRepositories(db), closeFn, nil

	case config.StoreMemory:
		logger.Warn("using in-memory credential store, accounts are lost on restart")
		return memory.NewRepositories(), func() {}, nil

	default:
		return nil, nil, errors.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
