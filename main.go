package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/logger"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/routes"
	"github.com/kendall-kelly/servicehub-api/services"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.Init(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := config.ConnectDatabase(cfg); err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := models.Migrate(config.GetDB()); err != nil {
		zlog.Fatal("Failed to migrate database", zap.Error(err))
	}
	zlog.Info("Database migration completed successfully")

	if cfg.ChatEncryptionKey == "" {
		zlog.Warn("CHAT_ENCRYPTION_KEY not set, chat messages will be unreadable after restart")
	}
	if _, err := services.InitEncryptor(cfg.ChatEncryptionKey); err != nil {
		zlog.Fatal("Failed to initialize chat encryption", zap.Error(err))
	}

	if cfg.RedisURL != "" {
		notifier, err := services.NewRedisNotifier(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Failed to initialize notifier", zap.Error(err))
		}
		defer func() { _ = notifier.Close() }()
		services.SetNotifier(notifier)
		zlog.Info("Publishing notifications to Redis")
	}

	if cfg.AWSS3Bucket != "" {
		if _, err := services.InitS3Service(context.Background(), cfg); err != nil {
			zlog.Fatal("Failed to initialize S3", zap.Error(err))
		}
	} else {
		zlog.Warn("AWS_S3_BUCKET not set, job photos are kept in memory")
		services.SetObjectStore(services.NewMemoryObjectStore())
	}

	auth, err := middleware.EnsureValidToken(cfg)
	if err != nil {
		zlog.Fatal("Failed to set up authentication", zap.Error(err))
	}

	router := routes.SetupRouter(cfg, auth, zlog)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("Server is running", zap.String("addr", srv.Addr), zap.String("env", cfg.GoEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("Server shutdown failed", zap.Error(err))
	}
	zlog.Info("Server stopped")
}
