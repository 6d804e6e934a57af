// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-task-api/config"
	"go-task-api/db"
	"go-task-api/handler"
	"go-task-api/logger"
	"go-task-api/repository"
	"go-task-api/router"
	"go-task-api/service"

	"github.com/redis/go-redis/v9"
)

func Run() {
	config.LoadConfig(".")
	logger.Init()
	logger.Log.Info("Logger initialized")
	logger.Log.Info("Configuration loaded successfully")

	database, err := db.Connect()
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations("file://db/migrations"); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	// The Redis-backed grace cache is optional: without it, a replayed
	// refresh always takes the reuse-detection path.
	var cache service.ICacheClient
	if config.AppConfig.Redis.Host != "" {
		redisClient, err := db.ConnectRedis()
		if err != nil {
			logger.Log.Fatalf("Error connecting to redis: %v", err)
		}
		defer redisClient.Close()
		cache = redisClient
	} else {
		logger.Log.Warn("Redis not configured, refresh grace window disabled")
	}

	r, err := buildRouter(database, cache)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}

	// --- Start the Server with Graceful Shutdown ---
	port := config.AppConfig.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}

// buildRouter wires repositories, services and handlers together.
func buildRouter(database *sql.DB, cache service.ICacheClient) (http.Handler, error) {
	tokenService, err := service.NewTokenService(&config.AppConfig)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(database)
	tokenRepo := repository.NewTokenRepository(database)

	graceWindow := time.Duration(config.AppConfig.TokenHash.RefreshGraceSeconds) * time.Second
	authService := service.NewAuthService(
		database,
		userRepo,
		tokenRepo,
		tokenService,
		service.NewBcryptVerifier(),
		cache,
		graceWindow,
	)
	authHandler := handler.NewAuthHandler(authService)

	return router.NewRouter(authHandler, tokenService), nil
}

// TestApp exposes the wired router and database to integration tests.
type TestApp struct {
	DB     *sql.DB
	Router http.Handler
}

// NewTestApp builds the full application wiring on top of an externally
// managed database and cache connection.
func NewTestApp(database *sql.DB, redisClient *redis.Client) *TestApp {
	var cache service.ICacheClient
	if redisClient != nil {
		cache = redisClient
	}
	r, err := buildRouter(database, cache)
	if err != nil {
		logger.Log.Fatalf("Error wiring test application: %v", err)
	}
	return &TestApp{DB: database, Router: r}
}
