// File: app/app.go
package app

import (
	"context"
	"go-auth-api/config"
	"go-auth-api/db"
	"go-auth-api/handler"
	"go-auth-api/logger"
	"go-auth-api/repository"
	"go-auth-api/router"
	"go-auth-api/service"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// buildRouter wires repositories, services, handlers and middleware into the
// final handler chain. Run and NewTestApp share it so integration tests
// exercise exactly the production route table.
func buildRouter(userRepo repository.IUserRepository, counters service.CounterStore) http.Handler {
	authService := service.NewAuthService(userRepo)
	authHandler := handler.NewAuthHandler(authService)

	rlCfg := config.AppConfig.RateLimit

	// The general limiter covers the entire route table; only health checks
	// and the swagger assets bypass it.
	apiLimiter := handler.NewRateLimiter(counters, "api", rlCfg.API)
	apiLimiter.Skip = func(r *http.Request) bool {
		return r.URL.Path == "/health" || r.URL.Path == "/" ||
			strings.HasPrefix(r.URL.Path, "/swagger/")
	}

	// Only failed attempts count toward the auth budget, so a legitimate
	// client cannot lock itself out by logging in often.
	authLimiter := handler.NewRateLimiter(counters, "auth", rlCfg.Auth)
	authLimiter.SkipSuccessful = true

	registerLimiter := handler.NewRateLimiter(counters, "register", rlCfg.Register)

	return router.NewRouter(authHandler, handler.AuthMiddleware(authService), router.Limiters{
		API:      apiLimiter,
		Auth:     authLimiter,
		Register: registerLimiter,
	})
}

func Run() {
	config.LoadConfig(".")
	logger.Init(config.AppConfig.Server.Environment)
	logger.Log.Info("Logger initialized")
	logger.Log.Info("Configuration loaded successfully")

	database, err := db.Connect()
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate("file://db/migrations"); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	redisClient, err := db.ConnectRedis()
	if err != nil {
		logger.Log.Fatalf("Error connecting to redis: %v", err)
	}
	defer redisClient.Close()

	userRepo := repository.NewUserRepository(database)
	counters := service.NewRedisCounterStore(redisClient)

	r := buildRouter(userRepo, counters)

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

// TestApp bundles the wired router for integration tests.
type TestApp struct {
	Router http.Handler
}

// NewTestApp builds the application against the given store implementations,
// typically the in-memory repository and a miniredis-backed counter store.
func NewTestApp(userRepo repository.IUserRepository, counters service.CounterStore) *TestApp {
	return &TestApp{Router: buildRouter(userRepo, counters)}
}
