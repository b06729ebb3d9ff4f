package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/orgdesk/orgdesk-api/internal/account"
	"github.com/orgdesk/orgdesk-api/internal/auth"
	"github.com/orgdesk/orgdesk-api/internal/config"
	"github.com/orgdesk/orgdesk-api/internal/database"
	"github.com/orgdesk/orgdesk-api/internal/email"
	httpServer "github.com/orgdesk/orgdesk-api/internal/http"
	"github.com/orgdesk/orgdesk-api/internal/logging"
	"github.com/orgdesk/orgdesk-api/internal/migrations"
	"github.com/orgdesk/orgdesk-api/internal/ratelimit"
)

// @title           Orgdesk API
// @version         1.0
// @description     Business-management backend: identity and session lifecycle service.

// @host      localhost:8080
// @BasePath  /

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(context.Background(), db.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Repositories
	accountRepo := account.NewRepository(db)
	sessionRepo := auth.NewBunSessionRepository(db)

	rateLimiter := ratelimit.NewLimiter(redisClient)

	sessionManager := auth.NewSessionManager(sessionRepo, accountRepo, auth.SessionManagerConfig{
		Duration:     cfg.Session.Duration,
		CookieName:   cfg.Session.CookieName,
		CookieDomain: cfg.Session.CookieDomain,
		Secure:       !cfg.Server.IsDevelopment(),
	})

	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FrontendURL,
	)

	authService := auth.NewService(accountRepo, sessionManager, emailService, logger)

	authHandler := auth.NewHandler(authService, sessionManager, rateLimiter, logger)
	authMiddleware := auth.NewMiddleware(sessionManager)

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
	)

	// Expired sessions are treated as absent at validation time; this job
	// reclaims rows that are never presented again.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go sessionCleanupLoop(cleanupCtx, sessionRepo, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// sessionCleanupLoop periodically purges expired session rows.
func sessionCleanupLoop(ctx context.Context, sessions *auth.BunSessionRepository, logger *logging.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				logger.Warn("failed to purge expired sessions", "error", err)
			}
		}
	}
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
