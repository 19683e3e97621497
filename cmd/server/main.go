package main

import (
	"context"   // Context for startup checks and shutdown
	"errors"    // Error inspection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Graceful shutdown
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging

	"library_system/internal/accounts"   // User accounts and login
	"library_system/internal/api"        // HTTP handlers
	"library_system/internal/catalog"    // Book catalog
	"library_system/internal/config"     // Configuration
	"library_system/internal/db"         // Database connection
	"library_system/internal/events"     // RabbitMQ lifecycle events
	"library_system/internal/lending"    // Transaction lifecycle
	"library_system/internal/middleware" // Auth and rate limiting
	"library_system/internal/store"      // Repositories
	"library_system/internal/utils"      // Redis cache
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	gdb, err := db.Open(cfg.DSN(), cfg.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		logrus.Fatalf("failed to get DB handle: %v", err)
	}
	defer sqlDB.Close()
	st := store.New(gdb)

	// Redis is optional: without it listings are not cached and request locks are per process
	var redisClient *redis.Client
	locker := lending.RequestLocker(lending.NewLocalLocker())
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		defer redisClient.Close()
		// Test Redis connection
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		locker = lending.NewRedisLocker(redisClient)
		logrus.WithField("addr", cfg.RedisAddr).Info("Redis connected")
	} else {
		logrus.Warn("REDIS_ADDR not set, running without cache and with in-process request locks")
	}

	// RabbitMQ is optional: without it lifecycle events are dropped
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		amqpPublisher := events.NewAMQPPublisher(cfg.RabbitMQURL)
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		go func() {
			err := events.Consume(ctx, cfg.RabbitMQURL, events.LogHandler(logrus.StandardLogger()), logrus.StandardLogger())
			if err != nil && !errors.Is(err, context.Canceled) {
				logrus.WithError(err).Error("Event consumer stopped")
			}
		}()
	} else {
		logrus.Warn("RABBITMQ_URL not set, lifecycle events are disabled")
	}

	// Services
	cache := utils.NewCache(redisClient, cfg.CacheTTL, logrus.StandardLogger())
	acc := accounts.NewService(st, cfg.JWTSecret, logrus.StandardLogger())
	cat := catalog.NewService(st, cache, logrus.StandardLogger())
	lm := lending.NewManager(st, cfg.LoanPolicy,
		lending.WithLocker(locker),
		lending.WithPublisher(publisher),
		lending.WithBookCache(cat),
	)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default() // Gin router instance
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	api.RegisterRoutes(r, api.Deps{
		Accounts:     acc,
		Catalog:      cat,
		Lending:      lm,
		JWTSecret:    cfg.JWTSecret,
		LoginLimiter: middleware.NewRateLimiter(ctx, cfg.LoginRate, cfg.LoginBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":             cfg.AppPort,
			"loan_period_days": cfg.LoanPolicy.LoanPeriodDays,
			"fine_per_day":     cfg.LoanPolicy.FinePerDay,
		}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}

// setupLogger configures the standard logrus logger
func setupLogger(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
