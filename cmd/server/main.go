package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pettycash/internal/config"
	"pettycash/internal/handler"
	"pettycash/internal/middleware"
	"pettycash/internal/notify"
	"pettycash/internal/repository"
	"pettycash/internal/service"
	"pettycash/internal/signature"
	"pettycash/internal/utils"
	"pettycash/internal/web"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.MaxRetries+1)*cfg.Database.RetryInterval)
	defer cancel()

	// --- Database ---
	dbPool, err := config.ConnectDB(startCtx, cfg.Database.DSN, cfg.Database.MaxRetries, cfg.Database.RetryInterval)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := config.AutoMigrate(startCtx, dbPool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// --- Storage ---
	signatures, err := signature.NewStore(cfg.Storage.SignaturesDir)
	if err != nil {
		logger.Error("failed to prepare signature storage", "dir", cfg.Storage.SignaturesDir, "error", err)
		os.Exit(1)
	}

	// --- Session revocation ---
	revocations := repository.NewNopRevocationRepository()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(startCtx).Err(); err != nil {
			logger.Warn("redis is not reachable, logout revocation will fail until it is", "addr", cfg.Redis.Addr, "error", err)
		}
		revocations = repository.NewRedisRevocationRepository(rdb)
	} else {
		logger.Info("REDIS_ADDR not set, sessions are not revoked on logout")
	}

	// --- Decision notifications ---
	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.RabbitMQ.DSN != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			logger.Error("failed to open rabbitmq channel", "error", err)
			os.Exit(1)
		}
		defer ch.Close()

		if err := notify.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
			logger.Error("failed to declare queue", "queue", cfg.RabbitMQ.Queue, "error", err)
			os.Exit(1)
		}
		publisher = notify.NewAMQPPublisher(ch, cfg.RabbitMQ.Queue, cfg.RabbitMQ.PublishTimeout)
	}

	// --- Repositories and services ---
	jwtUtil := utils.NewJWTUtil(cfg.Session.Secret, cfg.Session.TTL)
	userRepo := repository.NewUserRepository(dbPool)
	expenseRepo := repository.NewExpenseRepository(dbPool)

	authService := service.NewAuthService(userRepo, revocations, jwtUtil)
	expenseService := service.NewExpenseService(expenseRepo, signatures, publisher)

	if cfg.Seed.Enabled {
		seeded, err := authService.SeedDefaultUsers(startCtx, cfg.Seed.Password)
		if err != nil {
			logger.Error("failed to seed default users", "error", err)
			os.Exit(1)
		}
		if seeded {
			logger.Info("seeded default users", "emails", []string{"employee@example.com", "senior@example.com"})
		}
	}

	// --- Router ---
	tmpl, err := web.ParseTemplates()
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	corsCfg := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) == 0 || cfg.Server.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	router.Use(cors.New(corsCfg), middleware.MaxBodyBytes(cfg.Server.MaxBodyBytes))

	authMW := middleware.SessionAuthMiddleware(authService, cfg.Session.CookieName)
	authHandler := handler.NewAuthHandler(authService, handler.SessionCookie{
		Name:   cfg.Session.CookieName,
		TTL:    cfg.Session.TTL,
		Secure: cfg.IsProduction(),
	})
	expenseHandler := handler.NewExpenseHandler(expenseService, signatures)

	authHandler.RegisterAuthRoutes(router, authMW)
	expenseHandler.RegisterExpenseRoutes(router, authMW)
	router.GET("/health", handler.Health(dbPool))

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	logger.Info("shutting down server")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}
