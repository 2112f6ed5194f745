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

	"github.com/hibiken/asynq"

	"github.com/gatehouse-api/gatehouse/internal/app"
	"github.com/gatehouse-api/gatehouse/internal/auth"
	"github.com/gatehouse-api/gatehouse/internal/mail"
	"github.com/gatehouse-api/gatehouse/internal/platform/cache"
	"github.com/gatehouse-api/gatehouse/internal/platform/db"
	"github.com/gatehouse-api/gatehouse/internal/users"
	"github.com/gatehouse-api/gatehouse/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	clock := auth.SystemClock{}
	codec := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.AppName,
	}, clock)

	authRepo := auth.NewRepository(pool)
	revocation := auth.NewRevocationStore(redisClient)
	mailer := mail.NewQueueMailer(jobClient)
	authService := auth.NewService(auth.ServiceConfig{
		AppName: cfg.AppName,
		BaseURL: cfg.BaseURL,
	}, authRepo, auth.NewHasher(), codec, clock, mailer, revocation, logger)
	authHandler := auth.NewHandler(logger, authService, codec, revocation)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, auth.RequireAccessToken(codec, revocation, logger))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthHandler:  authHandler,
		UsersHandler: usersHandler,
		JobHandler:   jobHandler,
		Pool:         pool,
		Redis:        redisClient,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
