package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/config"
	"github.com/craigary/telegram-summary-bot/internal/handler"
	"github.com/craigary/telegram-summary-bot/internal/linkpreview"
	"github.com/craigary/telegram-summary-bot/internal/messaging"
	"github.com/craigary/telegram-summary-bot/internal/middleware"
	"github.com/craigary/telegram-summary-bot/internal/observability"
	"github.com/craigary/telegram-summary-bot/internal/repository/postgres"
	"github.com/craigary/telegram-summary-bot/internal/retention"
	"github.com/craigary/telegram-summary-bot/internal/scheduler"
	"github.com/craigary/telegram-summary-bot/internal/service"
	"github.com/craigary/telegram-summary-bot/internal/telegram"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting summary bot")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(connCtx); err != nil {
		slog.Error("database ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer rmqCancel()

	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", slog.String("timezone", cfg.Timezone), slog.String("error", err.Error()))
		os.Exit(1)
	}

	messageRepo := postgres.NewMessageRepository(db)
	jobLedger := postgres.NewJobLedger(db)

	tgClient := telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramToken)
	expander := linkpreview.NewExtractor()

	archiveService := service.NewArchiveService(messageRepo, expander)
	queryService := service.NewQueryService(messageRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(messageRepo, jobLedger, rmq, retention.NewPolicy(loc), cfg.DigestGroups, cfg.DigestHour)
	go sched.Run(ctx)

	webhookHandler := handler.NewWebhookHandler(archiveService, queryService, tgClient, tgClient, cfg.WebhookSecret)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db, rmq))
	r.Handle("/metrics", promhttp.Handler())

	webhookLimiter := middleware.NewRateLimiter(30, 60)
	defer webhookLimiter.Stop()

	r.Group(func(r chi.Router) {
		r.Use(webhookLimiter.Middleware())
		r.Post("/webhook", webhookHandler.ServeHTTP)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("summary bot listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()

	// Let an in-flight image purge finish before the process exits.
	sched.Wait()

	slog.Info("server stopped gracefully")
}
