package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/config"
	"github.com/craigary/telegram-summary-bot/internal/genai"
	"github.com/craigary/telegram-summary-bot/internal/messaging"
	"github.com/craigary/telegram-summary-bot/internal/observability"
	"github.com/craigary/telegram-summary-bot/internal/repository/postgres"
	"github.com/craigary/telegram-summary-bot/internal/service"
	"github.com/craigary/telegram-summary-bot/internal/telegram"
)

// jobTimeout bounds one digest run end to end. Generation over a full day of
// messages can take minutes, so this is deliberately generous.
const jobTimeout = 10 * time.Minute

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

	slog.Info("starting digest worker")

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer rmqCancel()

	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	slog.Info("connected to rabbitmq")

	messageRepo := postgres.NewMessageRepository(db)
	generator := genai.NewClient(cfg.GeminiAPIURL, cfg.GeminiAPIKey, cfg.GeminiModel)
	sender := telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramToken)

	digestService := service.NewDigestService(messageRepo, generator, sender)

	msgs, err := rmq.ConsumeDigestJobs()
	if err != nil {
		slog.Error("failed to start consuming", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("digest worker is ready to process jobs")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping job consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("job channel closed")
					return
				}
				jobCtx, jobCancel := context.WithTimeout(ctx, jobTimeout)
				if err := processJob(jobCtx, msg.Body, digestService); err != nil {
					slog.Error("error processing digest job", slog.String("error", err.Error()))
				}
				jobCancel()
				// Failed jobs are acked too. The ledger dispatches one job per
				// day; a redelivery loop would hammer the model for nothing.
				msg.Ack(false)
			}
		}
	}()

	<-sigChan
	slog.Info("shutting down digest worker")
	cancel()
	time.Sleep(1 * time.Second)
	slog.Info("digest worker stopped")
}

func processJob(ctx context.Context, body []byte, digestService *service.DigestService) error {
	var job messaging.DigestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	slog.Info("processing digest job",
		slog.String("job_id", job.ID),
		slog.String("group_id", job.GroupID),
		slog.String("run_date", job.RunDate))

	if err := digestService.Run(ctx, job.GroupID, job.TopicID); err != nil {
		return fmt.Errorf("digest run for group %s failed: %w", job.GroupID, err)
	}

	slog.Info("digest job completed",
		slog.String("job_id", job.ID),
		slog.String("group_id", job.GroupID))
	return nil
}
