// Package scheduler drives the bot's clock-based work: nightly retention
// sweeps and daily digest dispatch. All daily jobs are gated through the job
// ledger, so running several bot replicas does not duplicate work.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/config"
	"github.com/craigary/telegram-summary-bot/internal/domain"
	"github.com/craigary/telegram-summary-bot/internal/observability"
	"github.com/craigary/telegram-summary-bot/internal/retention"
)

const tickInterval = time.Minute

// DigestPublisher hands digest jobs to the worker queue.
type DigestPublisher interface {
	PublishDigestJob(ctx context.Context, groupID string, topicID *int64, runDate string) error
}

// Scheduler ticks once a minute and fires whatever the current wall clock
// calls for.
type Scheduler struct {
	messageRepo domain.MessageRepository
	ledger      domain.JobLedger
	publisher   DigestPublisher
	policy      retention.Policy
	targets     []config.DigestTarget
	digestHour  int

	mu    sync.Mutex
	tasks []*retention.Task
}

func New(messageRepo domain.MessageRepository, ledger domain.JobLedger, publisher DigestPublisher, policy retention.Policy, targets []config.DigestTarget, digestHour int) *Scheduler {
	return &Scheduler{
		messageRepo: messageRepo,
		ledger:      ledger,
		publisher:   publisher,
		policy:      policy,
		targets:     targets,
		digestHour:  digestHour,
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	slog.Info("scheduler started",
		slog.Int("digest_hour", s.digestHour),
		slog.Int("target_count", len(s.targets)))

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now())
		}
	}
}

// Tick runs one scheduling pass for the given wall-clock instant.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	local := now.In(s.policy.Location)
	runDate := local.Format("2006-01-02")

	if s.policy.InMaintenanceWindow(local) {
		s.runRetention(ctx, local, runDate)
	}

	if local.Hour() == s.digestHour {
		s.dispatchDigests(ctx, runDate)
	}
}

func (s *Scheduler) runRetention(ctx context.Context, now time.Time, runDate string) {
	ok, err := s.ledger.TryAcquire(ctx, "retention", runDate)
	if err != nil {
		slog.Error("failed to claim retention slot", slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}

	deleted, err := s.messageRepo.EvictOverCap(ctx, s.policy.MaxPerGroup)
	if err != nil {
		slog.Error("count-cap eviction failed", slog.String("error", err.Error()))
	} else {
		observability.MessagesEvicted.WithLabelValues("count_cap").Add(float64(deleted))
		slog.Info("count-cap eviction completed", slog.Int64("deleted", deleted))
	}

	// Image purge runs in the background; the tick does not wait for it.
	cutoff := s.policy.ImageCutoff(now)
	task := retention.Go(func() (int64, error) {
		deleted, err := s.messageRepo.EvictExpiredImages(context.WithoutCancel(ctx), cutoff)
		if err == nil {
			observability.MessagesEvicted.WithLabelValues("image_age").Add(float64(deleted))
		}
		return deleted, err
	})

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
}

func (s *Scheduler) dispatchDigests(ctx context.Context, runDate string) {
	ok, err := s.ledger.TryAcquire(ctx, "digest", runDate)
	if err != nil {
		slog.Error("failed to claim digest slot", slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}

	for _, target := range s.targets {
		if err := s.publisher.PublishDigestJob(ctx, target.GroupID, target.TopicID, runDate); err != nil {
			slog.Error("failed to publish digest job",
				slog.String("group_id", target.GroupID),
				slog.String("error", err.Error()))
		}
	}
}

// Wait blocks until all background retention tasks have finished. Called
// during shutdown so an in-flight image purge is not cut off.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	tasks := append([]*retention.Task{}, s.tasks...)
	s.mu.Unlock()

	for _, task := range tasks {
		<-task.Done()
		if err := task.Err(); err != nil {
			slog.Error("background retention task failed", slog.String("error", err.Error()))
		}
	}
}
