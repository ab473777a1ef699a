package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/domain"
	"github.com/craigary/telegram-summary-bot/internal/genai"
	"github.com/craigary/telegram-summary-bot/internal/markdown"
	"github.com/craigary/telegram-summary-bot/internal/observability"
)

// digestWindow is how far back a digest run looks.
const digestWindow = 24 * time.Hour

const digestPrompt = `用符合风格的语气概括下面的对话, 对话格式为
====================
用户名:
发言内容
相应链接
====================
如果对话里出现了多个主题, 请分条概括, 涉及到的图片也要提到相关内容, 并在回答的关键词中用 markdown 的格式引用原对话的链接, 格式为
[引用1](链接本体)
[引用2](链接本体)
[关键字1](链接本体)
[关键字2](链接本体)`

const digestOpening = `概括的开头是: 本日群聊总结如下：`

const partSeparator = `====================`

// Generator produces a summary from multimodal prompt parts.
type Generator interface {
	GenerateContent(ctx context.Context, parts []genai.Part) (string, error)
}

// MessageSender posts a formatted message back into a chat.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID string, topicID *int64, text string) error
}

// DigestService runs the summarization pipeline: query the last day's window,
// generate a summary, normalize its citation links, and post the result. At
// most one run per (group, topic) is in flight at a time.
type DigestService struct {
	messageRepo domain.MessageRepository
	generator   Generator
	sender      MessageSender

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewDigestService(messageRepo domain.MessageRepository, generator Generator, sender MessageSender) *DigestService {
	return &DigestService{
		messageRepo: messageRepo,
		generator:   generator,
		sender:      sender,
		inFlight:    make(map[string]bool),
	}
}

// Run produces and posts one digest. Returns domain.ErrDigestInProgress when
// a run for the same target has not finished yet.
func (s *DigestService) Run(ctx context.Context, groupID string, topicID *int64) error {
	key := runKey(groupID, topicID)
	if !s.acquire(key) {
		observability.DigestRuns.WithLabelValues("skipped").Inc()
		return domain.ErrDigestInProgress
	}
	defer s.release(key)

	start := time.Now()
	err := s.run(ctx, groupID, topicID)
	observability.DigestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.DigestRuns.WithLabelValues("error").Inc()
		return err
	}
	observability.DigestRuns.WithLabelValues("ok").Inc()
	return nil
}

func (s *DigestService) run(ctx context.Context, groupID string, topicID *int64) error {
	log := observability.FromContext(ctx)

	sinceMs := time.Now().Add(-digestWindow).UnixMilli()
	messages, err := s.messageRepo.QueryWindow(ctx, groupID, topicID, sinceMs)
	if err != nil {
		return fmt.Errorf("failed to load digest window: %w", err)
	}
	log.Info("loaded digest window",
		"group_id", groupID,
		"message_count", len(messages))

	// An empty window still goes to the generator; the model describes the
	// quiet day and the group hears from the bot either way.
	summary, err := s.generator.GenerateContent(ctx, buildPrompt(messages))
	if err != nil {
		return fmt.Errorf("failed to generate digest: %w", err)
	}

	text := markdown.NormalizeCitations(markdown.Telegramify(summary), nil)

	if err := s.sender.SendMessage(ctx, groupID, topicID, text); err != nil {
		return fmt.Errorf("failed to post digest: %w", err)
	}

	log.Info("posted digest", "group_id", groupID)
	return nil
}

// buildPrompt lays the window out the way the prompt describes it: separator,
// author, content, then the message's permalink for the model to cite.
func buildPrompt(messages []*domain.Message) []genai.Part {
	parts := make([]genai.Part, 0, 2+len(messages)*4)
	parts = append(parts, genai.TextPart(digestPrompt), genai.TextPart(digestOpening))

	for _, m := range messages {
		parts = append(parts,
			genai.TextPart(partSeparator),
			genai.TextPart(m.UserName+":"),
			contentPart(m.Content),
			genai.TextPart(m.ID),
		)
	}
	return parts
}

func contentPart(c domain.Content) genai.Part {
	if c.IsImage() {
		return genai.JPEGPart(c.Image)
	}
	return genai.TextPart(c.Encode())
}

func runKey(groupID string, topicID *int64) string {
	if topicID == nil {
		return groupID
	}
	return fmt.Sprintf("%s/%d", groupID, *topicID)
}

func (s *DigestService) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[key] {
		return false
	}
	s.inFlight[key] = true
	return true
}

func (s *DigestService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}
