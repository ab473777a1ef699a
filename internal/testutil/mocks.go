// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the summary bot.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/craigary/telegram-summary-bot/internal/domain"
	"github.com/craigary/telegram-summary-bot/internal/genai"
)

// MockMessageRepository implements domain.MessageRepository for testing
type MockMessageRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	UpsertFunc             func(ctx context.Context, m *domain.Message) error
	QueryWindowFunc        func(ctx context.Context, groupID string, topicID *int64, sinceMs int64) ([]*domain.Message, error)
	SearchByKeywordFunc    func(ctx context.Context, groupID, keyword string) ([]*domain.Message, error)
	EvictOverCapFunc       func(ctx context.Context, keep int) (int64, error)
	EvictExpiredImagesFunc func(ctx context.Context, cutoffMs int64) (int64, error)

	// In-memory storage keyed by message id
	Messages map[string]*domain.Message
}

// NewMockMessageRepository creates a new MockMessageRepository with initialized maps
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		Messages: make(map[string]*domain.Message),
	}
}

func (m *MockMessageRepository) Upsert(ctx context.Context, msg *domain.Message) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Messages == nil {
		m.Messages = make(map[string]*domain.Message)
	}
	m.Messages[msg.ID] = msg
	return nil
}

func (m *MockMessageRepository) QueryWindow(ctx context.Context, groupID string, topicID *int64, sinceMs int64) ([]*domain.Message, error) {
	if m.QueryWindowFunc != nil {
		return m.QueryWindowFunc(ctx, groupID, topicID, sinceMs)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range m.Messages {
		if msg.GroupID != groupID || msg.TimeStamp < sinceMs {
			continue
		}
		if !sameTopic(msg.TopicID, topicID) {
			continue
		}
		result = append(result, msg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TimeStamp < result[j].TimeStamp
	})
	return result, nil
}

func (m *MockMessageRepository) SearchByKeyword(ctx context.Context, groupID, keyword string) ([]*domain.Message, error) {
	if m.SearchByKeywordFunc != nil {
		return m.SearchByKeywordFunc(ctx, groupID, keyword)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range m.Messages {
		if msg.GroupID != groupID {
			continue
		}
		if strings.Contains(msg.Content.Encode(), keyword) {
			result = append(result, msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TimeStamp > result[j].TimeStamp
	})
	return result, nil
}

func (m *MockMessageRepository) EvictOverCap(ctx context.Context, keep int) (int64, error) {
	if m.EvictOverCapFunc != nil {
		return m.EvictOverCapFunc(ctx, keep)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	byGroup := make(map[string][]*domain.Message)
	for _, msg := range m.Messages {
		byGroup[msg.GroupID] = append(byGroup[msg.GroupID], msg)
	}

	var evicted int64
	for _, msgs := range byGroup {
		sort.Slice(msgs, func(i, j int) bool {
			return msgs[i].TimeStamp > msgs[j].TimeStamp
		})
		for i := keep; i < len(msgs); i++ {
			delete(m.Messages, msgs[i].ID)
			evicted++
		}
	}
	return evicted, nil
}

func (m *MockMessageRepository) EvictExpiredImages(ctx context.Context, cutoffMs int64) (int64, error) {
	if m.EvictExpiredImagesFunc != nil {
		return m.EvictExpiredImagesFunc(ctx, cutoffMs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted int64
	for id, msg := range m.Messages {
		if msg.Content.IsImage() && msg.TimeStamp < cutoffMs {
			delete(m.Messages, id)
			evicted++
		}
	}
	return evicted, nil
}

func sameTopic(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MockJobLedger implements domain.JobLedger for testing
type MockJobLedger struct {
	mu sync.Mutex

	// Function override
	TryAcquireFunc func(ctx context.Context, job, runDate string) (bool, error)

	// In-memory claimed slots
	Claimed map[string]bool
}

// NewMockJobLedger creates a new MockJobLedger with initialized maps
func NewMockJobLedger() *MockJobLedger {
	return &MockJobLedger{
		Claimed: make(map[string]bool),
	}
}

func (m *MockJobLedger) TryAcquire(ctx context.Context, job, runDate string) (bool, error) {
	if m.TryAcquireFunc != nil {
		return m.TryAcquireFunc(ctx, job, runDate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := job + "/" + runDate
	if m.Claimed[key] {
		return false, nil
	}
	m.Claimed[key] = true
	return true, nil
}

// MockGenerator implements service.Generator for testing
type MockGenerator struct {
	mu sync.Mutex

	// Function override
	GenerateContentFunc func(ctx context.Context, parts []genai.Part) (string, error)

	// Call tracking
	Calls [][]genai.Part

	// Canned response when no override is set
	Response string
}

func (m *MockGenerator) GenerateContent(ctx context.Context, parts []genai.Part) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, parts)
	m.mu.Unlock()

	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, parts)
	}
	return m.Response, nil
}

// CallCount returns how many times GenerateContent was called
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockSender implements service.MessageSender for testing
type MockSender struct {
	mu sync.Mutex

	// Function override
	SendMessageFunc func(ctx context.Context, chatID string, topicID *int64, text string) error

	// Call tracking
	Sent []SentMessage
}

// SentMessage records a call to SendMessage
type SentMessage struct {
	ChatID  string
	TopicID *int64
	Text    string
}

func (m *MockSender) SendMessage(ctx context.Context, chatID string, topicID *int64, text string) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, chatID, topicID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sent = append(m.Sent, SentMessage{ChatID: chatID, TopicID: topicID, Text: text})
	return nil
}

// SentMessages returns all recorded sends
func (m *MockSender) SentMessages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage{}, m.Sent...)
}
