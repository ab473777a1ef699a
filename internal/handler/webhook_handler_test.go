package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/craigary/telegram-summary-bot/internal/domain"
	"github.com/craigary/telegram-summary-bot/internal/service"
	"github.com/craigary/telegram-summary-bot/internal/telegram"
	"github.com/craigary/telegram-summary-bot/internal/testutil"
)

const testSecret = "webhook-test-secret"

type stubExpander struct{}

func (stubExpander) Extract(ctx context.Context, url string) domain.Content {
	return domain.TextContent(url)
}

type stubPhotoFetcher struct {
	data []byte
	err  error
}

func (s *stubPhotoFetcher) FetchPhoto(ctx context.Context, photo []telegram.PhotoSize) ([]byte, error) {
	return s.data, s.err
}

type webhookFixture struct {
	handler *WebhookHandler
	repo    *testutil.MockMessageRepository
	sender  *testutil.MockSender
	photos  *stubPhotoFetcher
}

func newWebhookFixture() *webhookFixture {
	repo := testutil.NewMockMessageRepository()
	sender := &testutil.MockSender{}
	photos := &stubPhotoFetcher{}

	archive := service.NewArchiveService(repo, stubExpander{})
	query := service.NewQueryService(repo)

	return &webhookFixture{
		handler: NewWebhookHandler(archive, query, sender, photos, testSecret),
		repo:    repo,
		sender:  sender,
		photos:  photos,
	}
}

func postUpdate(t *testing.T, h *WebhookHandler, secret string, update telegram.Update) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("Failed to marshal update: %v", err)
	}

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set(secretTokenHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func groupMessage(text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 42,
		From:      &telegram.User{FirstName: "Alice"},
		Chat:      telegram.Chat{ID: -1001234567890, Type: "supergroup", Title: "Test Group"},
		Text:      text,
	}
}

func TestWebhookHandler_Auth(t *testing.T) {
	t.Run("missing_secret_rejected", func(t *testing.T) {
		f := newWebhookFixture()
		rec := postUpdate(t, f.handler, "", telegram.Update{Message: groupMessage("hello")})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
		if len(f.repo.Messages) != 0 {
			t.Error("Expected nothing archived without secret")
		}
	})

	t.Run("wrong_secret_rejected", func(t *testing.T) {
		f := newWebhookFixture()
		rec := postUpdate(t, f.handler, "wrong", telegram.Update{Message: groupMessage("hello")})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("invalid_json_rejected", func(t *testing.T) {
		f := newWebhookFixture()
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{broken"))
		req.Header.Set(secretTokenHeader, testSecret)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestWebhookHandler_TextMessage(t *testing.T) {
	t.Run("group_text_archived", func(t *testing.T) {
		f := newWebhookFixture()
		rec := postUpdate(t, f.handler, testSecret, telegram.Update{Message: groupMessage("hello world")})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		stored := f.repo.Messages["https://t.me/c/1234567890/42"]
		if stored == nil {
			t.Fatal("Expected message archived under its permalink")
		}
		if stored.UserName != "Alice" {
			t.Errorf("Expected sender name Alice, got %s", stored.UserName)
		}
		if stored.GroupName != "Test Group" {
			t.Errorf("Expected group name, got %s", stored.GroupName)
		}
	})

	t.Run("channel_sender_uses_channel_title", func(t *testing.T) {
		f := newWebhookFixture()
		msg := groupMessage("announcement")
		msg.SenderChat = &telegram.Chat{ID: -100999, Type: "channel", Title: "News Channel"}
		postUpdate(t, f.handler, testSecret, telegram.Update{Message: msg})

		stored := f.repo.Messages["https://t.me/c/1234567890/42"]
		if stored == nil || stored.UserName != "News Channel" {
			t.Errorf("Expected channel title as sender, got %+v", stored)
		}
	})

	t.Run("private_chat_gets_notice", func(t *testing.T) {
		f := newWebhookFixture()
		msg := groupMessage("hi bot")
		msg.Chat = telegram.Chat{ID: 777, Type: "private"}
		postUpdate(t, f.handler, testSecret, telegram.Update{Message: msg})

		if len(f.repo.Messages) != 0 {
			t.Error("Expected private message not archived")
		}
		sent := f.sender.SentMessages()
		if len(sent) != 1 || sent[0].Text != notInGroupReply {
			t.Errorf("Expected group-only notice, got %+v", sent)
		}
	})

	t.Run("topic_message_keys_with_topic", func(t *testing.T) {
		f := newWebhookFixture()
		msg := groupMessage("inside topic")
		topicID := int64(7)
		msg.MessageThreadID = &topicID
		postUpdate(t, f.handler, testSecret, telegram.Update{Message: msg})

		if f.repo.Messages["https://t.me/c/1234567890/7/42"] == nil {
			t.Error("Expected three-segment permalink for topic message")
		}
	})
}

func TestWebhookHandler_Commands(t *testing.T) {
	t.Run("status_command", func(t *testing.T) {
		f := newWebhookFixture()
		postUpdate(t, f.handler, testSecret, telegram.Update{Message: groupMessage("/status")})

		sent := f.sender.SentMessages()
		if len(sent) != 1 || sent[0].Text != "我家还蛮大的" {
			t.Errorf("Expected status reply, got %+v", sent)
		}
		if len(f.repo.Messages) != 0 {
			t.Error("Expected command not archived")
		}
	})

	t.Run("query_command_without_keyword", func(t *testing.T) {
		f := newWebhookFixture()
		postUpdate(t, f.handler, testSecret, telegram.Update{Message: groupMessage("/query")})

		sent := f.sender.SentMessages()
		if len(sent) != 1 || sent[0].Text != "请输入要查询的关键词" {
			t.Errorf("Expected keyword prompt, got %+v", sent)
		}
	})

	t.Run("query_command_returns_hits", func(t *testing.T) {
		f := newWebhookFixture()
		f.repo.Upsert(context.Background(), testutil.NewTestMessage(
			testutil.WithGroupID("-1001234567890"),
			testutil.WithUserName("bob"),
			testutil.WithText("release deployed"),
			testutil.WithMessageID(3),
		))

		postUpdate(t, f.handler, testSecret, telegram.Update{Message: groupMessage("/query deployed")})

		sent := f.sender.SentMessages()
		if len(sent) != 1 {
			t.Fatalf("Expected one reply, got %d", len(sent))
		}
		if !strings.Contains(sent[0].Text, "bob: release deployed") {
			t.Errorf("Expected hit in reply, got %q", sent[0].Text)
		}
	})
}

func TestWebhookHandler_Photo(t *testing.T) {
	t.Run("jpeg_photo_archived", func(t *testing.T) {
		f := newWebhookFixture()
		f.photos.data = []byte{0xFF, 0xD8, 0xFF, 0xE0}

		msg := groupMessage("")
		msg.Photo = []telegram.PhotoSize{{FileID: "small"}, {FileID: "large"}}
		postUpdate(t, f.handler, testSecret, telegram.Update{Message: msg})

		stored := f.repo.Messages["https://t.me/c/1234567890/42"]
		if stored == nil || !stored.Content.IsImage() {
			t.Errorf("Expected image archived, got %+v", stored)
		}
	})

	t.Run("fetch_failure_archives_nothing", func(t *testing.T) {
		f := newWebhookFixture()
		f.photos.err = errors.New("file expired")

		msg := groupMessage("")
		msg.Photo = []telegram.PhotoSize{{FileID: "gone"}}
		rec := postUpdate(t, f.handler, testSecret, telegram.Update{Message: msg})

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 despite fetch failure, got %d", rec.Code)
		}
		if len(f.repo.Messages) != 0 {
			t.Error("Expected nothing archived after fetch failure")
		}
	})
}

func TestWebhookHandler_EditedMessage(t *testing.T) {
	f := newWebhookFixture()
	postUpdate(t, f.handler, testSecret, telegram.Update{Message: groupMessage("original")})

	edited := groupMessage("corrected")
	postUpdate(t, f.handler, testSecret, telegram.Update{EditedMessage: edited})

	if len(f.repo.Messages) != 1 {
		t.Fatalf("Expected edit to land on the same row, have %d", len(f.repo.Messages))
	}
	stored := f.repo.Messages["https://t.me/c/1234567890/42"]
	if stored.Content.Text != "corrected" {
		t.Errorf("Expected edited text stored, got %q", stored.Content.Text)
	}
}
