package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/observability"
	"github.com/craigary/telegram-summary-bot/internal/service"
	"github.com/craigary/telegram-summary-bot/internal/telegram"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const notInGroupReply = "I am a bot, please add me to a group to use me."

// PhotoFetcher downloads the bytes behind an incoming photo.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, photo []telegram.PhotoSize) ([]byte, error)
}

// WebhookHandler receives Telegram update callbacks and routes them to the
// archive and command services.
type WebhookHandler struct {
	archive *service.ArchiveService
	query   *service.QueryService
	sender  service.MessageSender
	photos  PhotoFetcher
	secret  string
}

func NewWebhookHandler(archive *service.ArchiveService, query *service.QueryService, sender service.MessageSender, photos PhotoFetcher, secret string) *WebhookHandler {
	return &WebhookHandler{
		archive: archive,
		query:   query,
		sender:  sender,
		photos:  photos,
		secret:  secret,
	}
}

// ServeHTTP handles one webhook delivery. The response is always 200 once the
// secret checks out: Telegram redelivers non-2xx updates, and a poison update
// must not wedge the queue.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(secretTokenHeader)), []byte(h.secret)) != 1 {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, `{"error":"Invalid payload"}`, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.EditedMessage != nil:
		h.handleEdited(ctx, update.EditedMessage)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleMessage(ctx context.Context, msg *telegram.Message) {
	groupID := telegram.ChatIDString(msg.Chat.ID)
	ctx = observability.WithGroupID(ctx, groupID)
	log := observability.FromContext(ctx)

	if len(msg.Photo) > 0 {
		h.handlePhoto(ctx, msg)
		return
	}
	if msg.Text == "" {
		return
	}

	if cmd, ok := service.ParseCommand(msg.Text); ok {
		h.handleCommand(ctx, msg, cmd)
		return
	}

	if !strings.Contains(msg.Chat.Type, "group") {
		if err := h.sender.SendMessage(ctx, groupID, nil, notInGroupReply); err != nil {
			log.Error("failed to send private-chat notice", "error", err)
		}
		return
	}

	if err := h.archive.IngestText(ctx, ingestFrom(msg)); err != nil {
		log.Error("failed to archive text message", "error", err)
	}
}

func (h *WebhookHandler) handlePhoto(ctx context.Context, msg *telegram.Message) {
	log := observability.FromContext(ctx)

	data, err := h.photos.FetchPhoto(ctx, msg.Photo)
	if err != nil {
		log.Error("failed to fetch photo", "error", err)
		return
	}

	if err := h.archive.IngestPhoto(ctx, ingestFrom(msg), data); err != nil {
		log.Error("failed to archive photo", "error", err)
	}
}

func (h *WebhookHandler) handleEdited(ctx context.Context, msg *telegram.Message) {
	if msg.Text == "" {
		return
	}
	groupID := telegram.ChatIDString(msg.Chat.ID)
	ctx = observability.WithGroupID(ctx, groupID)

	if err := h.archive.IngestEdited(ctx, ingestFrom(msg)); err != nil {
		observability.FromContext(ctx).Error("failed to archive edited message", "error", err)
	}
}

func (h *WebhookHandler) handleCommand(ctx context.Context, msg *telegram.Message, cmd *service.Command) {
	log := observability.FromContext(ctx)
	groupID := telegram.ChatIDString(msg.Chat.ID)

	var reply string
	switch cmd.Type {
	case "status":
		reply = h.query.Status()
	case "query":
		var err error
		reply, err = h.query.Search(ctx, groupID, cmd.Arg)
		if err != nil {
			log.Error("keyword search failed", "error", err)
			return
		}
	default:
		return
	}

	if err := h.sender.SendMessage(ctx, groupID, msg.MessageThreadID, reply); err != nil {
		log.Error("failed to send command reply", "error", err)
	}
}

func ingestFrom(msg *telegram.Message) service.Ingest {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	in := service.Ingest{
		GroupID:     telegram.ChatIDString(msg.Chat.ID),
		TopicID:     msg.MessageThreadID,
		MessageID:   msg.MessageID,
		UserName:    userName(msg),
		GroupName:   groupName(msg),
		Text:        text,
		TimeStampMs: time.Now().UnixMilli(),
	}
	if msg.ReplyToMessage != nil {
		replyTo := msg.ReplyToMessage.MessageID
		in.ReplyToID = &replyTo
	}
	return in
}

func userName(msg *telegram.Message) string {
	if msg.SenderChat != nil && msg.SenderChat.Title != "" {
		return msg.SenderChat.Title
	}
	if name := msg.From.DisplayName(); name != "" {
		return name
	}
	return "anonymous"
}

func groupName(msg *telegram.Message) string {
	if msg.Chat.Title != "" {
		return msg.Chat.Title
	}
	return "anonymous"
}
