package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/craigary/telegram-summary-bot/internal/domain"
	"github.com/craigary/telegram-summary-bot/internal/media"
	"github.com/craigary/telegram-summary-bot/internal/observability"
)

// LinkExpander resolves a bare URL into richer archive content.
type LinkExpander interface {
	Extract(ctx context.Context, url string) domain.Content
}

// Ingest carries the fields of an incoming group message the archive needs.
type Ingest struct {
	GroupID     string
	TopicID     *int64
	MessageID   int64
	UserName    string
	GroupName   string
	Text        string
	ReplyToID   *int64
	TimeStampMs int64
}

// ArchiveService writes incoming messages into the bounded archive.
type ArchiveService struct {
	messageRepo domain.MessageRepository
	expander    LinkExpander
}

func NewArchiveService(messageRepo domain.MessageRepository, expander LinkExpander) *ArchiveService {
	return &ArchiveService{
		messageRepo: messageRepo,
		expander:    expander,
	}
}

// IngestText archives a new text message. A reply gains a prefix pointing at
// the replied-to message, and a message that is nothing but a URL is expanded
// into link-preview content.
func (s *ArchiveService) IngestText(ctx context.Context, in Ingest) error {
	text := in.Text
	if in.ReplyToID != nil {
		link := domain.MessageLink(in.GroupID, in.TopicID, *in.ReplyToID)
		text = fmt.Sprintf("回复 %s: %s", link, text)
	}

	content := domain.TextContent(text)
	kind := "text"
	if isBareURL(text) {
		content = s.expander.Extract(ctx, text)
		if content.Kind == domain.KindLinkPreview {
			kind = "link_preview"
		}
	}

	if err := s.store(ctx, in, content); err != nil {
		return err
	}
	observability.MessagesArchived.WithLabelValues(kind).Inc()
	return nil
}

// IngestPhoto archives a photo as inline JPEG content. Payloads that do not
// carry the JPEG marker are dropped without error, matching how unsupported
// media has always been handled.
func (s *ArchiveService) IngestPhoto(ctx context.Context, in Ingest, photo []byte) error {
	if !media.IsJPEG(photo) {
		observability.FromContext(ctx).Warn("dropping non-jpeg photo",
			"group_id", in.GroupID,
			"message_id", in.MessageID)
		return nil
	}

	if err := s.store(ctx, in, domain.ImageContent(photo)); err != nil {
		return err
	}
	observability.MessagesArchived.WithLabelValues("image").Inc()
	return nil
}

// IngestEdited replaces an archived message with its edited text. Edits keep
// the raw text: no reply prefix and no link expansion, so an edit can shed a
// stale preview.
func (s *ArchiveService) IngestEdited(ctx context.Context, in Ingest) error {
	if err := s.store(ctx, in, domain.TextContent(in.Text)); err != nil {
		return err
	}
	observability.MessagesArchived.WithLabelValues("edit").Inc()
	return nil
}

func (s *ArchiveService) store(ctx context.Context, in Ingest, content domain.Content) error {
	messageID := in.MessageID
	msg := &domain.Message{
		ID:        domain.MessageLink(in.GroupID, in.TopicID, in.MessageID),
		GroupID:   in.GroupID,
		TopicID:   in.TopicID,
		UserName:  in.UserName,
		Content:   content,
		MessageID: &messageID,
		GroupName: in.GroupName,
		TimeStamp: in.TimeStampMs,
	}

	if err := s.messageRepo.Upsert(ctx, msg); err != nil {
		observability.ArchiveWriteFailures.Inc()
		return err
	}
	return nil
}

// isBareURL reports whether text is a single URL with nothing around it.
func isBareURL(text string) bool {
	return strings.HasPrefix(text, "http") && !strings.Contains(text, " ")
}
