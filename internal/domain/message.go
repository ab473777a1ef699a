package domain

import (
	"context"
	"encoding/base64"
	"strings"
)

// ImageDataPrefix tags inline JPEG payloads in the serialized content column.
const ImageDataPrefix = "data:image/jpeg;base64,"

// ContentKind discriminates the Content variant.
type ContentKind int

const (
	KindText ContentKind = iota
	KindLinkPreview
	KindImage
)

// LinkPreview holds Open Graph metadata extracted from a bare URL message.
type LinkPreview struct {
	URL         string
	Title       string
	Description string
	SiteName    string
	ImageURL    string
}

// Content is the tagged variant a Message carries through the core. It is
// serialized to the single storage column only at the repository boundary.
// Link previews collapse to their inlined text form on encode; only the image
// variant survives a decode round trip, everything else reads back as text.
type Content struct {
	Kind    ContentKind
	Text    string
	Preview *LinkPreview
	Image   []byte
}

func TextContent(s string) Content {
	return Content{Kind: KindText, Text: s}
}

func PreviewContent(p LinkPreview) Content {
	return Content{Kind: KindLinkPreview, Preview: &p}
}

func ImageContent(data []byte) Content {
	return Content{Kind: KindImage, Image: data}
}

// Encode serializes the variant to the storage column format.
func (c Content) Encode() string {
	switch c.Kind {
	case KindImage:
		return ImageDataPrefix + base64.StdEncoding.EncodeToString(c.Image)
	case KindLinkPreview:
		p := c.Preview
		lines := []string{p.URL}
		if p.Title != "" {
			lines = append(lines, "标题: "+p.Title)
		}
		if p.Description != "" {
			lines = append(lines, "描述: "+p.Description)
		}
		if p.SiteName != "" {
			lines = append(lines, "来源: "+p.SiteName)
		}
		if p.ImageURL != "" {
			lines = append(lines, "图片: "+p.ImageURL)
		}
		return strings.Join(lines, "\n")
	default:
		return c.Text
	}
}

// DecodeContent maps a stored column value back to the variant.
func DecodeContent(stored string) Content {
	if strings.HasPrefix(stored, ImageDataPrefix) {
		data, err := base64.StdEncoding.DecodeString(stored[len(ImageDataPrefix):])
		if err == nil {
			return ImageContent(data)
		}
	}
	return TextContent(stored)
}

// IsImage reports whether the content holds an inline image payload.
func (c Content) IsImage() bool {
	return c.Kind == KindImage
}

// Message is the archive's unit of record. ID is the message permalink,
// derived from (GroupID, TopicID, MessageID), and doubles as the upsert key
// so edits overwrite the original row.
type Message struct {
	ID        string
	GroupID   string
	TopicID   *int64
	UserName  string
	Content   Content
	MessageID *int64
	GroupName string
	TimeStamp int64 // milliseconds since epoch
}

// MessageRepository defines the persistence interface for the archive.
type MessageRepository interface {
	// Upsert inserts the record or, when a row with the same ID exists,
	// replaces its content and timestamp (last-write-wins).
	Upsert(ctx context.Context, m *Message) error
	// QueryWindow returns messages for the group and topic with
	// TimeStamp >= sinceMs, ascending by timestamp. Topic matching is strict
	// equality: a nil topicID matches only rows with no topic.
	QueryWindow(ctx context.Context, groupID string, topicID *int64, sinceMs int64) ([]*Message, error)
	// SearchByKeyword returns up to 2000 messages whose content contains the
	// keyword, newest first.
	SearchByKeyword(ctx context.Context, groupID, keyword string) ([]*Message, error)
	// EvictOverCap deletes, per group, every row past the newest keep rows
	// by timestamp. Returns the number of rows deleted.
	EvictOverCap(ctx context.Context, keep int) (int64, error)
	// EvictExpiredImages deletes inline-image rows older than cutoffMs.
	EvictExpiredImages(ctx context.Context, cutoffMs int64) (int64, error)
}

// JobLedger records daily job executions so overlapping scheduler ticks or
// clock drift cannot double-run or skip a day.
type JobLedger interface {
	// TryAcquire claims the (job, runDate) slot. It returns true exactly once
	// per slot across all callers.
	TryAcquire(ctx context.Context, job, runDate string) (bool, error)
}
