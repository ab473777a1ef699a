package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/craigary/telegram-summary-bot/internal/domain"
)

const (
	statusReply       = "我家还蛮大的"
	emptyKeywordReply = "请输入要查询的关键词"
	queryHeader       = "查询结果:"
)

// QueryService answers the /status and /query chat commands.
type QueryService struct {
	messageRepo domain.MessageRepository
}

func NewQueryService(messageRepo domain.MessageRepository) *QueryService {
	return &QueryService{messageRepo: messageRepo}
}

// Status returns the canned liveness reply.
func (s *QueryService) Status() string {
	return statusReply
}

// Search runs a keyword search over the group's archive and formats the reply.
// Results come back newest first, one line per hit, each linking to the
// original message when its id is known. Search links always use the flat
// two-segment form even for topic messages.
func (s *QueryService) Search(ctx context.Context, groupID, keyword string) (string, error) {
	if keyword == "" {
		return emptyKeywordReply, nil
	}

	messages, err := s.messageRepo.SearchByKeyword(ctx, groupID, keyword)
	if err != nil {
		return "", fmt.Errorf("failed to search archive: %w", err)
	}

	var b strings.Builder
	b.WriteString(queryHeader)
	for _, m := range messages {
		b.WriteString("\n")
		b.WriteString(m.UserName)
		b.WriteString(": ")
		b.WriteString(m.Content.Encode())
		if m.MessageID != nil {
			b.WriteString(" [link](")
			b.WriteString(domain.MessageLink(m.GroupID, nil, *m.MessageID))
			b.WriteString(")")
		}
	}
	return b.String(), nil
}
