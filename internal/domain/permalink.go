package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const linkBase = "https://t.me/c/"

// MessageLink reconstructs the t.me permalink for a message. The result is the
// archive's primary key, so identical inputs must produce byte-identical
// output. Topic messages use the three-segment form, main-thread messages the
// flat two-segment form.
func MessageLink(groupID string, topicID *int64, messageID int64) string {
	internal := internalChatID(groupID)
	if topicID != nil {
		return fmt.Sprintf("%s%d/%d/%d", linkBase, internal, *topicID, messageID)
	}
	return fmt.Sprintf("%s%d/%d", linkBase, internal, messageID)
}

// internalChatID maps a string-encoded group id to the numeric id used in
// t.me/c/ links: the first two characters (the "-1" marker on supergroup ids)
// are dropped and the remainder parsed, leading zeros collapsing away.
func internalChatID(groupID string) int64 {
	if len(groupID) > 2 {
		if n, err := strconv.ParseInt(groupID[2:], 10, 64); err == nil {
			return n
		}
	}
	n, _ := strconv.ParseInt(groupID, 10, 64)
	return n
}

// PermalinkParts are the components recovered from a message link.
type PermalinkParts struct {
	GroupID   string
	TopicID   *int64
	MessageID int64
}

// ParseMessageLink inverts MessageLink. The recovered GroupID carries the
// "-1" marker back so that re-encoding it yields the same link.
func ParseMessageLink(link string) (*PermalinkParts, error) {
	rest, ok := strings.CutPrefix(link, linkBase)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPermalink, link)
	}

	segs := strings.Split(rest, "/")
	nums := make([]int64, 0, len(segs))
	for _, s := range segs {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPermalink, link)
		}
		nums = append(nums, n)
	}

	parts := &PermalinkParts{}
	switch len(nums) {
	case 2:
		parts.GroupID = "-1" + strconv.FormatInt(nums[0], 10)
		parts.MessageID = nums[1]
	case 3:
		parts.GroupID = "-1" + strconv.FormatInt(nums[0], 10)
		topic := nums[1]
		parts.TopicID = &topic
		parts.MessageID = nums[2]
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPermalink, link)
	}
	return parts, nil
}
