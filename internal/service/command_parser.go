package service

import (
	"regexp"
	"strings"
)

var commandRegex = regexp.MustCompile(`^/([a-z]+)(?:@\w+)?(?:\s+(.*))?$`)

// Command represents a parsed bot command
type Command struct {
	Type string
	Arg  string
}

// ParseCommand attempts to parse a message as a bot command.
// Returns the command and true if it's a known command, nil and false
// otherwise. The "/cmd@botname" form sent in groups is accepted.
func ParseCommand(content string) (*Command, bool) {
	content = strings.TrimSpace(content)

	matches := commandRegex.FindStringSubmatch(content)
	if matches == nil {
		return nil, false
	}

	switch matches[1] {
	case "status":
		return &Command{Type: "status"}, true
	case "query":
		// Only the first word after the command is the keyword.
		arg := strings.TrimSpace(matches[2])
		if i := strings.IndexByte(arg, ' '); i >= 0 {
			arg = arg[:i]
		}
		return &Command{Type: "query", Arg: arg}, true
	}

	return nil, false
}
