package domain

import "testing"

func int64ptr(v int64) *int64 { return &v }

func TestMessageLink_FlatForm(t *testing.T) {
	link := MessageLink("-1001234567890", nil, 42)
	want := "https://t.me/c/1234567890/42"
	if link != want {
		t.Errorf("Expected %s, got %s", want, link)
	}
}

func TestMessageLink_TopicForm(t *testing.T) {
	link := MessageLink("-1001234567890", int64ptr(7), 42)
	want := "https://t.me/c/1234567890/7/42"
	if link != want {
		t.Errorf("Expected %s, got %s", want, link)
	}
}

func TestMessageLink_Deterministic(t *testing.T) {
	a := MessageLink("-1009876", int64ptr(3), 100)
	b := MessageLink("-1009876", int64ptr(3), 100)
	if a != b {
		t.Errorf("Expected identical links, got %s and %s", a, b)
	}
}

func TestParseMessageLink_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		groupID   string
		topicID   *int64
		messageID int64
	}{
		{"flat", "-1001234567890", nil, 42},
		{"topic", "-1001234567890", int64ptr(7), 42},
		{"leading_zeros_collapse", "-1000054321", nil, 9},
		{"short_group_id", "-987654", int64ptr(1), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := MessageLink(tt.groupID, tt.topicID, tt.messageID)
			parts, err := ParseMessageLink(link)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}

			again := MessageLink(parts.GroupID, parts.TopicID, parts.MessageID)
			if again != link {
				t.Errorf("Round trip mismatch: %s != %s", again, link)
			}
		})
	}
}

func TestParseMessageLink_Invalid(t *testing.T) {
	tests := []string{
		"",
		"https://example.com/c/1/2",
		"https://t.me/c/abc/2",
		"https://t.me/c/1",
		"https://t.me/c/1/2/3/4",
	}

	for _, link := range tests {
		if _, err := ParseMessageLink(link); err == nil {
			t.Errorf("Expected error for %q", link)
		}
	}
}
