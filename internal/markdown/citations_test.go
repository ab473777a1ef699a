package markdown

import (
	"strings"
	"testing"
)

func TestToSuperscript(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "¹"},
		{2, "²"},
		{9, "⁹"},
		{10, "¹⁰"},
		{11, "¹¹"},
		{123, "¹²³"},
	}

	for _, tt := range tests {
		if got := ToSuperscript(tt.n); got != tt.want {
			t.Errorf("ToSuperscript(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestNormalizeCitations_DeduplicatesRawLinks(t *testing.T) {
	input := "[http://a](http://a) text [http://a](http://a) [Click](http://a)"
	want := "[引用¹](http://a) text [引用¹](http://a) [Click](http://a)"

	got := NormalizeCitations(input, nil)
	if got != want {
		t.Errorf("NormalizeCitations = %q, want %q", got, want)
	}
}

func TestNormalizeCitations_FirstSeenOrder(t *testing.T) {
	input := "[http://b](http://b) [http://a](http://a) [http://b](http://b)"
	want := "[引用¹](http://b) [引用²](http://a) [引用¹](http://b)"

	got := NormalizeCitations(input, nil)
	if got != want {
		t.Errorf("NormalizeCitations = %q, want %q", got, want)
	}
}

func TestNormalizeCitations_EleventhLinkUsesConcatenatedSuperscripts(t *testing.T) {
	input := ""
	for _, u := range []string{
		"http://u1", "http://u2", "http://u3", "http://u4", "http://u5",
		"http://u6", "http://u7", "http://u8", "http://u9", "http://u10",
		"http://u11",
	} {
		input += "[" + u + "](" + u + ") "
	}

	got := NormalizeCitations(input, nil)
	wantFragment := "[引用¹¹](http://u11)"
	if !strings.Contains(got, wantFragment) {
		t.Errorf("Expected %q in output, got %q", wantFragment, got)
	}
}

func TestNormalizeCitations_ExactTargetEquality(t *testing.T) {
	// Differing query strings or trailing slashes count as different targets.
	input := "[http://a/](http://a/) [http://a](http://a) [http://a?x=1](http://a?x=1)"
	want := "[引用¹](http://a/) [引用²](http://a) [引用³](http://a?x=1)"

	got := NormalizeCitations(input, nil)
	if got != want {
		t.Errorf("NormalizeCitations = %q, want %q", got, want)
	}
}

func TestNormalizeCitations_EnglishMode(t *testing.T) {
	got := NormalizeCitations("[http://a](http://a)", &CitationOptions{UseEnglish: true})
	want := "[link¹](http://a)"
	if got != want {
		t.Errorf("NormalizeCitations = %q, want %q", got, want)
	}
}

func TestNormalizeCitations_CustomPrefix(t *testing.T) {
	got := NormalizeCitations("[http://a](http://a)", &CitationOptions{Prefix: "ref"})
	want := "[ref¹](http://a)"
	if got != want {
		t.Errorf("NormalizeCitations = %q, want %q", got, want)
	}
}

func TestNormalizeCitations_PlainTextUntouched(t *testing.T) {
	input := "no links here, just (parens) and [brackets]"
	if got := NormalizeCitations(input, nil); got != input {
		t.Errorf("Expected unchanged text, got %q", got)
	}
}
