// Package markdown holds the pure text transforms applied to generated
// digests before delivery: citation numbering for raw links and MarkdownV2
// normalization for the Telegram transport.
package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

var superscripts = map[rune]string{
	'0': "⁰",
	'1': "¹",
	'2': "²",
	'3': "³",
	'4': "⁴",
	'5': "⁵",
	'6': "⁶",
	'7': "⁷",
	'8': "⁸",
	'9': "⁹",
}

// ToSuperscript renders n as Unicode superscript digits. Multi-digit numbers
// are converted digit by digit, so 11 becomes "¹¹".
func ToSuperscript(n int) string {
	var b strings.Builder
	for _, digit := range strconv.Itoa(n) {
		b.WriteString(superscripts[digit])
	}
	return b.String()
}

// CitationOptions configures NormalizeCitations.
type CitationOptions struct {
	// Prefix replaces the default "引用" citation label.
	Prefix string
	// UseEnglish switches the label to "link" regardless of Prefix.
	UseEnglish bool
}

// NormalizeCitations rewrites markdown links whose label is textually
// identical to their target (raw URLs a generator echoed verbatim) into
// numbered citation labels. Numbers are assigned in first-seen order starting
// at 1, and re-encountering a target reuses its number, so duplicate raw
// links collapse to a single citation. Links that already carry a human label
// pass through untouched. Targets are compared by exact string equality; no
// URL normalization is applied.
func NormalizeCitations(text string, opts *CitationOptions) string {
	prefix := "引用"
	if opts != nil {
		if opts.Prefix != "" {
			prefix = opts.Prefix
		}
		if opts.UseEnglish {
			prefix = "link"
		}
	}

	assigned := make(map[string]int)
	counter := 1

	return linkPattern.ReplaceAllStringFunc(text, func(match string) string {
		m := linkPattern.FindStringSubmatch(match)
		label, target := m[1], m[2]
		if label != target {
			return match
		}

		n, ok := assigned[target]
		if !ok {
			n = counter
			assigned[target] = n
			counter++
		}
		return "[" + prefix + ToSuperscript(n) + "](" + target + ")"
	})
}
