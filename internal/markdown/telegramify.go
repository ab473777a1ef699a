package markdown

import "strings"

// Characters Telegram's MarkdownV2 dialect requires escaping outside of
// entities.
const reservedV2 = `_*[]()~` + "`" + `>#+-=|{}.!`

// Telegramify rewrites generic generator markdown into Telegram's MarkdownV2
// dialect: link spans are kept intact (so later citation normalization still
// sees labels and targets verbatim), **bold** collapses to *bold*, and
// reserved characters in the remaining text are escaped.
func Telegramify(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		b.WriteString(telegramifyPlain(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(telegramifyPlain(text[last:]))
	return b.String()
}

func telegramifyPlain(s string) string {
	s = strings.ReplaceAll(s, "**", "*")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		// Bold/italic markers survive; everything else reserved is escaped.
		if r != '*' && r != '_' && strings.ContainsRune(reservedV2, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
