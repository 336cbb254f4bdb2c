package miniapp

import "strings"

// ParseMode tells the transport how to render a reply.
type ParseMode string

const (
	PlainText  ParseMode = ""
	MarkdownV2 ParseMode = "MarkdownV2"
)

const markdownSpecial = "\\_*[]()~`>#+-=|{}.!"

// EscapeMarkdown prefixes every MarkdownV2 control character with a
// backslash. Apply it to every value interpolated into a formatted reply.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
