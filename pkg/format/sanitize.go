package format

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	namePolicy = bluemonday.StrictPolicy()

	languageClass = regexp.MustCompile(`^language-[a-zA-Z0-9_+#.-]+$`)
)

func newMessagePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// Fence language tags survive sanitization so highlighters can pick
	// them up; everything else on code stays forbidden.
	p.AllowAttrs("class").Matching(languageClass).OnElements("code")
	return p
}

// SanitizeName strips all markup from a display name and bounds its length.
// The result is plain text, not HTML; the sanitizer's entity escaping is
// undone so consumers escape for their own surface. Empty results fall back
// to "anon".
func SanitizeName(name string) string {
	decoded := html.UnescapeString(name)
	clean := html.UnescapeString(namePolicy.Sanitize(decoded))
	clean = CleanText(strings.TrimSpace(clean), 24)
	if clean == "" {
		return "anon"
	}
	return clean
}

// CleanText removes control characters (keeping tabs and newlines) and caps
// the length in runes. maxLen <= 0 means unbounded. Inbound text goes through
// this before it reaches the terminal so escape sequences in remote content
// cannot drive the emulator.
func CleanText(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' {
			continue
		}
		if maxLen > 0 && n >= maxLen {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
