package provider

import (
	"regexp"
	"strings"
)

// replySubject prefixes "Re: " unless the subject already carries a reply
// prefix in any casing.
func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

var (
	htmlTagPattern    = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]*>`)
	htmlBreakPattern  = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</tr>`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// stripHTML reduces an HTML body to readable plaintext. Good enough for
// feeding a draft prompt; not a general-purpose renderer.
func stripHTML(html string) string {
	text := htmlBreakPattern.ReplaceAllString(html, "\n")
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
