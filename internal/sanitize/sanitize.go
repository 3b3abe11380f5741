// Package sanitize cleans user-supplied note HTML down to a fixed allow-list.
package sanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var allowedTags = []string{
	"p",
	"br",
	"strong",
	"b",
	"em",
	"i",
	"u",
	"s",
	"ul",
	"ol",
	"li",
	"blockquote",
	"code",
	"pre",
	"span",
	"div",
	"img",
}

var allowedAttrs = []string{"style", "src", "alt"}

var (
	notePolicy  = newNotePolicy()
	stripPolicy = bluemonday.StrictPolicy()
)

func newNotePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs(allowedAttrs...).Globally()

	// src must parse as a URL; data: is only accepted for base64 images.
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(true)
	p.AllowDataURIImages()
	return p
}

// HTML strips every tag and attribute outside the allow-list. Content of
// script/style elements is dropped, not escaped. HTML(HTML(x)) == HTML(x).
func HTML(raw string) string {
	if raw == "" {
		return ""
	}
	return notePolicy.Sanitize(raw)
}

// PlainText returns the note's visible text with markup removed and
// entities decoded, trimmed of surrounding whitespace.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

var lineBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|blockquote|pre)>`)

// Text is PlainText that keeps line and block breaks as newlines.
func Text(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(lineBreaks.ReplaceAllString(s, "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		out = append(out, html.UnescapeString(stripPolicy.Sanitize(ln)))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// FromPlainText converts pasted plain text into sanitized note HTML, keeping
// line breaks.
func FromPlainText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	escaped := html.EscapeString(text)
	return HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}
