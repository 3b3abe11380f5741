package sanitize

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.Strikethrough,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		// Raw HTML stays disabled; the output is sanitized on top of that.
		html.WithHardWraps(),
	),
)

// FromMarkdown renders Markdown source into sanitized note HTML. Elements the
// note allow-list does not carry (headings, links) collapse to their text.
func FromMarkdown(src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return FromPlainText(src)
	}
	return strings.TrimSpace(HTML(b.String()))
}
