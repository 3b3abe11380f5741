package journal

import (
	"strings"

	"treno/internal/sanitize"
)

// Editor is the note content buffer behind a rich-text surface.
//
// Content typed on the surface flows in through Input without changing the
// revision. Content set from outside (loading a record, a reset, a paste)
// bumps the revision, and a surface only rewrites its DOM or widget when the
// revision it last rendered differs. This keeps the caret where the user left
// it while typing.
type Editor struct {
	html      string
	revision  uint64
	composing bool
}

func (e *Editor) HTML() string { return e.html }
func (e *Editor) Revision() uint64 { return e.revision }
func (e *Editor) Composing() bool { return e.composing }

// Set replaces the content from outside the surface.
func (e *Editor) Set(html string) {
	e.html = sanitize.HTML(html)
	e.revision++
}

// Input records surface content. It is ignored while an IME composition is
// active. It reports whether the content changed.
func (e *Editor) Input(html string) bool {
	if e.composing {
		return false
	}
	return e.apply(html)
}

func (e *Editor) CompositionStart() {
	e.composing = true
}

// CompositionEnd ends the composition and records the composed content.
func (e *Editor) CompositionEnd(html string) bool {
	e.composing = false
	return e.apply(html)
}

// CaretMark is the character a surface puts at the caret of the content it
// sends with a paste.
const CaretMark = "\uE000"

// Paste inserts clipboard content, preferring HTML over plain text. around is
// the surface content with the selection removed and CaretMark at the caret;
// when it carries no mark the clipboard content is appended to the current
// content.
func (e *Editor) Paste(html, text, around string) bool {
	insert := ""
	if html != "" {
		insert = sanitize.HTML(html)
	} else {
		insert = sanitize.FromPlainText(text)
	}
	insert = strings.ReplaceAll(insert, CaretMark, "")
	if insert == "" {
		return false
	}
	before, after := e.html, ""
	if clean := sanitize.HTML(around); strings.Contains(clean, CaretMark) {
		before, after, _ = strings.Cut(clean, CaretMark)
		after = strings.ReplaceAll(after, CaretMark, "")
	}
	e.Set(before + insert + after)
	return true
}

func (e *Editor) apply(html string) bool {
	clean := sanitize.HTML(html)
	if clean == e.html {
		return false
	}
	e.html = clean
	return true
}
