package tui

import (
	"math"
	"strings"

	"treno/internal/gesture"
	"treno/internal/journal"

	xansi "github.com/charmbracelet/x/ansi"
)

// Screen layout of the calendar view, in terminal cells. Mouse hit testing
// relies on these rows staying fixed.
const (
	calendarCellW = 4
	gridWidth     = 7 * calendarCellW
	gridTop       = 2
	cardsTop      = 10
	cardGutter    = 2
	maxBodyWidth  = 62
	footerLines   = 3
)

type cardBox struct {
	index  int
	top    int
	height int
}

func (m appModel) bodyWidth() int {
	w := m.width - cardGutter
	if m.width <= 0 || w > maxBodyWidth {
		w = maxBodyWidth
	}
	if w < 24 {
		w = 24
	}
	return w
}

// actionCols is how many columns of the delete strip a card offset reveals.
func actionCols(offset float64) int {
	maxCols := int(math.Round(gesture.ActionWidth / cellWidthPx))
	n := int(math.Round(-offset / cellWidthPx))
	return min(max(n, 0), maxCols)
}

// fitWidth forces s to exactly width columns (ANSI-aware), cutting with an
// ellipsis or padding with spaces.
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	// Bound the work for pathological lines before measuring them.
	if len(s) > 8192 {
		s = xansi.Cut(s, 0, width)
	}
	w := xansi.StringWidth(s)
	if w > width {
		s = xansi.Truncate(s, width, "…")
		w = xansi.StringWidth(s)
	}
	if w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

// layoutCards renders the selected day's cards into the viewport and records
// where each one landed.
func (m *appModel) layoutCards() {
	content, boxes := renderCards(m.view.Cards, m.bodyWidth(), m.cursorIndex())
	m.boxes = boxes
	m.cards.Width = m.bodyWidth() + cardGutter
	h := m.height - cardsTop - footerLines
	if m.height <= 0 {
		h = 8
	}
	m.cards.Height = max(h, 3)
	m.cards.SetContent(content)
}

func (m appModel) cursorIndex() int {
	if m.focus != focusCards {
		return -1
	}
	return m.cursor
}

func renderCards(cards []journal.Card, bodyW, cursor int) (string, []cardBox) {
	var lines []string
	boxes := make([]cardBox, 0, len(cards))
	for _, c := range cards {
		cl := renderCard(c, bodyW, c.Index == cursor)
		boxes = append(boxes, cardBox{index: c.Index, top: len(lines), height: len(cl)})
		lines = append(lines, cl...)
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n"), boxes
}
