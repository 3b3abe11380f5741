package tui

import (
	"fmt"
	"strings"

	"treno/internal/journal"
	"treno/internal/model"
	"treno/internal/sanitize"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

var weekdayLabels = []string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

func (m appModel) View() string {
	var body string
	if m.inForm && m.view.Form != nil {
		body = m.viewForm(*m.view.Form)
	} else {
		body = m.viewCalendar()
	}
	out := body + "\n" + m.viewFooter()

	if d := m.view.Delete; d != nil {
		modal := renderConfirmModal(m.width, "Delete record?",
			fmt.Sprintf("The record from %s will be removed.", d.DateLabel),
			"Delete", "Cancel", m.modalFocus)
		w := max(m.width, lipgloss.Width(modal))
		h := max(m.height, lipgloss.Height(modal))
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, modal)
	}
	return out
}

func (m appModel) viewCalendar() string {
	v := m.view
	lines := make([]string, 0, cardsTop+1)

	title := v.Selected.Format("January 2006")
	pad := gridWidth - 4 - xansi.StringWidth(title)
	left := pad / 2
	lines = append(lines, "‹ "+strings.Repeat(" ", max(left, 0))+styleTitle().Render(title)+strings.Repeat(" ", max(pad-left, 0))+" ›")

	var wk strings.Builder
	for _, d := range weekdayLabels {
		fmt.Fprintf(&wk, "%*s ", calendarCellW-1, d)
	}
	lines = append(lines, styleMuted().Render(wk.String()))

	for w := 0; w < 6; w++ {
		var row strings.Builder
		for i := w * 7; i < w*7+7 && i < len(v.Grid); i++ {
			row.WriteString(renderDay(v.Grid[i]))
		}
		lines = append(lines, row.String())
	}

	lines = append(lines, "")
	calFocus := m.focus == focusCalendar
	dayTitle := styleTitle().Render(v.SelectedTitle)
	if !calFocus {
		dayTitle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render(v.SelectedTitle)
	}
	lines = append(lines, dayTitle)

	if len(v.Cards) == 0 {
		lines = append(lines, styleMuted().Render("No workouts recorded. Press a to add one."))
	} else {
		lines = append(lines, m.cards.View())
	}
	return strings.Join(lines, "\n")
}

func renderDay(d journal.Day) string {
	label := fmt.Sprintf("%*d", calendarCellW-1, d.Day)
	st := lipgloss.NewStyle()
	switch {
	case d.Selected:
		st = st.Foreground(colorAccentFg).Background(colorAccent).Bold(true)
	case d.Today:
		st = st.Bold(true).Underline(true)
	case !d.InMonth:
		st = styleMuted()
	}
	dot := " "
	if d.HasRecords {
		rc, ok := model.ResolveColor(d.Color)
		if !ok {
			rc = model.DefaultColor
		}
		dot = lipgloss.NewStyle().Foreground(lipgloss.Color(rc)).Render("•")
	}
	return st.Render(label) + dot
}

func renderCard(c journal.Card, bodyW int, selected bool) []string {
	part := c.Record.Part
	if strings.TrimSpace(part) == "" {
		part = "(no body part)"
	}
	lines := []string{swatch(c.Record.Color, 2) + " " + styleTitle().Render(part)}
	for _, ln := range noteLines(c.Record.Note, 2) {
		lines = append(lines, "   "+ln)
	}
	if n := len(c.Record.Images); n > 0 {
		lines = append(lines, "   "+styleMuted().Render(fmt.Sprintf("%d image(s)", n)))
	}

	strip := actionCols(c.Offset)
	for i, ln := range lines {
		ln = fitWidth(ln, bodyW)
		if strip > 0 {
			ln = xansi.Cut(ln, strip, bodyW) + actionStrip(i, strip)
		}
		gutter := "  "
		if selected && i == 0 {
			gutter = lipgloss.NewStyle().Foreground(colorAccent).Render("› ")
		}
		lines[i] = gutter + ln
	}
	return lines
}

func noteLines(note string, limit int) []string {
	var out []string
	for _, ln := range strings.Split(sanitize.Text(note), "\n") {
		if ln = strings.TrimSpace(ln); ln == "" {
			continue
		}
		out = append(out, ln)
		if len(out) == limit {
			break
		}
	}
	return out
}

func actionStrip(line, width int) string {
	text := ""
	if line == 0 {
		text = " Delete"
	}
	return lipgloss.NewStyle().
		Foreground(colorDangerFg).
		Background(colorDangerBg).
		Render(fitWidth(text, width))
}

func (m appModel) viewForm(f journal.FormView) string {
	title := "New record"
	if f.Editing() {
		title = "Edit record"
	}
	label := func(field formField, s string) string {
		if m.field == field {
			return lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render(s)
		}
		return styleMuted().Render(s)
	}

	var palette strings.Builder
	for _, c := range model.Palette {
		if strings.EqualFold(c.Color, f.Color) {
			palette.WriteString("[" + swatch(c.Color, 2) + "]")
		} else {
			palette.WriteString(" " + swatch(c.Color, 2) + " ")
		}
	}

	lines := []string{
		styleTitle().Render(title) + styleMuted().Render("  "+f.DateLabel),
		"",
		label(fieldPart, "Body part"),
		m.part.View(),
		"",
		label(fieldColor, "Colour"),
		palette.String(),
		"",
		label(fieldNote, "Note"),
		m.note.View(),
		"",
		label(fieldImages, fmt.Sprintf("Images (%d/%d)", len(f.Images), model.MaxImagesPerRecord)),
	}
	for i, src := range f.Images {
		marker := "  "
		if m.field == fieldImages && i == m.imageSel {
			marker = "› "
		}
		size := humanize.Bytes(uint64(len(src) * 3 / 4))
		lines = append(lines, fmt.Sprintf("%s%d. image (%s)", marker, i+1, size))
	}
	switch {
	case m.attaching:
		lines = append(lines, m.path.View())
	case f.CanAddImage():
		lines = append(lines, styleMuted().Render("ctrl+o to attach an image"))
	}
	return strings.Join(lines, "\n")
}

func (m appModel) viewFooter() string {
	var msg string
	switch {
	case m.alert != "":
		msg = styleAlert().Render(m.alert)
	case m.status != "":
		msg = styleMuted().Render(m.status)
	}

	var keys help.KeyMap = m.calKeys
	if m.inForm {
		keys = m.formKeys
	}
	return msg + "\n" + m.help.View(keys)
}
