package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type confirmModalFocus int

const (
	confirmFocusCancel confirmModalFocus = iota
	confirmFocusConfirm
)

func (f confirmModalFocus) toggle() confirmModalFocus {
	if f == confirmFocusConfirm {
		return confirmFocusCancel
	}
	return confirmFocusConfirm
}

func renderConfirmModal(width int, title string, body string, confirmLabel string, cancelLabel string, focus confirmModalFocus) string {
	// No nested borders: some terminals leave background artifacts inside a
	// modal with a background colour.
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)
	btnDanger := btnBase.
		Foreground(colorDangerFg).
		Background(colorDangerBg).
		Bold(true)

	confirm := btnBase.Render(confirmLabel)
	cancel := btnBase.Render(cancelLabel)
	if focus == confirmFocusConfirm {
		confirm = btnDanger.Render(confirmLabel)
	}
	if focus == confirmFocusCancel {
		cancel = btnActive.Render(cancelLabel)
	}

	sep := lipgloss.NewStyle().Background(colorControlBg).Render(" ")
	controls := lipgloss.JoinHorizontal(lipgloss.Top, cancel, sep, confirm)

	help := styleMuted().Width(modalBodyWidth(width)).Render("tab: focus   enter: select   y: delete   esc: cancel")

	content := strings.Join([]string{
		body,
		"",
		controls,
		"",
		help,
	}, "\n")
	return renderModalBox(width, title, content)
}

func modalBodyWidth(width int) int {
	w := width - 8
	if w > 56 {
		w = 56
	}
	if w < 20 {
		w = 20
	}
	return w
}

func renderModalBox(width int, title string, content string) string {
	bodyW := modalBodyWidth(width)
	header := lipgloss.NewStyle().
		Bold(true).
		Width(bodyW).
		Foreground(colorSurfaceFg).
		Background(colorControlBg).
		Render(title)
	body := lipgloss.NewStyle().Width(bodyW).Render(content)
	return lipgloss.NewStyle().
		Padding(1, 2).
		Background(colorSurfaceBg).
		Foreground(colorSurfaceFg).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Render(header + "\n\n" + body)
}
