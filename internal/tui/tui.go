// Package tui is the terminal surface of the journal: a month calendar, the
// selected day's record cards and the record form, driven by a
// journal.Session.
package tui

import (
	"context"

	"treno/internal/journal"

	tea "github.com/charmbracelet/bubbletea"
)

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, sess *journal.Session, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	m := newAppModel(ctx, sess, opts)
	defer m.unsubscribe()
	defer sess.ResetGestures()

	_, err := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	).Run()
	return err
}
