package tui

import "github.com/charmbracelet/bubbles/key"

type calendarKeys struct {
	Left, Right, Up, Down key.Binding
	PrevMonth, NextMonth  key.Binding
	Today                 key.Binding
	Focus                 key.Binding
	Open                  key.Binding
	SwipeOpen, SwipeClose key.Binding
	Delete                key.Binding
	Add                   key.Binding
	Escape                key.Binding
	Help                  key.Binding
	Quit                  key.Binding
}

func newCalendarKeys() calendarKeys {
	return calendarKeys{
		Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev day")),
		Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next day")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PrevMonth:  key.NewBinding(key.WithKeys("[", "pgup"), key.WithHelp("[", "prev month")),
		NextMonth:  key.NewBinding(key.WithKeys("]", "pgdown"), key.WithHelp("]", "next month")),
		Today:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		Focus:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "calendar/records")),
		Open:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit/close")),
		SwipeOpen:  key.NewBinding(key.WithKeys("<", "shift+left"), key.WithHelp("<", "reveal delete")),
		SwipeClose: key.NewBinding(key.WithKeys(">", "shift+right"), key.WithHelp(">", "hide delete")),
		Delete:     key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Add:        key.NewBinding(key.WithKeys("a", "n"), key.WithHelp("a", "add record")),
		Escape:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close card")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k calendarKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.Open, k.SwipeOpen, k.Add, k.Help, k.Quit}
}

func (k calendarKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.PrevMonth, k.NextMonth, k.Today, k.Focus},
		{k.Open, k.SwipeOpen, k.SwipeClose, k.Delete},
		{k.Add, k.Escape, k.Help, k.Quit},
	}
}

type formKeys struct {
	Next, Prev   key.Binding
	Save         key.Binding
	Back         key.Binding
	Attach       key.Binding
	Copy         key.Binding
	ColorPrev    key.Binding
	ColorNext    key.Binding
	RemoveImage  key.Binding
	Help         key.Binding
	ForceQuit    key.Binding
	imagesFocus  bool
	paletteFocus bool
}

func newFormKeys() formKeys {
	return formKeys{
		Next:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Prev:        key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Save:        key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "done")),
		Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Attach:      key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "attach image")),
		Copy:        key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy note")),
		ColorPrev:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev colour")),
		ColorNext:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next colour")),
		RemoveImage: key.NewBinding(key.WithKeys("x", "delete", "backspace"), key.WithHelp("x", "remove image")),
		Help:        key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "help")),
		ForceQuit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k formKeys) ShortHelp() []key.Binding {
	out := []key.Binding{k.Next, k.Save, k.Back, k.Attach}
	switch {
	case k.paletteFocus:
		out = append(out, k.ColorPrev, k.ColorNext)
	case k.imagesFocus:
		out = append(out, k.RemoveImage)
	}
	return append(out, k.Help)
}

func (k formKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Save, k.Back},
		{k.Attach, k.Copy, k.ForceQuit},
		{k.ColorPrev, k.ColorNext, k.RemoveImage},
	}
}

type modalKeys struct {
	Toggle  key.Binding
	Select  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

func newModalKeys() modalKeys {
	return modalKeys{
		Toggle:  key.NewBinding(key.WithKeys("tab", "shift+tab", "left", "right")),
		Select:  key.NewBinding(key.WithKeys("enter")),
		Confirm: key.NewBinding(key.WithKeys("y")),
		Cancel:  key.NewBinding(key.WithKeys("esc", "n", "ctrl+g")),
	}
}
