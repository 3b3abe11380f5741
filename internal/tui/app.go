package tui

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"treno/internal/gesture"
	"treno/internal/journal"
	"treno/internal/logging"
	"treno/internal/model"
	"treno/internal/sanitize"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type focusArea int

const (
	focusCalendar focusArea = iota
	focusCards
)

type formField int

const (
	fieldPart formField = iota
	fieldColor
	fieldNote
	fieldImages
	fieldCount
)

const (
	// A terminal cell is treated as 8x16 px when feeding the gesture controller.
	cellWidthPx  = 8.0
	cellHeightPx = 16.0

	mousePointerID = 1
	keyPointerID   = 2

	msgImageOpenFailed = "Failed to load the image."
)

type sessionChangedMsg struct{}

type imageAddedMsg struct{ err error }

type copiedMsg struct{ err error }

type Options struct {
	Logger *slog.Logger
	// Copy writes text to the clipboard (the system clipboard when nil).
	Copy func(string) error
}

type appModel struct {
	ctx  context.Context
	sess *journal.Session
	log  *slog.Logger
	copy func(string) error

	events      <-chan struct{}
	unsubscribe func()

	width  int
	height int

	view   journal.View
	alert  string
	status string

	calKeys   calendarKeys
	formKeys  formKeys
	modalKeys modalKeys
	help      help.Model

	focus     focusArea
	cursor    int
	cards     viewport.Model
	boxes     []cardBox
	mouseDown int

	inForm    bool
	field     formField
	part      textinput.Model
	note      textarea.Model
	noteRev   uint64
	imageSel  int
	attaching bool
	path      textinput.Model

	modalFocus confirmModalFocus
}

func newAppModel(ctx context.Context, sess *journal.Session, opts Options) appModel {
	m := appModel{
		ctx:       ctx,
		sess:      sess,
		log:       opts.Logger,
		copy:      opts.Copy,
		calKeys:   newCalendarKeys(),
		formKeys:  newFormKeys(),
		modalKeys: newModalKeys(),
		help:      help.New(),
		cards:     viewport.New(64, 8),
		mouseDown: -1,
	}
	if m.log == nil {
		m.log = logging.Discard()
	}
	if m.copy == nil {
		m.copy = copyToClipboard
	}
	m.events, m.unsubscribe = sess.Subscribe()

	m.part = textinput.New()
	m.part.Placeholder = "Body part"
	m.part.CharLimit = 80
	m.part.Prompt = ""

	m.note = textarea.New()
	m.note.Placeholder = "Note (Markdown)…"
	m.note.CharLimit = 0
	m.note.ShowLineNumbers = false
	m.note.SetWidth(60)
	m.note.SetHeight(6)

	m.path = textinput.New()
	m.path.Placeholder = "/path/to/image.jpg"
	m.path.Prompt = "Image: "
	m.path.CharLimit = 4096

	m.sync()
	return m
}

func waitForSession(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		<-ch
		return sessionChangedMsg{}
	}
}

func (m appModel) Init() tea.Cmd { return waitForSession(m.events) }

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.note.SetWidth(m.bodyWidth())

	case sessionChangedMsg:
		cmd = waitForSession(m.events)

	case imageAddedMsg:
		if msg.err != nil {
			m.log.Debug("image not attached", "err", msg.err)
		}

	case copiedMsg:
		if msg.err != nil {
			m.status = "Copy failed: " + msg.err.Error()
		} else {
			m.status = "Note copied."
		}

	case tea.KeyMsg:
		m.alert = ""
		m.status = ""
		m, cmd = m.updateKey(msg)

	case tea.MouseMsg:
		m = m.updateMouse(msg)
	}

	m.sync()
	return m, cmd
}

func (m appModel) updateKey(msg tea.KeyMsg) (appModel, tea.Cmd) {
	switch {
	case m.view.Delete != nil:
		return m.updateDeleteModal(msg), nil
	case m.inForm:
		return m.updateForm(msg)
	default:
		return m.updateCalendar(msg)
	}
}

func (m appModel) updateCalendar(msg tea.KeyMsg) (appModel, tea.Cmd) {
	k := m.calKeys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, k.Focus):
		if m.focus == focusCards || len(m.view.Cards) == 0 {
			m.focus = focusCalendar
		} else {
			m.focus = focusCards
		}
	case key.Matches(msg, k.Add):
		m.sess.StartAdd()
	case key.Matches(msg, k.PrevMonth):
		m.sess.ChangeMonth(-1)
	case key.Matches(msg, k.NextMonth):
		m.sess.ChangeMonth(1)
	case key.Matches(msg, k.Today):
		m.sess.SelectDate(m.view.Today)
	case m.focus == focusCards:
		m.updateCards(msg)
	case key.Matches(msg, k.Left):
		m.moveDay(-1)
	case key.Matches(msg, k.Right):
		m.moveDay(1)
	case key.Matches(msg, k.Up):
		m.moveDay(-7)
	case key.Matches(msg, k.Down):
		m.moveDay(7)
	case key.Matches(msg, k.Escape):
		m.sess.TapOutside()
	}
	return m, nil
}

func (m *appModel) moveDay(days int) {
	m.sess.SelectDate(m.view.Selected.AddDate(0, 0, days))
}

func (m *appModel) updateCards(msg tea.KeyMsg) {
	k := m.calKeys
	switch {
	case key.Matches(msg, k.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, k.Down):
		if m.cursor < len(m.view.Cards)-1 {
			m.cursor++
		}
	case key.Matches(msg, k.Open):
		m.keyTap(m.cursor)
	case key.Matches(msg, k.SwipeOpen, k.Left):
		m.keySwipe(m.cursor, -gesture.ActionWidth)
	case key.Matches(msg, k.SwipeClose, k.Right):
		m.keySwipe(m.cursor, gesture.ActionWidth)
	case key.Matches(msg, k.Delete):
		m.requestDelete(m.cursor)
	case key.Matches(msg, k.Escape):
		m.sess.TapOutside()
		m.focus = focusCalendar
	}
}

// keyTap feeds a positionless tap through the gesture controller, so it
// edits a closed card and closes an open one.
func (m *appModel) keyTap(index int) {
	ev := gesture.Event{Source: gesture.SourcePointer, PointerID: keyPointerID, Device: gesture.DevicePen}
	if d := m.sess.PointerDown(index, ev); !d.Accepted {
		return
	}
	m.sess.Release(index, ev)
}

// keySwipe drags the card by dx px and releases it.
func (m *appModel) keySwipe(index int, dx float64) {
	ev := gesture.Event{Source: gesture.SourcePointer, PointerID: keyPointerID, Device: gesture.DevicePen, HasPos: true}
	if d := m.sess.PointerDown(index, ev); !d.Accepted {
		return
	}
	ev.X = dx
	m.sess.PointerMove(ev)
	m.sess.Release(index, ev)
}

func (m *appModel) requestDelete(index int) {
	if err := m.sess.RequestDelete(index); err != nil {
		m.log.Debug("delete request ignored", "index", index, "err", err)
		return
	}
	m.modalFocus = confirmFocusCancel
}

func (m appModel) updateDeleteModal(msg tea.KeyMsg) appModel {
	k := m.modalKeys
	switch {
	case key.Matches(msg, k.Toggle):
		m.modalFocus = m.modalFocus.toggle()
	case key.Matches(msg, k.Confirm):
		m.confirmDelete()
	case key.Matches(msg, k.Cancel):
		m.sess.CancelDelete()
	case key.Matches(msg, k.Select):
		if m.modalFocus == confirmFocusConfirm {
			m.confirmDelete()
		} else {
			m.sess.CancelDelete()
		}
	}
	return m
}

func (m *appModel) confirmDelete() {
	if err := m.sess.ConfirmDelete(m.ctx); err != nil {
		m.log.Warn("delete failed", "err", err)
	}
}

func (m appModel) updateForm(msg tea.KeyMsg) (appModel, tea.Cmd) {
	if m.attaching {
		return m.updateAttach(msg)
	}
	f := m.view.Form
	if f == nil {
		return m, nil
	}

	k := m.formKeys
	switch {
	case key.Matches(msg, k.ForceQuit):
		return m, tea.Quit
	case key.Matches(msg, k.Save):
		if err := m.sess.Save(m.ctx); err != nil {
			m.log.Debug("save rejected", "err", err)
		}
		return m, nil
	case key.Matches(msg, k.Back):
		m.sess.Back()
		return m, nil
	case key.Matches(msg, k.Next):
		cmd := m.setField((m.field + 1) % fieldCount)
		return m, cmd
	case key.Matches(msg, k.Prev):
		cmd := m.setField((m.field + fieldCount - 1) % fieldCount)
		return m, cmd
	case key.Matches(msg, k.Attach):
		m.attaching = true
		m.path.SetValue("")
		cmd := m.path.Focus()
		return m, cmd
	case key.Matches(msg, k.Copy):
		return m, copyCmd(m.copy, sanitize.Text(f.Note))
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	var cmd tea.Cmd
	switch m.field {
	case fieldPart:
		m.part, cmd = m.part.Update(msg)
		if v := m.part.Value(); v != f.Part {
			m.sess.SetPart(m.ctx, v)
		}
	case fieldColor:
		switch {
		case key.Matches(msg, k.ColorPrev):
			m.stepColor(f.Color, -1)
		case key.Matches(msg, k.ColorNext):
			m.stepColor(f.Color, 1)
		}
	case fieldNote:
		if msg.Paste {
			m.sess.PasteNote(m.ctx, "", string(msg.Runes), "")
			return m, nil
		}
		before := m.note.Value()
		m.note, cmd = m.note.Update(msg)
		if v := m.note.Value(); v != before {
			m.sess.InputNote(m.ctx, sanitize.FromMarkdown(v))
		}
	case fieldImages:
		switch {
		case key.Matches(msg, m.calKeys.Up):
			if m.imageSel > 0 {
				m.imageSel--
			}
		case key.Matches(msg, m.calKeys.Down):
			if m.imageSel < len(f.Images)-1 {
				m.imageSel++
			}
		case key.Matches(msg, k.RemoveImage):
			m.sess.RemoveImage(m.imageSel)
		}
	}
	return m, cmd
}

func (m *appModel) setField(f formField) tea.Cmd {
	m.field = f
	m.part.Blur()
	m.note.Blur()
	m.formKeys.paletteFocus = f == fieldColor
	m.formKeys.imagesFocus = f == fieldImages
	switch f {
	case fieldPart:
		return m.part.Focus()
	case fieldNote:
		return m.note.Focus()
	}
	return nil
}

func (m *appModel) stepColor(current string, delta int) {
	n := len(model.Palette)
	i := 0
	for j, c := range model.Palette {
		if strings.EqualFold(c.Color, current) {
			i = j
			break
		}
	}
	next := model.Palette[((i+delta)%n+n)%n]
	if err := m.sess.SetColor(m.ctx, next.ID); err != nil {
		m.log.Debug("colour rejected", "color", next.ID, "err", err)
	}
}

func (m appModel) updateAttach(msg tea.KeyMsg) (appModel, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.attaching = false
		m.path.Blur()
		return m, nil
	case tea.KeyEnter:
		path := strings.TrimSpace(m.path.Value())
		m.attaching = false
		m.path.Blur()
		if path == "" {
			return m, nil
		}
		return m, addImageCmd(m.ctx, m.sess, path)
	}
	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func addImageCmd(ctx context.Context, sess *journal.Session, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(expandHome(path))
		if err != nil {
			sess.Alert(msgImageOpenFailed)
			return imageAddedMsg{err: err}
		}
		defer f.Close()
		return imageAddedMsg{err: sess.AddImage(ctx, f)}
	}
}

func copyCmd(copyFn func(string) error, text string) tea.Cmd {
	return func() tea.Msg { return copiedMsg{err: copyFn(text)} }
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func (m appModel) updateMouse(msg tea.MouseMsg) appModel {
	if m.view.Delete != nil || m.inForm {
		return m
	}

	ev := gesture.Event{
		Source:    gesture.SourcePointer,
		PointerID: mousePointerID,
		Device:    gesture.DeviceMouse,
		X:         float64(msg.X) * cellWidthPx,
		Y:         float64(msg.Y) * cellHeightPx,
		HasPos:    true,
	}

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.cards.LineUp(1)
			return m
		case tea.MouseButtonWheelDown:
			m.cards.LineDown(1)
			return m
		case tea.MouseButtonLeft:
		default:
			return m
		}

		idx, onAction := m.cardAt(msg.X, msg.Y)
		if idx < 0 {
			m.clickCalendar(msg.X, msg.Y)
			return m
		}
		if onAction {
			m.requestDelete(idx)
			return m
		}
		if d := m.sess.PointerDown(idx, ev); d.Accepted {
			m.mouseDown = idx
			m.focus = focusCards
			m.cursor = idx
		}

	case tea.MouseActionMotion:
		if m.mouseDown >= 0 {
			m.sess.PointerMove(ev)
		}

	case tea.MouseActionRelease:
		if m.mouseDown >= 0 {
			idx := m.mouseDown
			m.mouseDown = -1
			m.sess.Release(idx, ev)
		}
	}
	return m
}

func (m *appModel) clickCalendar(x, y int) {
	switch {
	case y == 0 && x < 2:
		m.sess.ChangeMonth(-1)
	case y == 0 && x >= gridWidth-2 && x < gridWidth:
		m.sess.ChangeMonth(1)
	case y >= gridTop && y < gridTop+6 && x < gridWidth:
		i := (y-gridTop)*7 + x/calendarCellW
		if i >= 0 && i < len(m.view.Grid) {
			m.sess.SelectDate(m.view.Grid[i].Date)
		}
	default:
		m.sess.TapOutside()
	}
}

// cardAt maps a screen cell to the card drawn there. onAction is set when the
// cell is on the revealed delete strip of an open card.
func (m appModel) cardAt(x, y int) (index int, onAction bool) {
	if y < cardsTop || y >= cardsTop+m.cards.Height {
		return -1, false
	}
	line := y - cardsTop + m.cards.YOffset
	for _, b := range m.boxes {
		if line < b.top || line >= b.top+b.height {
			continue
		}
		if b.index < len(m.view.Cards) {
			c := m.view.Cards[b.index]
			strip := actionCols(c.Offset)
			onAction = c.State == gesture.StateOpen && x >= cardGutter+m.bodyWidth()-strip
		}
		return b.index, onAction
	}
	return -1, false
}

// sync pulls a fresh view from the session and reconciles local widgets.
func (m *appModel) sync() {
	m.view = m.sess.View()
	if alerts := m.sess.DrainAlerts(); len(alerts) > 0 {
		m.alert = strings.Join(alerts, "  ")
	}

	n := len(m.view.Cards)
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	if n == 0 && m.focus == focusCards {
		m.focus = focusCalendar
	}

	f := m.view.Form
	switch {
	case f != nil && !m.inForm:
		m.inForm = true
		m.attaching = false
		m.part.SetValue(f.Part)
		m.note.SetValue(sanitize.Text(f.Note))
		m.noteRev = f.NoteRevision
		m.imageSel = 0
		m.setField(fieldPart)
	case f == nil && m.inForm:
		m.inForm = false
		m.attaching = false
		m.part.Blur()
		m.note.Blur()
		m.path.Blur()
	case f != nil && f.NoteRevision != m.noteRev:
		m.note.SetValue(sanitize.Text(f.Note))
		m.noteRev = f.NoteRevision
	}
	if f != nil && m.imageSel >= len(f.Images) {
		m.imageSel = max(len(f.Images)-1, 0)
	}

	m.layoutCards()
}
