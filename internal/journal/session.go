// Package journal holds the interaction state of one journal view: the
// calendar selection, the record form, swipeable cards and the delete dialog.
// Every surface (web, terminal) drives a Session; its methods are serialized
// so concurrent callers observe the same single-threaded behaviour.
package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"treno/internal/gesture"
	"treno/internal/imaging"
	"treno/internal/model"
	"treno/internal/persist"
	"treno/internal/records"
	"treno/internal/sanitize"
	"treno/internal/store"
)

type Mode string

const (
	ModeCalendar Mode = "calendar"
	ModeForm     Mode = "form"
)

var (
	ErrNoForm       = errors.New("no record form is open")
	ErrUnknownColor = errors.New("unknown colour")
	ErrNoRecord     = errors.New("record not found")
)

const (
	msgImageLoadFailed = "Failed to load the image."
	msgRecordGone      = "That record no longer exists."
)

// Persister stores committed records and edit buffers.
type Persister interface {
	SaveRecords(ctx context.Context, recs model.Records) error
	SaveEditBuffers(ctx context.Context, bufs model.EditBuffers) error
}

// ImageProcessor turns an uploaded image into a stored data URI.
type ImageProcessor func(ctx context.Context, r io.Reader) (string, error)

type Options struct {
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now    func() time.Time
	Images ImageProcessor
}

// DeleteTarget is the record a pending delete confirmation refers to.
type DeleteTarget struct {
	DateKey   string
	Index     int
	SwipeID   string
	DateLabel string
}

type form struct {
	date   string
	index  *int
	part   string
	color  string
	note   Editor
	images []string
}

type Session struct {
	log     *slog.Logger
	now     func() time.Time
	images  ImageProcessor
	persist Persister

	mu       sync.Mutex
	store    *records.Store
	buffers  model.EditBuffers
	gestures *gesture.Controller
	mode     Mode
	selected time.Time
	form     form
	pending  *DeleteTarget
	version  uint64

	// writeMu is taken while mu is still held so snapshots reach storage in
	// the order they were taken.
	writeMu sync.Mutex

	alertMu sync.Mutex
	alerts  []string

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// New builds a session over already loaded state.
func New(p Persister, recs model.Records, bufs model.EditBuffers, opts Options) *Session {
	s := newSession(opts)
	s.persist = p
	s.install(recs, bufs)
	return s
}

// Open loads state from kv through a persistence adapter whose storage
// alerts are queued on the returned session.
func Open(ctx context.Context, kv store.KV, opts Options) *Session {
	s := newSession(opts)
	p := persist.New(kv, persist.Options{Logger: s.log, Alert: s, Now: s.now})
	s.persist = p
	recs, bufs := p.Load(ctx)
	s.install(recs, bufs)
	return s
}

func newSession(opts Options) *Session {
	s := &Session{log: opts.Logger, now: opts.Now, images: opts.Images}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.images == nil {
		s.images = imaging.Process
	}
	s.gestures = gesture.New(s.now)
	s.mode = ModeCalendar
	s.selected = dayOf(s.now())
	s.form.color = model.DefaultColor
	s.form.images = []string{}
	s.subs = map[chan struct{}]struct{}{}
	return s
}

func (s *Session) install(recs model.Records, bufs model.EditBuffers) {
	s.store = records.New(recs)
	if bufs == nil {
		bufs = model.EditBuffers{}
	}
	s.buffers = bufs.Clone()
}

// Alert queues a message for the user. It never blocks on the session lock,
// so storage code running inside an operation may call it.
func (s *Session) Alert(msg string) {
	s.alertMu.Lock()
	s.alerts = append(s.alerts, msg)
	s.alertMu.Unlock()
	s.notify()
}

// DrainAlerts returns the queued messages and clears the queue.
func (s *Session) DrainAlerts() []string {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	out := s.alerts
	s.alerts = nil
	return out
}

// alertErr surfaces err to the user when it carries a user-facing message.
func (s *Session) alertErr(err error) {
	var ue *records.UserError
	switch {
	case errors.As(err, &ue):
		s.Alert(ue.Msg)
	case errors.Is(err, imaging.ErrDecode):
		s.Alert(msgImageLoadFailed)
	case errors.Is(err, records.ErrIndexOutOfRange):
		s.Alert(msgRecordGone)
	}
}

// Subscribe returns a channel that receives a value after state changes. The
// channel is buffered; bursts collapse into one signal.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// changed bumps the version; callers hold mu and call notify after unlocking.
func (s *Session) changed() {
	s.version++
}

// update runs fn under the lock and notifies subscribers afterwards.
func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	s.changed()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) selectedKey() string {
	return model.FormatDateKey(s.selected)
}

func (s *Session) SelectDate(t time.Time) {
	s.update(func() {
		s.selected = dayOf(t)
		s.gestures.CloseAll()
	})
}

func (s *Session) ChangeMonth(delta int) {
	s.update(func() {
		s.selected = addMonths(s.selected, delta)
		s.gestures.CloseAll()
	})
}

// TapOutside closes the open card, if any.
func (s *Session) TapOutside() {
	s.mu.Lock()
	open := s.gestures.OpenID() != ""
	if open {
		s.gestures.CloseAll()
		s.changed()
	}
	s.mu.Unlock()
	if open {
		s.notify()
	}
}

// StartAdd opens an empty form for the selected date, restoring any draft.
func (s *Session) StartAdd() {
	s.update(func() {
		key := s.selectedKey()
		buf := s.buffers[key]
		s.form.date = key
		s.form.index = nil
		s.form.part = buf.Part
		s.form.color = buf.Color
		if s.form.color == "" {
			s.form.color = model.DefaultColor
		}
		s.form.note.Set(buf.Note)
		s.form.images = []string{}
		s.mode = ModeForm
	})
}

// StartEdit opens the form on the selected date's record at index.
func (s *Session) StartEdit(index int) error {
	var err error
	s.update(func() { err = s.startEditLocked(index) })
	return err
}

func (s *Session) startEditLocked(index int) error {
	key := s.selectedKey()
	rec, ok := s.store.Get(key, index)
	if !ok {
		return ErrNoRecord
	}
	idx := index
	s.form.date = key
	s.form.index = &idx
	s.form.part = rec.Part
	s.form.color = rec.Color
	s.form.note.Set(rec.Note)
	s.form.images = append([]string{}, rec.Images...)
	s.mode = ModeForm
	s.gestures.CloseAll()
	return nil
}

// Back returns to the calendar. Drafts survive in the edit buffer.
func (s *Session) Back() {
	s.update(func() { s.mode = ModeCalendar })
}

func (s *Session) SetPart(ctx context.Context, part string) {
	s.editField(ctx, func() bool {
		if s.form.part == part {
			return false
		}
		s.form.part = part
		return true
	})
}

func (s *Session) SetColor(ctx context.Context, c string) error {
	color, ok := model.ResolveColor(c)
	if !ok {
		return ErrUnknownColor
	}
	s.editField(ctx, func() bool {
		if s.form.color == color {
			return false
		}
		s.form.color = color
		return true
	})
	return nil
}

func (s *Session) InputNote(ctx context.Context, html string) {
	s.editField(ctx, func() bool { return s.form.note.Input(html) })
}

func (s *Session) CompositionStart() {
	s.mu.Lock()
	s.form.note.CompositionStart()
	s.mu.Unlock()
}

func (s *Session) CompositionEnd(ctx context.Context, html string) {
	s.editField(ctx, func() bool { return s.form.note.CompositionEnd(html) })
}

func (s *Session) PasteNote(ctx context.Context, html, text, around string) {
	s.editField(ctx, func() bool { return s.form.note.Paste(html, text, around) })
}

// editField applies fn to the open form and, when it reports a change,
// autosaves the draft for the form's date.
func (s *Session) editField(ctx context.Context, fn func() bool) {
	s.mu.Lock()
	if s.form.date == "" || !fn() {
		s.mu.Unlock()
		return
	}
	bufs := s.buffers.Clone()
	bufs[s.form.date] = model.EditBuffer{Part: s.form.part, Note: s.form.note.HTML(), Color: s.form.color}
	s.buffers = bufs
	s.changed()
	done := s.beginWriteLocked()
	s.mu.Unlock()

	_ = s.persist.SaveEditBuffers(ctx, bufs)
	done()
	s.notify()
}

// AddImage processes r and attaches it to the form. Processing runs outside
// the lock; the result lands on whatever form is open when it finishes.
func (s *Session) AddImage(ctx context.Context, r io.Reader) error {
	uri, err := s.images(ctx, r)
	if err != nil {
		s.log.Warn("image processing failed", "err", err)
		s.alertErr(err)
		return err
	}

	s.mu.Lock()
	imgs, err := records.AppendImage(s.form.images, uri)
	if err == nil {
		s.form.images = imgs
		s.changed()
	}
	s.mu.Unlock()

	if err != nil {
		s.alertErr(err)
		return err
	}
	s.notify()
	return nil
}

func (s *Session) RemoveImage(index int) {
	s.update(func() { s.form.images = records.RemoveImage(s.form.images, index) })
}

// Save validates and commits the open form, then returns to the calendar.
// Validation failures leave the form untouched and raise an alert.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.form.date == "" {
		s.mu.Unlock()
		return ErrNoForm
	}
	rec := model.WorkoutRecord{
		Part:   s.form.part,
		Color:  s.form.color,
		Note:   s.form.note.HTML(),
		Images: s.form.images,
	}
	date, index := s.form.date, s.form.index

	recs, bufs, err := s.commitLocked(date, index, rec)
	if err != nil {
		s.mu.Unlock()
		s.alertErr(err)
		return err
	}
	s.resetFormLocked()
	s.mode = ModeCalendar
	s.changed()
	done := s.beginWriteLocked()
	s.mu.Unlock()

	s.notify()
	return s.persistAll(ctx, recs, bufs, done)
}

// Commit validates rec and stores it at (dateKey, index), appending when index
// is nil. The date's draft is dropped. It is the non-interactive save path.
func (s *Session) Commit(ctx context.Context, dateKey string, index *int, rec model.WorkoutRecord) error {
	s.mu.Lock()
	recs, bufs, err := s.commitLocked(dateKey, index, rec)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.changed()
	done := s.beginWriteLocked()
	s.mu.Unlock()

	s.notify()
	return s.persistAll(ctx, recs, bufs, done)
}

func (s *Session) commitLocked(dateKey string, index *int, rec model.WorkoutRecord) (model.Records, model.EditBuffers, error) {
	rec.Note = strings.TrimSpace(sanitize.HTML(rec.Note))
	if err := records.Validate(rec.Part, rec.Note, rec.Images); err != nil {
		return nil, nil, err
	}
	if rec.Note == "" {
		rec.Note = model.EmptyNote
	}
	if rec.Color == "" {
		rec.Color = model.DefaultColor
	}
	if rec.Images == nil {
		rec.Images = []string{}
	}
	rec = rec.Clone()

	if err := s.store.AddOrUpdate(dateKey, index, rec); err != nil {
		return nil, nil, err
	}
	s.dropBufferLocked(dateKey)
	s.log.Info("record saved", "date", dateKey, "update", index != nil)
	return s.store.Snapshot(), s.buffers, nil
}

// beginWriteLocked reserves the storage write slot; it must be called with mu
// held. The returned func releases the slot.
func (s *Session) beginWriteLocked() func() {
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

// persistAll writes both mappings and then calls done.
func (s *Session) persistAll(ctx context.Context, recs model.Records, bufs model.EditBuffers, done func()) error {
	defer done()
	errRecs := s.persist.SaveRecords(ctx, recs)
	errBufs := s.persist.SaveEditBuffers(ctx, bufs)
	return errors.Join(errRecs, errBufs)
}

func (s *Session) dropBufferLocked(dateKey string) {
	if _, ok := s.buffers[dateKey]; !ok {
		return
	}
	bufs := s.buffers.Clone()
	delete(bufs, dateKey)
	s.buffers = bufs
}

func (s *Session) resetFormLocked() {
	s.form.date = ""
	s.form.index = nil
	s.form.part = ""
	s.form.color = model.DefaultColor
	s.form.note.Set("")
	s.form.images = []string{}
}

func (s *Session) swipeID(index int) string {
	return model.SwipeID(s.selectedKey(), index)
}

func (s *Session) PointerDown(index int, ev gesture.Event) gesture.Down {
	var d gesture.Down
	s.update(func() { d = s.gestures.PointerDown(s.swipeID(index), ev) })
	return d
}

// PointerMove does not notify subscribers; the caller renders the returned
// offset directly.
func (s *Session) PointerMove(ev gesture.Event) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gestures.PointerMove(ev)
}

func (s *Session) PointerCancel(ev gesture.Event) gesture.End {
	var e gesture.End
	s.update(func() { e = s.gestures.PointerCancel(ev) })
	return e
}

// Release finishes an interaction on the card at index of the selected date.
// An edit outcome opens the form on that record.
func (s *Session) Release(index int, ev gesture.Event) gesture.Outcome {
	var out gesture.Outcome
	s.update(func() {
		out = s.gestures.Release(s.swipeID(index), ev)
		if out == gesture.OutcomeEdit {
			if err := s.startEditLocked(index); err != nil {
				s.log.Debug("tap on missing record", "index", index)
			}
		}
	})
	return out
}

// Offset is the rendered translation of the card at index.
func (s *Session) Offset(index int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gestures.Offset(s.swipeID(index))
}

// ResetGestures drops all transient gesture state, as when a view goes away.
func (s *Session) ResetGestures() {
	s.update(s.gestures.Reset)
}

// RequestDelete opens the confirmation dialog for the selected date's record
// at index.
func (s *Session) RequestDelete(index int) error {
	var err error
	s.update(func() {
		key := s.selectedKey()
		if _, ok := s.store.Get(key, index); !ok {
			err = ErrNoRecord
			return
		}
		s.gestures.ClearSuppression()
		s.pending = &DeleteTarget{
			DateKey:   key,
			Index:     index,
			SwipeID:   model.SwipeID(key, index),
			DateLabel: DateLabel(s.selected),
		}
	})
	return err
}

// CancelDelete closes the dialog without touching any record.
func (s *Session) CancelDelete() {
	s.update(func() { s.pending = nil })
}

// ConfirmDelete removes the pending target. A form open on that record is
// reset and the view returns to the calendar.
func (s *Session) ConfirmDelete(ctx context.Context) error {
	s.mu.Lock()
	t := s.pending
	s.pending = nil
	if t == nil {
		s.mu.Unlock()
		return nil
	}
	recs, bufs, err := s.deleteLocked(t.DateKey, t.Index)
	s.changed()
	if err != nil {
		s.mu.Unlock()
		s.notify()
		s.alertErr(err)
		return err
	}
	if s.gestures.OpenID() == t.SwipeID {
		s.gestures.CloseAll()
	}
	done := s.beginWriteLocked()
	s.mu.Unlock()

	s.notify()
	return s.persistAll(ctx, recs, bufs, done)
}

// Delete removes a record without the dialog; the non-interactive path.
func (s *Session) Delete(ctx context.Context, dateKey string, index int) error {
	s.mu.Lock()
	recs, bufs, err := s.deleteLocked(dateKey, index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.changed()
	done := s.beginWriteLocked()
	s.mu.Unlock()

	s.notify()
	return s.persistAll(ctx, recs, bufs, done)
}

func (s *Session) deleteLocked(dateKey string, index int) (model.Records, model.EditBuffers, error) {
	if err := s.store.Delete(dateKey, index); err != nil {
		return nil, nil, err
	}
	s.dropBufferLocked(dateKey)
	if s.form.date == dateKey && s.form.index != nil && *s.form.index == index {
		s.resetFormLocked()
		s.mode = ModeCalendar
	}
	s.log.Info("record deleted", "date", dateKey, "index", index)
	return s.store.Snapshot(), s.buffers, nil
}

func (s *Session) Records() model.Records {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

func (s *Session) EditBuffers() model.EditBuffers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Selected() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}
