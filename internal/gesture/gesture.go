// Package gesture recognizes horizontal swipes on record cards and tells taps
// apart from swipe releases and from the duplicate synthetic taps some
// platforms fire after a touch.
//
// A Controller owns the transient state of one view: the active gesture, the
// single open card, tap suppression after a swipe and the last tap seen. It
// is not safe for concurrent use; callers serialize access.
package gesture

import (
	"math"
	"time"
)

const (
	// ActionWidth is how far an open card is shifted to reveal its action.
	ActionWidth = 88.0
	// OpenThreshold is the distance past zero a released card must reach to stay open.
	OpenThreshold = 30.0
	// AxisJitter is the movement ignored before the gesture locks to an axis.
	AxisJitter = 6.0
	// TapMoveThreshold is the horizontal travel after which a release is no longer a tap.
	TapMoveThreshold = 8.0

	TapSuppressWindow = 280 * time.Millisecond

	DuplicateTapWindow   = 80 * time.Millisecond
	DuplicateTapDistance = 2.0
)

// Source is the kind of event that delivered an interaction.
type Source int

const (
	SourcePointer Source = iota
	SourceTouch
	SourceMouse
)

// Device is the pointer type a pointer event reports.
type Device string

const (
	DeviceMouse Device = "mouse"
	DeviceTouch Device = "touch"
	DevicePen   Device = "pen"
)

// Event is one pointer, touch or mouse event in view coordinates.
type Event struct {
	Source Source
	// PointerID is only meaningful for SourcePointer events.
	PointerID int
	Device    Device
	Button    int

	X, Y   float64
	HasPos bool

	// Time is the event timestamp; zero means "now".
	Time time.Time
}

func (e Event) pointer(id int) bool {
	return e.Source == SourcePointer && e.PointerID == id
}

// State is the display state of one card.
type State string

const (
	StateClosed   State = "closed"
	StateDragging State = "dragging"
	StateOpen     State = "open"
)

// Down reports how a pointer-down was handled.
type Down struct {
	Accepted bool
	// Capture asks the surface to capture the pointer (mouse only).
	Capture bool
	// Closed is the card that was closed to make room, if any.
	Closed string
}

// End reports how an active gesture finished.
type End struct {
	Ended bool
	// ReleaseCapture is set when Down asked for capture.
	ReleaseCapture bool
	Moved          bool
	Open           bool
}

// Outcome is the decision taken for a release on a card.
type Outcome int

const (
	// OutcomeSwipeEnd: the release finished a swipe.
	OutcomeSwipeEnd Outcome = iota
	// OutcomeDuplicate: a synthetic repeat of the previous tap.
	OutcomeDuplicate
	// OutcomeSuppressed: the tap a platform fires right after a swipe.
	OutcomeSuppressed
	// OutcomeClose: a tap on an open card, which closes it.
	OutcomeClose
	// OutcomeEdit: a tap on a closed card, which opens it for editing.
	OutcomeEdit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSwipeEnd:
		return "swipe-end"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeClose:
		return "close"
	case OutcomeEdit:
		return "edit"
	default:
		return "unknown"
	}
}

type drag struct {
	id        string
	pointerID int
	capture   bool
	startX    float64
	startY    float64
	baseline  float64

	horizontal bool
	vertical   bool
	moved      bool
	offset     float64
}

type suppression struct {
	active   bool
	consumed bool
	until    time.Time
}

type tap struct {
	swipeID string
	at      time.Time
	x, y    float64
	hasPos  bool
}

// Controller tracks card swipes for one view: the open card, the active
// drag and tap suppression after a swipe.
type Controller struct {
	now func() time.Time

	openID   string
	drag     drag
	suppress suppression
	lastTap  tap
}

// New returns a controller reading time from now (time.Now when nil).
func New(now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{now: now}
}

// PointerDown starts a gesture on swipeID, closing any other open card.
func (c *Controller) PointerDown(swipeID string, ev Event) Down {
	if ev.Device == DeviceMouse && ev.Button != 0 {
		return Down{}
	}

	var d Down
	if c.openID != "" && c.openID != swipeID {
		d.Closed = c.openID
		c.openID = ""
	}

	baseline := 0.0
	if c.openID == swipeID {
		baseline = -ActionWidth
	}
	d.Accepted = true
	d.Capture = ev.Device == DeviceMouse

	c.drag = drag{
		id:        swipeID,
		pointerID: ev.PointerID,
		capture:   d.Capture,
		startX:    ev.X,
		startY:    ev.Y,
		baseline:  baseline,
		offset:    baseline,
	}
	return d
}

// PointerMove updates the active gesture. ok is false when the event was
// ignored: unknown pointer, axis not resolved yet, or a vertical scroll.
func (c *Controller) PointerMove(ev Event) (offset float64, ok bool) {
	g := &c.drag
	if g.id == "" || !ev.pointer(g.pointerID) {
		return 0, false
	}
	if g.vertical {
		return g.offset, false
	}

	dx := ev.X - g.startX
	dy := ev.Y - g.startY
	adx, ady := math.Abs(dx), math.Abs(dy)

	if !g.horizontal {
		switch {
		case adx > AxisJitter && adx > ady:
			g.horizontal = true
		case ady > AxisJitter && ady > adx:
			g.vertical = true
			return g.offset, false
		default:
			return g.offset, false
		}
	}

	if adx > TapMoveThreshold {
		g.moved = true
	}
	g.offset = clamp(g.baseline+dx, -ActionWidth, 0)
	return g.offset, true
}

// PointerCancel ends the active gesture as a cancel would, without a tap.
func (c *Controller) PointerCancel(ev Event) End {
	return c.end(ev)
}

func (c *Controller) end(ev Event) End {
	g := c.drag
	if g.id == "" || !ev.pointer(g.pointerID) {
		return End{}
	}

	e := End{Ended: true, ReleaseCapture: g.capture, Moved: g.moved}
	if g.moved {
		c.suppress = suppression{active: true, until: c.now().Add(TapSuppressWindow)}
		if g.offset <= -OpenThreshold {
			c.openID = g.id
			e.Open = true
		} else {
			c.openID = ""
		}
	}
	c.drag = drag{}
	return e
}

// Release handles the pointer-up, touch-end or mouse-up that lands on a card.
func (c *Controller) Release(swipeID string, ev Event) Outcome {
	wasOpen := c.openID == swipeID
	wasSwipeMove := c.drag.id == swipeID && ev.pointer(c.drag.pointerID) && c.drag.moved

	c.end(ev)

	switch {
	case wasSwipeMove:
		return OutcomeSwipeEnd
	case c.duplicateTap(swipeID, ev):
		return OutcomeDuplicate
	case c.consumeSuppressedTap():
		return OutcomeSuppressed
	case wasOpen:
		c.CloseAll()
		return OutcomeClose
	default:
		return OutcomeEdit
	}
}

// duplicateTap compares ev with the previous tap and then remembers ev.
func (c *Controller) duplicateTap(swipeID string, ev Event) bool {
	at := ev.Time
	if at.IsZero() {
		at = c.now()
	}
	last := c.lastTap
	c.lastTap = tap{swipeID: swipeID, at: at, x: ev.X, y: ev.Y, hasPos: ev.HasPos}

	if last.swipeID == "" || last.swipeID != swipeID {
		return false
	}
	gap := at.Sub(last.at)
	if gap < 0 {
		gap = -gap
	}
	if gap > DuplicateTapWindow {
		return false
	}
	return ev.HasPos && last.hasPos &&
		math.Abs(ev.X-last.x) <= DuplicateTapDistance &&
		math.Abs(ev.Y-last.y) <= DuplicateTapDistance
}

func (c *Controller) consumeSuppressedTap() bool {
	s := &c.suppress
	if !s.active || s.consumed {
		return false
	}
	if !c.now().Before(s.until) {
		*s = suppression{}
		return false
	}
	s.consumed = true
	return true
}

// CloseAll closes the open card, abandons any gesture and clears suppression.
func (c *Controller) CloseAll() {
	c.openID = ""
	c.drag = drag{}
	c.suppress = suppression{}
}

// ClearSuppression lets the next tap through.
func (c *Controller) ClearSuppression() {
	c.suppress = suppression{}
}

// Reset forgets everything, as when the view is torn down.
func (c *Controller) Reset() {
	now := c.now
	*c = Controller{now: now}
}

// OpenID returns the open card, or "" when all are closed.
func (c *Controller) OpenID() string { return c.openID }

// Dragging returns the card under an active gesture, if any.
func (c *Controller) Dragging() string { return c.drag.id }

// State reports how swipeID is displayed.
func (c *Controller) State(swipeID string) State {
	switch {
	case swipeID != "" && c.drag.id == swipeID:
		return StateDragging
	case swipeID != "" && c.openID == swipeID:
		return StateOpen
	default:
		return StateClosed
	}
}

// Offset is the horizontal translation to render swipeID at.
func (c *Controller) Offset(swipeID string) float64 {
	switch c.State(swipeID) {
	case StateDragging:
		return c.drag.offset
	case StateOpen:
		return -ActionWidth
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
