package journal

import (
	"time"

	"treno/internal/gesture"
	"treno/internal/model"
)

// Card is one record of the selected day as a surface renders it.
type Card struct {
	Index   int
	SwipeID string
	Record  model.WorkoutRecord
	State   gesture.State
	Offset  float64
}

type FormView struct {
	DateKey   string
	DateLabel string
	// Index is -1 for a new record.
	Index int

	Part   string
	Color  string
	Images []string

	Note         string
	NoteRevision uint64
	Composing    bool
}

func (f FormView) Editing() bool { return f.Index >= 0 }

// CanAddImage reports whether another image fits on the record.
func (f FormView) CanAddImage() bool { return len(f.Images) < model.MaxImagesPerRecord }

// View is a consistent snapshot of everything a surface needs to render.
type View struct {
	Version uint64
	Mode    Mode

	Selected      time.Time
	SelectedKey   string
	SelectedTitle string
	Today         time.Time
	Grid          []Day
	Cards         []Card

	Form   *FormView
	Delete *DeleteTarget
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := dayOf(s.now())
	key := s.selectedKey()
	snap := s.store.Snapshot()

	v := View{
		Version:       s.version,
		Mode:          s.mode,
		Selected:      s.selected,
		SelectedKey:   key,
		SelectedTitle: DayTitle(s.selected),
		Today:         today,
		Grid:          MonthGrid(s.selected, snap, s.selected, today),
	}

	for i, rec := range snap[key].Records {
		id := model.SwipeID(key, i)
		v.Cards = append(v.Cards, Card{
			Index:   i,
			SwipeID: id,
			Record:  rec.Clone(),
			State:   s.gestures.State(id),
			Offset:  s.gestures.Offset(id),
		})
	}

	if s.mode == ModeForm && s.form.date != "" {
		fv := &FormView{
			DateKey:      s.form.date,
			Index:        -1,
			Part:         s.form.part,
			Color:        s.form.color,
			Images:       append([]string{}, s.form.images...),
			Note:         s.form.note.HTML(),
			NoteRevision: s.form.note.Revision(),
			Composing:    s.form.note.Composing(),
		}
		if d, err := model.ParseDateKey(s.form.date); err == nil {
			fv.DateLabel = DateLabel(d)
		}
		if s.form.index != nil {
			fv.Index = *s.form.index
		}
		v.Form = fv
	}

	if s.pending != nil {
		t := *s.pending
		v.Delete = &t
	}
	return v
}
