// Package records holds committed workout records in memory, bucketed by
// date key.
package records

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"treno/internal/model"
	"treno/internal/sanitize"
)

// UserError carries a message meant to be shown to the user verbatim.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

var (
	ErrEmptyRecord   error = &UserError{Msg: "Enter a body part, a note, or an image."}
	ErrTooManyImages error = &UserError{Msg: fmt.Sprintf("You can attach up to %d images.", model.MaxImagesPerRecord)}
	ErrImageTooLarge error = &UserError{Msg: "The image is too large to attach."}

	ErrIndexOutOfRange = errors.New("record index out of range")
)

// Store is copy-on-write: every mutation installs a fresh mapping, so a
// Snapshot handed out earlier never changes underneath its holder.
type Store struct {
	mu   sync.RWMutex
	days model.Records
}

func New(initial model.Records) *Store {
	days := initial.Clone()
	for k, b := range days {
		if len(b.Records) == 0 {
			delete(days, k)
		}
	}
	return &Store{days: days}
}

// AddOrUpdate appends rec when index is nil, otherwise replaces the record
// at *index.
func (s *Store) AddOrUpdate(dateKey string, index *int, rec model.WorkoutRecord) error {
	dateKey = strings.TrimSpace(dateKey)
	if dateKey == "" {
		return errors.New("missing date")
	}
	rec = rec.Clone()
	if rec.Images == nil {
		rec.Images = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.days[dateKey].Records
	var next []model.WorkoutRecord
	if index == nil {
		next = make([]model.WorkoutRecord, 0, len(cur)+1)
		next = append(next, cur...)
		next = append(next, rec)
	} else {
		i := *index
		if i < 0 || i >= len(cur) {
			return fmt.Errorf("update %s[%d]: %w", dateKey, i, ErrIndexOutOfRange)
		}
		next = append([]model.WorkoutRecord(nil), cur...)
		next[i] = rec
	}
	s.install(dateKey, next)
	return nil
}

// Delete removes the record at index. A date left without records is
// removed from the mapping.
func (s *Store) Delete(dateKey string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.days[dateKey].Records
	if index < 0 || index >= len(cur) {
		return fmt.Errorf("delete %s[%d]: %w", dateKey, index, ErrIndexOutOfRange)
	}
	next := make([]model.WorkoutRecord, 0, len(cur)-1)
	next = append(next, cur[:index]...)
	next = append(next, cur[index+1:]...)
	s.install(dateKey, next)
	return nil
}

// install must be called with mu held.
func (s *Store) install(dateKey string, recs []model.WorkoutRecord) {
	days := make(model.Records, len(s.days)+1)
	for k, v := range s.days {
		days[k] = v
	}
	if len(recs) == 0 {
		delete(days, dateKey)
	} else {
		days[dateKey] = model.DayBucket{Records: recs}
	}
	s.days = days
}

func (s *Store) ByDate(dateKey string) []model.WorkoutRecord {
	s.mu.RLock()
	cur := s.days[dateKey].Records
	s.mu.RUnlock()

	out := make([]model.WorkoutRecord, 0, len(cur))
	for _, r := range cur {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Store) Get(dateKey string, index int) (model.WorkoutRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.days[dateKey].Records
	if index < 0 || index >= len(cur) {
		return model.WorkoutRecord{}, false
	}
	return cur[index].Clone(), true
}

func (s *Store) Has(dateKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days[dateKey].Records) > 0
}

// Snapshot returns the current mapping. Callers must treat it as read-only.
func (s *Store) Snapshot() model.Records {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.days
}

func (s *Store) Dates() []string {
	return s.Snapshot().Dates()
}

func (s *Store) Count() int {
	n := 0
	for _, b := range s.Snapshot() {
		n += len(b.Records)
	}
	return n
}

// Validate rejects a record with no body part, no note text and no images.
func Validate(part, noteHTML string, images []string) error {
	if strings.TrimSpace(part) == "" && sanitize.PlainText(noteHTML) == "" && len(images) == 0 {
		return ErrEmptyRecord
	}
	return nil
}

// AppendImage returns images plus dataURI, or an error leaving images as-is.
func AppendImage(images []string, dataURI string) ([]string, error) {
	if len(dataURI) > model.MaxImageDataLength {
		return images, ErrImageTooLarge
	}
	if len(images)+1 > model.MaxImagesPerRecord {
		return images, ErrTooManyImages
	}
	out := make([]string, 0, len(images)+1)
	out = append(out, images...)
	return append(out, dataURI), nil
}

// RemoveImage returns images without the entry at index.
func RemoveImage(images []string, index int) []string {
	if index < 0 || index >= len(images) {
		return images
	}
	out := make([]string, 0, len(images)-1)
	out = append(out, images[:index]...)
	return append(out, images[index+1:]...)
}
