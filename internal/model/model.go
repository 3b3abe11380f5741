package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	MaxImagesPerRecord = 3
	// MaxImageDataLength bounds the encoded data-URI text of one image.
	MaxImageDataLength = 600 * 1024

	DefaultColor = "#e74c3c"

	// EmptyNote is stored when a record is saved without note text.
	EmptyNote = "<p><br></p>"

	dateKeyLayout = "2006-01-02"
)

type WorkoutRecord struct {
	Part   string   `json:"part" yaml:"part"`
	Color  string   `json:"color" yaml:"color"`
	Note   string   `json:"note" yaml:"note"`
	Images []string `json:"images" yaml:"images"`
}

type DayBucket struct {
	Records []WorkoutRecord `json:"records" yaml:"records"`
}

// Records maps a date key (YYYY-MM-DD) to that day's bucket.
type Records map[string]DayBucket

type EditBuffer struct {
	Part  string `json:"part" yaml:"part"`
	Note  string `json:"note" yaml:"note"`
	Color string `json:"color" yaml:"color"`
}

type EditBuffers map[string]EditBuffer

type ColorOption struct {
	ID    string `json:"id" yaml:"id"`
	Color string `json:"color" yaml:"color"`
}

// Palette is the fixed set of calendar colours a record can carry.
var Palette = []ColorOption{
	{ID: "red", Color: "#e74c3c"},
	{ID: "green", Color: "#2ecc71"},
	{ID: "yellow", Color: "#f1c40f"},
	{ID: "purple", Color: "#8e44ad"},
	{ID: "blue", Color: "#1A2996"},
	{ID: "pink", Color: "#ff66b3"},
	{ID: "black", Color: "#000000"},
}

// ResolveColor accepts a palette id ("red") or hex value ("#e74c3c", any case).
func ResolveColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, c := range Palette {
		if strings.EqualFold(c.ID, s) || strings.EqualFold(c.Color, s) {
			return c.Color, true
		}
	}
	return "", false
}

func FormatDateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key as a local calendar date.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateKeyLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

func SwipeID(dateKey string, index int) string {
	return fmt.Sprintf("%s-%d", dateKey, index)
}

// Clone returns a deep copy so callers can hand snapshots out safely.
func (r WorkoutRecord) Clone() WorkoutRecord {
	out := r
	if r.Images != nil {
		out.Images = make([]string, len(r.Images))
		copy(out.Images, r.Images)
	}
	return out
}

// Dates returns the record dates in ascending order.
func (rs Records) Dates() []string {
	out := make([]string, 0, len(rs))
	for k := range rs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (rs Records) Clone() Records {
	out := make(Records, len(rs))
	for k, b := range rs {
		recs := make([]WorkoutRecord, 0, len(b.Records))
		for _, r := range b.Records {
			recs = append(recs, r.Clone())
		}
		out[k] = DayBucket{Records: recs}
	}
	return out
}

func (bs EditBuffers) Dates() []string {
	out := make([]string, 0, len(bs))
	for k := range bs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (bs EditBuffers) Clone() EditBuffers {
	out := make(EditBuffers, len(bs))
	for k, v := range bs {
		out[k] = v
	}
	return out
}
