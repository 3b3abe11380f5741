package journal

import (
	"time"

	"treno/internal/model"
)

const gridDays = 42

// Day is one tile of the month grid.
type Day struct {
	Date    time.Time
	Key     string
	Day     int
	Weekday time.Weekday

	InMonth  bool
	Today    bool
	Selected bool

	HasRecords bool
	// Color is the colour of the day's first record.
	Color string
}

// MonthGrid lays out six weeks starting on the Sunday on or before the first
// of month's month.
func MonthGrid(month time.Time, recs model.Records, selected, today time.Time) []Day {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	start := first.AddDate(0, 0, -int(first.Weekday()))

	selKey := model.FormatDateKey(selected)
	todayKey := model.FormatDateKey(today)

	days := make([]Day, 0, gridDays)
	for i := 0; i < gridDays; i++ {
		d := start.AddDate(0, 0, i)
		key := model.FormatDateKey(d)
		day := Day{
			Date:     d,
			Key:      key,
			Day:      d.Day(),
			Weekday:  d.Weekday(),
			InMonth:  d.Month() == first.Month(),
			Today:    key == todayKey,
			Selected: key == selKey,
		}
		if b, ok := recs[key]; ok && len(b.Records) > 0 {
			day.HasRecords = true
			day.Color = b.Records[0].Color
		}
		days = append(days, day)
	}
	return days
}

// addMonths moves t by delta months, clamping the day to the end of the
// target month (Jan 31 + 1 month is Feb 28/29).
func addMonths(t time.Time, delta int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(delta), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayTitle formats the heading of a day's record list.
func DayTitle(t time.Time) string { return t.Format("Mon, Jan 2") }

// DateLabel formats a date for dialogs.
func DateLabel(t time.Time) string { return t.Format("Jan 2, 2006") }
