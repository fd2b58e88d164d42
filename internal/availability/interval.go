package availability

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

// TimeWindow is a half-open [Start, End) range of instants.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow builds a window and rejects non-positive lengths.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate reports whether the window is usable for comparisons.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return appErrors.Clone(appErrors.ErrInvalidRequest, "window start and end are required")
	}
	if !w.End.After(w.Start) {
		return appErrors.Clone(appErrors.ErrInvalidRequest, fmt.Sprintf("window end %s must be after start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339)))
	}
	return nil
}

// Duration returns the length of the window.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// In returns the same window expressed in loc.
func (w TimeWindow) In(loc *time.Location) TimeWindow {
	return TimeWindow{Start: w.Start.In(loc), End: w.End.In(loc)}
}

// Shift moves both ends of the window by d.
func (w TimeWindow) Shift(d time.Duration) TimeWindow {
	return TimeWindow{Start: w.Start.Add(d), End: w.End.Add(d)}
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s-%s", w.Start.Format("2006-01-02 15:04"), w.End.Format("15:04"))
}

// Overlaps is true when a and b share a positive-length range. Touching endpoints do not overlap.
func Overlaps(a, b TimeWindow) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Adjacent is true when one window ends exactly where the other begins.
func Adjacent(a, b TimeWindow) bool {
	return a.End.Equal(b.Start) || b.End.Equal(a.Start)
}

// Intersection returns the overlapping part of a and b when it has positive length.
func Intersection(a, b TimeWindow) (TimeWindow, bool) {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if !end.After(start) {
		return TimeWindow{}, false
	}
	return TimeWindow{Start: start, End: end}, true
}

// Gap returns the time between two non-overlapping windows regardless of order.
// Overlapping windows yield a negative gap.
func Gap(a, b TimeWindow) time.Duration {
	if a.Start.Before(b.Start) {
		return b.Start.Sub(a.End)
	}
	return a.Start.Sub(b.End)
}

// DurationHours returns the window length in fractional hours.
func DurationHours(w TimeWindow) float64 {
	return w.Duration().Hours()
}

// Normalize expresses an already zoned instant in zone. The instant itself is never changed.
func Normalize(t time.Time, zone *time.Location) (time.Time, error) {
	if zone == nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidRequest, "timezone is not configured")
	}
	if t.IsZero() {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidRequest, "timestamp is missing or has no timezone")
	}
	return t.In(zone), nil
}

// StampWallClock reads the wall-clock fields of a naive value and pins them to zone.
func StampWallClock(t time.Time, zone *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
}

var zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInZone parses a timestamp. Values carrying an offset keep it; offset-less values are stamped with zone.
func ParseInZone(value string, zone *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidRequest, "timestamp is required")
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	if zone == nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidRequest, fmt.Sprintf("timestamp %q has no offset and no timezone is configured", value))
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrInvalidRequest, fmt.Sprintf("unrecognised timestamp %q", value))
}

// DateOf truncates t to midnight of its calendar date in zone.
func DateOf(t time.Time, zone *time.Location) time.Time {
	local := t.In(zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
}

// SameDate compares the calendar dates of a and b in zone.
func SameDate(a, b time.Time, zone *time.Location) bool {
	ay, am, ad := a.In(zone).Date()
	by, bm, bd := b.In(zone).Date()
	return ay == by && am == bm && ad == bd
}

// ClockTime is a time of day without a date.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseClock parses HH:MM or HH:MM:SS.
func ParseClock(value string) (ClockTime, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return ClockTime{}, fmt.Errorf("invalid clock value %q", value)
}

// MustClock is ParseClock for constants.
func MustClock(value string) ClockTime {
	c, err := ParseClock(value)
	if err != nil {
		panic(err)
	}
	return c
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Valid reports whether the clock fits within a day.
func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 24 && c.Minute >= 0 && c.Minute < 60 && c.Minutes() <= 24*60
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// AtClock places a clock time on the calendar date of date, in date's location.
func AtClock(date time.Time, c ClockTime) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, date.Location())
}
