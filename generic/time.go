package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Day-granular calendar date
// =============================================================================

// TimePoint is a calendar day. Bookings, weighbridge slips, deposits and
// grades are all dated to the day, so the time of day is normalized away.
type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day in UTC.
func FromTime(t time.Time) TimePoint {
	t = t.UTC()
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }

func (tp TimePoint) IsZero() bool { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.Time.Format("2006-01-02")
}

// =============================================================================
// DAY KEY - Numeric YYYYMMDD representation
// =============================================================================

// DayKey is the numeric YYYYMMDD form of a TimePoint. Bookings persist both
// the key and the timestamp; both are derived from the same TimePoint.
type DayKey int

func (tp TimePoint) DayKey() DayKey {
	t := tp.normalize()
	return DayKey(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// TimePoint converts the key back. Malformed keys yield the zero TimePoint.
func (k DayKey) TimePoint() TimePoint {
	year, month, day := int(k)/10000, int(k)/100%100, int(k)%100
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return TimePoint{}
	}
	tp := NewTimePoint(year, time.Month(month), day)
	if tp.DayKey() != k {
		return TimePoint{}
	}
	return tp
}

// ParseDate accepts "2006-01-02" or "20060102".
func ParseDate(s string) (TimePoint, error) {
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), nil
		}
	}
	return TimePoint{}, NewValidationError("date", fmt.Sprintf("unrecognized date %q", s))
}

// =============================================================================
// DATE RANGE - Inclusive [From, To]
// =============================================================================

type DateRange struct {
	From TimePoint
	To   TimePoint
}

func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return NewValidationError("date_range", "from and to are required")
	}
	if r.To.Before(r.From) {
		return NewValidationError("date_range", "to date is before from date")
	}
	return nil
}

// Days counts both ends, so a same-day range is one day.
func (r DateRange) Days() int {
	return DaysBetween(r.From, r.To) + 1
}

func (r DateRange) Contains(tp TimePoint) bool {
	return r.From.BeforeOrEqual(tp) && tp.BeforeOrEqual(r.To)
}

// DaysBetween counts whole days from one midnight to another. Unix seconds
// keep spans longer than a time.Duration can hold exact.
func DaysBetween(from, to TimePoint) int {
	return int((to.normalize().Unix() - from.normalize().Unix()) / 86400)
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies "now". Stage windows and the expiry sweep depend on it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Today returns the current day according to clock.
func Today(clock Clock) TimePoint {
	return FromTime(clock.Now())
}
