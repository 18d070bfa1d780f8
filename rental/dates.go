package rental

import (
	"time"
)

// =============================================================================
// DATE - Calendar day (rentals are day-granular)
// =============================================================================

// Date is a calendar day in UTC. All booking arithmetic happens at day
// granularity; hours never enter the picture.
type Date struct {
	Time time.Time
}

// NewDate constructs a Date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// DateOf truncates an instant to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day. Callers that need a deterministic
// clock (the settlement orchestrator does) take a clock function instead.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// Comparison
func (d Date) Before(o Date) bool        { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool         { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool         { return d.normalize().Equal(o.normalize()) }
func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) IsZero() bool   { return d.Time.IsZero() }
func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// =============================================================================
// DATE RANGE - Inclusive [Start, End] span of calendar days
// =============================================================================

// DateRange is a closed interval: both Start and End are rented days.
type DateRange struct {
	Start Date
	End   Date
}

// NewDateRange builds a range, rejecting End before Start.
func NewDateRange(start, end Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// ParseDateRange parses two ISO dates into a validated range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, ErrInvalidRange
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, ErrInvalidRange
	}
	return NewDateRange(s, e)
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() || r.Start.After(r.End) {
		return ErrInvalidRange
	}
	return nil
}

// Days returns the inclusive day count: [June 1, June 3] is 3 days.
func (r DateRange) Days() int {
	return int(r.End.normalize().Sub(r.Start.normalize()).Hours()/24) + 1
}

// Dates expands the range into its ordered list of calendar days.
func (r DateRange) Dates() []Date {
	days := make([]Date, 0, r.Days())
	for d := r.Start; d.BeforeOrEqual(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether day falls inside the range.
func (r DateRange) Contains(day Date) bool {
	return day.AfterOrEqual(r.Start) && day.BeforeOrEqual(r.End)
}

// Overlaps uses closed-interval overlap: two ranges conflict when
// a.Start <= b.End AND a.End >= b.Start.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.BeforeOrEqual(o.End) && r.End.AfterOrEqual(o.Start)
}

// Intersection returns the days of r that also fall in o, ordered ascending.
func (r DateRange) Intersection(o DateRange) []Date {
	if !r.Overlaps(o) {
		return nil
	}
	start := r.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := r.End
	if o.End.Before(end) {
		end = o.End
	}
	return DateRange{Start: start, End: end}.Dates()
}

func (r DateRange) String() string { return r.Start.String() + ".." + r.End.String() }

// FormatDates renders a date list for error payloads.
func FormatDates(dates []Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}
