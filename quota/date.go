package quota

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity date, exchanged as ISO YYYY-MM-DD at every boundary
// =============================================================================

const dateLayout = "2006-01-02"

type Date struct {
	t time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses an ISO YYYY-MM-DD string. This is the only date format
// accepted or emitted across the engine's boundaries.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }
func (d Date) IsZero() bool                  { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int       { return d.t.Year() }
func (d Date) Time() time.Time { return d.t }
func (d Date) String() string  { return d.t.Format(dateLayout) }

// JSON boundary: dates travel as bare YYYY-MM-DD strings.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s (use \"YYYY-MM-DD\")", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Min/Max
func (d Date) Min(other Date) Date {
	if other.Before(d) {
		return other
	}
	return d
}

func (d Date) Max(other Date) Date {
	if other.After(d) {
		return other
	}
	return d
}

// DaysBetween returns to - from in whole days. Negative when to precedes from.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }

// =============================================================================
// DATE RANGE - Report windows
// =============================================================================

// DateRange is an inclusive [Start, End] window.
type DateRange struct {
	Start Date
	End   Date
}

func CalendarYear(year int) DateRange {
	return DateRange{Start: StartOfYear(year), End: EndOfYear(year)}
}

// Intersect clips r against other. The second return is false when the
// ranges do not overlap.
func (r DateRange) Intersect(other DateRange) (DateRange, bool) {
	start := r.Start.Max(other.Start)
	end := r.End.Min(other.End)
	if start.After(end) {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

// Days returns the inclusive day count of the range. A single-day range is 1.
func (r DateRange) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// AS-OF CLOCK - Injected, never read ad hoc
// =============================================================================
// Compliance classification and report date windows depend on "now". A single
// as-of date is installed into the context once per request so every
// computation in that request sees the same day and tests are deterministic.

type asOfKey struct{}

// WithAsOf returns a context carrying d as the as-of date.
func WithAsOf(ctx context.Context, d Date) context.Context {
	return context.WithValue(ctx, asOfKey{}, d)
}

// AsOfDate returns the as-of date installed by WithAsOf, falling back to
// today's date when none was installed. Core code should only hit the
// fallback when invoked outside a request scope.
func AsOfDate(ctx context.Context) Date {
	if d, ok := ctx.Value(asOfKey{}).(Date); ok {
		return d
	}
	return Today()
}
