/*
period.go - Calendar dates and fiscal periods

PURPOSE:
  Every budget covers exactly one fiscal period: an inclusive calendar-day
  range. Recurring categories derive the period from the employee's hire
  anniversary; fixed-window categories carry an administrator-set period.

KEY CONCEPTS:
  - Date: day-granularity point in time (no time-of-day ever leaks in)
  - FiscalPeriod: inclusive [Start, End] range with a containment predicate
  - Anniversary derivation: the annual period containing a given date,
    anchored to the hire date's month and day

SEE ALSO:
  - types.go: Budget and ExpenseCategory embed FiscalPeriod
  - engine.go: rollover selects budgets whose period ended yesterday
*/
package budget

import "time"

// =============================================================================
// DATE - Calendar-day time point
// =============================================================================

type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an arbitrary time to its calendar day in the given
// location. The engine operates on days in a single configured zone.
func DateOf(t time.Time, loc *time.Location) Date {
	local := t.In(loc)
	return NewDate(local.Year(), local.Month(), local.Day())
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Before(o Date) bool        { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool         { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool         { return d.normalize().Equal(o.normalize()) }
func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }

// Arithmetic
func (d Date) AddDays(n int) Date  { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddYears(n int) Date { return Date{Time: d.Time.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// =============================================================================
// FISCAL PERIOD - Inclusive date range a budget covers
// =============================================================================

type FiscalPeriod struct {
	Start Date
	End   Date
}

// Contains returns true if the date falls within [Start, End], both inclusive.
func (p FiscalPeriod) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Valid reports whether Start <= End.
func (p FiscalPeriod) Valid() bool { return p.Start.BeforeOrEqual(p.End) }

// Next shifts both bounds forward exactly one year. Used by the rollover
// engine to derive the successor period of a recurring budget.
func (p FiscalPeriod) Next() FiscalPeriod {
	return FiscalPeriod{Start: p.Start.AddYears(1), End: p.End.AddYears(1)}
}

func (p FiscalPeriod) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// AnniversaryPeriod returns the annual period containing asOf, anchored to
// the hire date's month and day.
//
// The anchor year is asOf's year when asOf is on or after this year's
// anniversary, otherwise the year before. A hire date in the future relative
// to asOf (pre-hire lookups) anchors on the hire year itself.
func AnniversaryPeriod(hireDate, asOf Date) FiscalPeriod {
	anchorYear := asOf.Year()
	if hireDate.After(asOf) {
		anchorYear = hireDate.Year()
	} else {
		anchorThisYear := NewDate(asOf.Year(), hireDate.Month(), hireDate.Day())
		if asOf.Before(anchorThisYear) {
			anchorYear = asOf.Year() - 1
		}
	}

	start := NewDate(anchorYear, hireDate.Month(), hireDate.Day())
	end := start.AddYears(1).AddDays(-1)
	return FiscalPeriod{Start: start, End: end}
}
