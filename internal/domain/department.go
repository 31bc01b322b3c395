package domain

import "time"

// Department represents a service point within a hospital that issues queue tokens.
type Department struct {
	ID                    string
	HospitalID            string
	Name                  string
	DailyCapacity         int
	AverageServiceTimeMin int
	IsActive              bool
	HospitalActive        bool
	LastIssuedToken       int
	// CounterDate is the operational day LastIssuedToken belongs to.
	CounterDate time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IssuedOn returns the number of tokens already issued on the given operational day.
// A counter recorded for an earlier day counts as zero.
func (d Department) IssuedOn(day time.Time) int {
	if d.CounterDate.IsZero() || !SameDay(d.CounterDate, day) {
		return 0
	}
	return d.LastIssuedToken
}

// Bookable reports whether a new ticket may be issued on the given day.
func (d Department) Bookable(day time.Time) bool {
	return d.IsActive && d.HospitalActive && d.IssuedOn(day) < d.DailyCapacity
}

// ServiceDay truncates t to the calendar day in loc.
func ServiceDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay compares the calendar dates of two service days.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
