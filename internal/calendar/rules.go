// Package calendar holds the pure time rules the scheduling engine is built
// on: clinic holidays, Saturday membership and window arithmetic. All
// functions are total; none touch the system clock directly.
package calendar

import "time"

// IsSaturday reports whether the instant falls on a Saturday.
func IsSaturday(t time.Time) bool {
	return t.Weekday() == time.Saturday
}

// IsPast reports whether the instant is strictly before the clock's now.
func IsPast(clock Clock, t time.Time) bool {
	return t.Before(clock.Now())
}

// WithinHours reports whether t is no more than the given number of hours
// ahead of now. The upper boundary is inclusive: an appointment exactly 12
// hours away is still within a 12 hour window. Instants in the past are
// always within the window.
func WithinHours(clock Clock, t time.Time, hours int) bool {
	return t.Sub(clock.Now()) <= time.Duration(hours)*time.Hour
}
