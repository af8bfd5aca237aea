package calendar

import "time"

// fixedHoliday is a recurring month/day holiday.
type fixedHoliday struct {
	month time.Month
	day   int
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1},   // Ano Novo
	{time.December, 25}, // Natal
}

// EasterSunday computes Gregorian Easter for a year using the
// Meeus/Jones/Butcher algorithm.
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// IsHoliday reports whether the date falls on a clinic holiday. Fixed holidays
// match by month/day; Carnaval and Good Friday are derived from Easter for the
// date's year. Comparison is by calendar day, never by instant.
func IsHoliday(t time.Time) bool {
	for _, h := range fixedHolidays {
		if t.Month() == h.month && t.Day() == h.day {
			return true
		}
	}

	easter := EasterSunday(t.Year())
	carnaval := easter.AddDate(0, 0, -47)
	goodFriday := easter.AddDate(0, 0, -2)

	return sameDay(t, carnaval) || sameDay(t, goodFriday)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
