// Package availability computes the bookable Saturday slots. The clinic only
// operates Saturdays, in four fixed two hour blocks between 09:00 and 17:00.
package availability

import (
	"time"

	"github.com/ottoferraz/clinic-scheduler/internal/calendar"
)

// SlotDuration is the fixed length of every appointment.
const SlotDuration = 2 * time.Hour

// slotStartHours are the canonical slot boundaries (09-11, 11-13, 13-15, 15-17).
var slotStartHours = []int{9, 11, 13, 15}

// Slot is a single bookable block. Slots are ephemeral: appointments reference
// one implicitly through their scheduled instant, nothing persists them.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Calculator generates and validates slots against the calendar rules.
type Calculator struct {
	clock calendar.Clock
}

// NewCalculator constructs a Calculator. The clock is required.
func NewCalculator(clock calendar.Clock) *Calculator {
	if clock == nil {
		panic("availability: clock required")
	}
	return &Calculator{clock: clock}
}

// SlotAt builds the slot a requested start instant implies. The result is not
// necessarily valid; callers pass it through IsValidSlot.
func SlotAt(start time.Time) Slot {
	return Slot{Start: start, End: start.Add(SlotDuration)}
}

// Slots returns the canonical slots still open for booking on the given date.
// A non-Saturday, a holiday, or a date with every slot already started yields
// an empty slice; an invalid date is simply no availability, never an error.
func (c *Calculator) Slots(date time.Time) []Slot {
	var open []Slot
	for _, hour := range slotStartHours {
		start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
		slot := Slot{Start: start, End: start.Add(SlotDuration)}
		if c.IsValidSlot(slot) {
			open = append(open, slot)
		}
	}
	return open
}

// IsValidSlot recomputes the full acceptance rule on a caller supplied slot:
// Saturday, not a holiday, start not in the past, start on a canonical
// boundary, exactly two hours long and fully inside the same calendar day.
// Slots and IsValidSlot must agree on every slot, so Slots is implemented in
// terms of this check.
func (c *Calculator) IsValidSlot(s Slot) bool {
	if !calendar.IsSaturday(s.Start) || calendar.IsHoliday(s.Start) {
		return false
	}
	if calendar.IsPast(c.clock, s.Start) {
		return false
	}
	if !onSlotBoundary(s.Start) {
		return false
	}
	if !s.End.Equal(s.Start.Add(SlotDuration)) {
		return false
	}
	if s.Start.Day() != s.End.Day() || s.Start.Month() != s.End.Month() || s.Start.Year() != s.End.Year() {
		return false
	}
	return true
}

// Overlaps reports whether two slots intersect. Intervals are half-open, so
// adjacent slots (end of one equals start of the next) do not overlap.
func Overlaps(a, b Slot) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func onSlotBoundary(start time.Time) bool {
	if start.Minute() != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
		return false
	}
	for _, hour := range slotStartHours {
		if start.Hour() == hour {
			return true
		}
	}
	return false
}
