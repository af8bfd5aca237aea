package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	all := []Status{StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow}

	legal := map[Status]map[Status]bool{
		StatusScheduled: {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed: {StatusCancelled: true, StatusCompleted: true, StatusNoShow: true},
	}

	// Exhaustive check over the full from/to product.
	for _, from := range all {
		for _, to := range all {
			want := legal[from][to]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, IsTerminal(StatusScheduled))
	assert.False(t, IsTerminal(StatusConfirmed))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusCompleted))
	assert.True(t, IsTerminal(StatusNoShow))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusNoShow))
	assert.False(t, ValidStatus(Status("rescheduled")))
	assert.False(t, ValidStatus(Status("")))
}
