package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildRRule(t *testing.T) {
	weekly := &Series{Weekdays: []int{1, 3}, Interval: 1, EndDate: "2025-03-31", EndTime: "20:00:00"}
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20250331T200000", buildRRule(weekly))

	biweekly := &Series{Weekdays: []int{5}, Interval: 2, EndDate: "2025-03-28", EndTime: "20:00:00"}
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=2;BYDAY=FR;UNTIL=20250328T200000", buildRRule(biweekly))

	monthly := &Series{Interval: 1, EndDate: "2025-06-30", EndTime: "12:00:00"}
	assert.Equal(t, "FREQ=MONTHLY;UNTIL=20250630T120000", buildRRule(monthly))
}

func TestEscapeICalText(t *testing.T) {
	assert.Equal(t, "a\\,b\\;c\\\\d\\ne", escapeICalText("a,b;c\\d\ne"))
	assert.Equal(t, "plain", escapeICalText("plain"))
}
