package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandMonthlyClamp(t *testing.T) {
	dates, err := expand("2025-01-31", recurrenceRule{Frequency: FreqMonthly, Until: "2025-04-30"})
	require.Nil(t, err)

	// February clamps to its last day rather than skipping the month.
	assert.Equal(t, []string{"2025-01-31", "2025-02-28", "2025-03-31", "2025-04-30"}, dates)
}

func TestExpandMonthlyLeapYear(t *testing.T) {
	dates, err := expand("2024-01-31", recurrenceRule{Frequency: FreqMonthly, Count: 2})
	require.Nil(t, err)
	assert.Equal(t, []string{"2024-01-31", "2024-02-29"}, dates)
}

func TestExpandWeekly(t *testing.T) {
	// 2025-01-06 is a Monday.
	dates, err := expand("2025-01-06", recurrenceRule{
		Frequency: FreqWeekly,
		Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
		Count:     4,
	})
	require.Nil(t, err)
	assert.Equal(t, []string{"2025-01-06", "2025-01-08", "2025-01-13", "2025-01-15"}, dates)
}

func TestExpandBiweekly(t *testing.T) {
	dates, err := expand("2025-01-06", recurrenceRule{
		Frequency: FreqBiweekly,
		Weekdays:  []time.Weekday{time.Monday},
		Count:     3,
	})
	require.Nil(t, err)

	// Every other week, anchored on the start date's week.
	assert.Equal(t, []string{"2025-01-06", "2025-01-20", "2025-02-03"}, dates)
}

func TestExpandWeeklyUntilInclusive(t *testing.T) {
	dates, err := expand("2025-01-06", recurrenceRule{
		Frequency: FreqWeekly,
		Weekdays:  []time.Weekday{time.Monday},
		Until:     "2025-01-20",
	})
	require.Nil(t, err)
	assert.Equal(t, []string{"2025-01-06", "2025-01-13", "2025-01-20"}, dates)
}

func TestExpandDefaultCap(t *testing.T) {
	dates, err := expand("2025-01-06", recurrenceRule{
		Frequency: FreqWeekly,
		Weekdays:  []time.Weekday{time.Monday},
	})
	require.Nil(t, err)
	assert.Len(t, dates, defaultOccurrenceCap)
}

func TestExpandCeiling(t *testing.T) {
	// A far-future until date must not spin the generator forever: the hard
	// iteration ceiling bounds the scan window.
	dates, err := expand("2025-01-06", recurrenceRule{
		Frequency: FreqWeekly,
		Weekdays:  []time.Weekday{time.Monday},
		Until:     "2999-12-31",
	})
	require.Nil(t, err)
	assert.NotEmpty(t, dates)
	assert.LessOrEqual(t, len(dates), expansionCeiling/7+1)
}

func TestExpandNoOccurrences(t *testing.T) {
	// until before start
	_, err := expand("2025-01-06", recurrenceRule{
		Frequency: FreqWeekly,
		Weekdays:  []time.Weekday{time.Monday},
		Until:     "2025-01-01",
	})
	require.NotNil(t, err)
	assert.Equal(t, ErrNoOccurrences, err.Kind)

	// empty weekday set
	_, err = expand("2025-01-06", recurrenceRule{Frequency: FreqWeekly, Count: 5})
	require.NotNil(t, err)
	assert.Equal(t, ErrNoOccurrences, err.Kind)
}

func TestExpandStrictlyIncreasing(t *testing.T) {
	dates, err := expand("2025-01-31", recurrenceRule{Frequency: FreqMonthly, Count: 12})
	require.Nil(t, err)
	require.Len(t, dates, 12)
	for i := 1; i < len(dates); i++ {
		assert.Less(t, dates[i-1], dates[i])
	}
}

func TestRealizedWeekdays(t *testing.T) {
	assert.Equal(t, []int{1, 3}, realizedWeekdays([]string{"2025-01-06", "2025-01-08", "2025-01-13"}))
}
