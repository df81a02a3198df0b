package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalsOverlap(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 string
		expected       bool
	}{
		{"identical", "09:00:00", "10:00:00", "09:00:00", "10:00:00", true},
		{"partial", "09:00:00", "10:00:00", "09:30:00", "10:30:00", true},
		{"contained", "09:00:00", "12:00:00", "10:00:00", "11:00:00", true},
		{"touching edges", "09:00:00", "10:00:00", "10:00:00", "11:00:00", false},
		{"disjoint", "09:00:00", "10:00:00", "11:00:00", "12:00:00", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, intervalsOverlap(tc.s1, tc.e1, tc.s2, tc.e2))

			// Overlap is symmetric
			assert.Equal(t, tc.expected, intervalsOverlap(tc.s2, tc.e2, tc.s1, tc.e1))
		})
	}
}

func TestFindConflict(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t)

	_, _, err := m.createSingle(ctx, &CreateBookingRequest{
		HallID: 1, Date: "2025-03-01", StartTime: "09:00", EndTime: "10:00", Requester: "Dale Cooper",
	})
	require.NoError(t, err)

	// Overlapping interval on the same hall/date
	conflict, err := m.findConflict(ctx, 1, "2025-03-01", "09:30:00", "10:30:00", "")
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "Dale Cooper", conflict.Requester)

	// Touching edge is free under half-open semantics
	conflict, err = m.findConflict(ctx, 1, "2025-03-01", "10:00:00", "11:00:00", "")
	require.NoError(t, err)
	assert.Nil(t, conflict)

	// Different date and different hall are both free
	conflict, err = m.findConflict(ctx, 1, "2025-03-02", "09:00:00", "10:00:00", "")
	require.NoError(t, err)
	assert.Nil(t, conflict)

	conflict, err = m.findConflict(ctx, 2, "2025-03-01", "09:00:00", "10:00:00", "")
	require.NoError(t, err)
	assert.Nil(t, conflict)

	// Excluding the row itself clears the conflict
	existing, err := m.queryByHallAndDate(ctx, 1, "2025-03-01")
	require.NoError(t, err)
	require.Len(t, existing, 1)
	conflict, err = m.findConflict(ctx, 1, "2025-03-01", "09:00:00", "10:00:00", existing[0].ID)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}
