package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTime(t *testing.T) {
	out, err := normalizeTime("09:30")
	require.Nil(t, err)
	assert.Equal(t, "09:30:00", out)

	out, err = normalizeTime("23:59:59")
	require.Nil(t, err)
	assert.Equal(t, "23:59:59", out)

	// Idempotent
	again, err := normalizeTime(out)
	require.Nil(t, err)
	assert.Equal(t, out, again)

	// Whitespace tolerated
	out, err = normalizeTime(" 08:00 ")
	require.Nil(t, err)
	assert.Equal(t, "08:00:00", out)

	for _, bad := range []string{"", "9:30", "24:00", "12:60", "12:00:60", "noon", "12-30", "12:30:00:00"} {
		_, err := normalizeTime(bad)
		require.NotNil(t, err, "input %q", bad)
		assert.Equal(t, ErrFormat, err.Kind)
	}
}

func TestNormalizeDate(t *testing.T) {
	out, err := normalizeDate("2025-03-01")
	require.Nil(t, err)
	assert.Equal(t, "2025-03-01", out)

	for _, bad := range []string{"", "2025-3-1", "01-03-2025", "2025-02-30", "2025-13-01", "yesterday"} {
		_, err := normalizeDate(bad)
		require.NotNil(t, err, "input %q", bad)
		assert.Equal(t, ErrFormat, err.Kind)
	}
}
