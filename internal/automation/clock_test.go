package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", c.String())

	loc := time.FixedZone("test", 2*3600)
	from := time.Date(2026, 3, 2, 10, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 30, 0, 0, loc), c.Next(from))
	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, loc), c.Next(from.Add(-time.Hour)))

	assert.True(t, c.Matches(time.Date(2026, 3, 2, 9, 30, 59, 0, loc)))
	assert.False(t, c.Matches(time.Date(2026, 3, 2, 9, 31, 0, 0, loc)))
}

func TestParseClock_Invalid(t *testing.T) {
	for _, v := range []string{"", "25:00", "09:60", "nine", "09:00:00"} {
		_, err := ParseClock(v)
		assert.Error(t, err, "value %q", v)
	}
}
