package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := newFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	l := NewRateLimiter(limit, window)
	l.SetClock(clock.Now)
	return l, clock
}

func TestRateLimiter_AllowsLimitThenRejects(t *testing.T) {
	l, clock := newTestLimiter(5, time.Second)

	for i := range 5 {
		assert.True(t, l.Check("r"), "call %d", i+1)
		clock.Advance(100 * time.Millisecond)
	}
	assert.False(t, l.Check("r"))
	assert.False(t, l.Check("r"), "rejections are not recorded but the window is still full")
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2, time.Second)

	assert.True(t, l.Check("r"))
	clock.Advance(500 * time.Millisecond)
	assert.True(t, l.Check("r"))
	assert.False(t, l.Check("r"))

	// first timestamp leaves the window
	clock.Advance(500 * time.Millisecond)
	assert.True(t, l.Check("r"))
	assert.False(t, l.Check("r"))

	clock.Advance(time.Second)
	assert.True(t, l.Check("r"))
}

func TestRateLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	assert.True(t, l.Check("r"))
	assert.False(t, l.Check("r"))
	l.Reset("r")
	assert.True(t, l.Check("r"))
}

func TestRateLimiter_IndependentIDs(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	assert.True(t, l.Check("a"))
	assert.False(t, l.Check("a"))
	assert.True(t, l.Check("b"))
}

func TestRateLimiter_Retain(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	l.Check("a")
	l.Check("b")

	l.Retain(map[string]struct{}{"b": {}})
	assert.Equal(t, 1, l.Tracked())
	assert.True(t, l.Check("a"))
	assert.False(t, l.Check("b"))
}

func TestRateLimiter_Defaults(t *testing.T) {
	l := NewRateLimiter(0, 0)
	assert.Equal(t, DefaultRateLimit, l.Limit())
	assert.Equal(t, DefaultRateWindow, l.Window())
}
