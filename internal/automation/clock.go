package automation

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ClockLayout is the format of timeBased trigger values.
const ClockLayout = "15:04"

var clockParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ClockSchedule is the daily schedule of a timeBased trigger.
type ClockSchedule struct {
	value    string
	schedule cron.Schedule
}

// ParseClock parses a 24-hour "HH:MM" value into a daily schedule.
func ParseClock(value string) (ClockSchedule, error) {
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return ClockSchedule{}, fmt.Errorf("parse clock %q: %w", value, err)
	}
	sched, err := clockParser.Parse(fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()))
	if err != nil {
		return ClockSchedule{}, fmt.Errorf("parse clock %q: %w", value, err)
	}
	return ClockSchedule{value: t.Format(ClockLayout), schedule: sched}, nil
}

// String returns the normalized "HH:MM" value.
func (c ClockSchedule) String() string { return c.value }

// Next returns the first firing time strictly after t, in t's location.
func (c ClockSchedule) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// Matches reports whether t falls in the scheduled minute.
func (c ClockSchedule) Matches(t time.Time) bool {
	return t.Format(ClockLayout) == c.value
}
