package schedule

import "time"

// NextMidnight returns the start of the calendar day after now, in now's location.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// DelayUntilNextRun is the whole-second wait from now until the next local
// midnight. It is recomputed every cycle, so long crawls shift nothing but
// the length of the following sleep.
func DelayUntilNextRun(now time.Time) time.Duration {
	delay := NextMidnight(now).Sub(now).Truncate(time.Second)
	if delay < 0 {
		return 0
	}
	return delay
}
