// Package streak holds the pure daily-continuity rules: consecutive
// calendar days with at least one completed workout, with a same-day
// grace so that repeat completions do not inflate the streak.
package streak

import "time"

// State is the streak part of a user profile, as currently persisted.
type State struct {
	Current      int
	Longest      int
	LastActivity *time.Time
}

// Update is the result of advancing a streak to a given day.
// NewDay is false when the last activity was already recorded on the
// same calendar day, so callers can avoid re-applying daily bonuses.
type Update struct {
	Current int
	Longest int
	NewDay  bool
}

// Advance applies the streak transition rule for an activity happening
// on the given day:
//   - no prior activity: streak starts at 1
//   - same day: no change
//   - exactly one day later: streak continues, +1
//   - more than one day later: streak resets to 1
func Advance(s State, today time.Time) Update {
	upd := Update{
		Current: s.Current,
		Longest: s.Longest,
		NewDay:  true,
	}

	switch {
	case s.LastActivity == nil:
		upd.Current = 1
	default:
		switch d := daysBetween(*s.LastActivity, today); {
		case d <= 0:
			// same day (or a clock gone backwards, treated the same)
			upd.NewDay = false
		case d == 1:
			upd.Current = s.Current + 1
		default:
			upd.Current = 1
		}
	}

	if upd.Current > upd.Longest {
		upd.Longest = upd.Current
	}

	return upd
}

// daysBetween returns the number of calendar days from a to b,
// ignoring the time-of-day portion of both.
func daysBetween(a, b time.Time) int {
	aDay := dateOnly(a)
	bDay := dateOnly(b)
	return int(bDay.Sub(aDay).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
