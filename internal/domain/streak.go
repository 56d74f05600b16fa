package domain

import "time"

// WeeklyStreakTarget is the streak length that unlocks the weekly bonus.
const WeeklyStreakTarget = 7

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NextStreak returns the streak after a play on today:
//
//	never played        -> 1
//	played today        -> unchanged
//	played yesterday    -> +1
//	played before that  -> 1
func NextStreak(lastPlayed *time.Time, current int, today time.Time) int {
	if lastPlayed == nil {
		return 1
	}
	// stored dates are civil dates; compare their Y-M-D as-is
	last := *lastPlayed
	if SameDay(last, today) {
		if current < 1 {
			return 1
		}
		return current
	}
	if SameDay(last, Day(today).AddDate(0, 0, -1)) {
		return current + 1
	}
	return 1
}
