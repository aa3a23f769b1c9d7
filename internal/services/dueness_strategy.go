package services

import "time"

// DuenessChecker decides whether a scheduled job should run at now, given
// when it last ran. A zero lastRun means it never ran.
type DuenessChecker interface {
	IsDue(lastRun, now time.Time) bool
}

// DailyAtChecker is due once per calendar day, during the given hour of now's
// location.
type DailyAtChecker struct {
	Hour int
}

func (c DailyAtChecker) IsDue(lastRun, now time.Time) bool {
	if now.Hour() != c.Hour {
		return false
	}
	if lastRun.IsZero() {
		return true
	}
	return lastRun.In(now.Location()).Format("2006-01-02") != now.Format("2006-01-02")
}
