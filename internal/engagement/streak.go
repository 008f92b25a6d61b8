package engagement

import (
	"time"

	"github.com/sakif/starlit/internal/model"
)

// updateStreak counts the login at now against u's streak. Only the first
// login of a calendar day changes anything; it extends the streak if the
// previous visit was yesterday, restarts it otherwise, and grants the
// daily coin reward. Later logins the same day are no-ops.
func (e *Engine) updateStreak(u *model.User, now time.Time) (coinsEarned int, firstToday bool) {
	if u.LastVisited != nil && e.cal.SameDay(*u.LastVisited, now) {
		return 0, false
	}

	if u.LastVisited != nil && e.cal.IsYesterday(*u.LastVisited, now) {
		u.CurrentStreak++
	} else {
		u.CurrentStreak = 1
	}
	u.LongestStreak = max(u.LongestStreak, u.CurrentStreak)

	u.Coins += e.cfg.DailyLoginReward
	visited := now
	u.LastVisited = &visited

	return e.cfg.DailyLoginReward, true
}
