package engagement

import (
	"time"

	"github.com/sakif/starlit/internal/model"
)

// seasonalExpiryDays is how long a seasonal greeting stays in the inbox.
const seasonalExpiryDays = 10

// WelcomeBatch returns the mails a new account starts with: a welcome
// note, a coin reward, a story invitation and, when now is a holiday or
// a season has a greeting, a seasonal mail. It is not capped.
func (e *Engine) WelcomeBatch(u *model.User, now time.Time) []model.Mail {
	var out []model.Mail

	if t, ok := pick(e.rnd, e.cat.Welcome()); ok {
		out = append(out, e.newMail(u, now, t, model.MailWelcome, nil,
			DedupKey(u.ID, "welcome"), nil, false))
	}
	if t, ok := pick(e.rnd, e.cat.Reward()); ok {
		out = append(out, e.newMail(u, now, t, model.MailReward, model.RewardMeta{},
			DedupKey(u.ID, "signup-reward"), nil, false))
	}
	if t, ok := pick(e.rnd, e.cat.StoryPromo()); ok {
		out = append(out, e.newMail(u, now, t, model.MailStory, nil,
			DedupKey(u.ID, "story-promo"), nil, false))
	}

	season := e.cal.SpecialDate(now)
	if pool, ok := e.cat.Seasonal(season); ok {
		t, _ := pick(e.rnd, pool)
		m := e.newMail(u, now, t, model.MailSeasonal, model.SeasonalMeta{Season: season},
			DedupKey(u.ID, "seasonal", e.cal.DayKey(now)), nil, false)
		expires := now.AddDate(0, 0, seasonalExpiryDays)
		m.ExpiryDate = &expires
		out = append(out, m)
	}
	return out
}
