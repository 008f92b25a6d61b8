package engagement

import (
	"context"

	"github.com/sakif/starlit/internal/model"
)

type inactivityTier struct {
	days int
	name string
}

// Longest first: one reminder per login, from the longest gap that applies.
var inactivityTiers = []inactivityTier{
	{14, "long"},
	{7, "medium"},
	{3, "short"},
}

func (e *Engine) inactivityReminder(ctx context.Context, r *run) error {
	last := r.user.LastJournaled
	if last == nil {
		return nil
	}

	for _, tier := range inactivityTiers {
		if !last.Before(DaysAgo(r.now, tier.days)) {
			continue
		}

		recent, err := sentWithin(ctx, r, model.MailInactivity, tier.days+2)
		if err != nil || recent {
			return err
		}
		pool, ok := e.cat.Inactivity(tier.name)
		if !ok || r.batch.Full() {
			return nil
		}

		t, _ := pick(e.rnd, pool)
		r.batch.Add(e.newMail(r.user, r.now, t, model.MailInactivity,
			model.InactivityMeta{Period: tier.name, Days: tier.days},
			DedupKey(r.user.ID, "inactivity", e.cal.DayKey(r.now)),
			nil, true))
		return nil
	}
	return nil
}
