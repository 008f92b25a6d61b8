package engagement

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/starlit/internal/catalog"
	"github.com/sakif/starlit/internal/model"
)

// MilestonePolicy decides which thresholds are due for a given value.
type MilestonePolicy int

const (
	// MilestoneExact fires a threshold only when the value equals it.
	MilestoneExact MilestonePolicy = iota
	// MilestoneCatchUp fires every unrecorded threshold at or below the
	// value, so users who skipped past a threshold still get it.
	MilestoneCatchUp
)

// ParseMilestonePolicy accepts "exact" and "catchup".
func ParseMilestonePolicy(s string) (MilestonePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return MilestoneExact, nil
	case "catchup", "catch-up":
		return MilestoneCatchUp, nil
	}
	return 0, fmt.Errorf("engagement: unknown milestone policy %q", s)
}

func (p MilestonePolicy) String() string {
	if p == MilestoneCatchUp {
		return "catchup"
	}
	return "exact"
}

var (
	StreakThresholds = []int{3, 7, 14, 30, 60, 90, 180, 365}
	EntryThresholds  = []int{5, 10, 20, 30, 50, 100, 200, 365, 500, 1000}
)

// DueMilestones returns the thresholds value has reached under policy that
// are not yet in the ledger, in ascending threshold order.
func DueMilestones(value int, thresholds []int, ledger model.MilestoneLedger, policy MilestonePolicy) []int {
	var due []int
	for _, t := range thresholds {
		if ledger.Has(t) {
			continue
		}
		if t == value || (policy == MilestoneCatchUp && t < value) {
			due = append(due, t)
		}
	}
	return due
}

type milestoneKind struct {
	event      string
	mailType   model.MailType
	thresholds []int
	pool       func(n int) ([]catalog.Template, bool)
	meta       func(n int) model.Metadata
	ledger     func(u *model.User) *model.MilestoneLedger
}

// awardMilestones records each due threshold in the ledger as its mail is
// queued. The ledger is the lasting guard: once a threshold is in it, it
// never fires again, even if the streak resets and climbs back.
// Thresholds without a template are skipped and left unrecorded.
func (e *Engine) awardMilestones(r *run, value int, k milestoneKind) {
	ledger := k.ledger(r.user)
	for _, n := range DueMilestones(value, k.thresholds, *ledger, e.cfg.MilestonePolicy) {
		pool, ok := k.pool(n)
		if !ok {
			continue
		}
		if r.batch.Full() {
			return
		}
		t, _ := pick(e.rnd, pool)
		m := e.newMail(r.user, r.now, t, k.mailType, k.meta(n), DedupKey(r.user.ID, k.event, n), map[string]string{
			"milestone": fmt.Sprint(n),
		}, true)
		r.batch.Add(m)
		ledger.Add(n)
	}
}

func (e *Engine) streakMilestones(_ context.Context, r *run) error {
	e.awardMilestones(r, r.user.CurrentStreak, milestoneKind{
		event:      "streak-milestone",
		mailType:   model.MailStreak,
		thresholds: StreakThresholds,
		pool:       e.cat.StreakMilestone,
		meta:       func(n int) model.Metadata { return model.StreakMeta{Milestone: n} },
		ledger:     func(u *model.User) *model.MilestoneLedger { return &u.CompletedStreakMilestones },
	})
	return nil
}

func (e *Engine) entryMilestones(ctx context.Context, r *run) error {
	count, err := r.hist.CountJournals(ctx, r.user.ID)
	if err != nil {
		return fmt.Errorf("count journals: %w", err)
	}
	e.awardMilestones(r, count, milestoneKind{
		event:      "entry-milestone",
		mailType:   model.MailEntry,
		thresholds: EntryThresholds,
		pool:       e.cat.EntryMilestone,
		meta:       func(n int) model.Metadata { return model.EntryMeta{Milestone: n} },
		ledger:     func(u *model.User) *model.MilestoneLedger { return &u.CompletedEntryMilestones },
	})
	return nil
}
