// Package engagement runs the login and like automations: streaks,
// milestones, mood digests, weekly summaries, story chapters and the
// occasional tip or prompt.
//
// The engine is pure with respect to storage. It reads history through the
// History interface, mutates the *model.User it is handed, and returns the
// mails to insert. The caller persists both in one transaction.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/starlit/internal/catalog"
	"github.com/sakif/starlit/internal/model"
)

// History is the read access the engine needs to a user's past.
type History interface {
	// RecentJournals returns up to limit entries, newest first.
	RecentJournals(ctx context.Context, userID string, limit int) ([]model.Journal, error)
	// JournalsSince returns entries dated at or after since, oldest first.
	JournalsSince(ctx context.Context, userID string, since time.Time) ([]model.Journal, error)
	CountJournals(ctx context.Context, userID string) (int, error)
	// LastMailOfType returns the date of the newest mail of type t
	// addressed to userID, or nil if there is none.
	LastMailOfType(ctx context.Context, userID string, t model.MailType) (*time.Time, error)
}

// Defaults for Config fields left at zero.
const (
	DefaultDailyLoginReward = 10
	DefaultMaxMailsPerLogin = 3
)

// Config tunes the engine. The zero value is usable: UTC days, exact
// milestones, and an unbounded batch.
type Config struct {
	Location         *time.Location
	MaxMailsPerLogin int // 0 means unbounded
	MilestonePolicy  MilestonePolicy
	DailyLoginReward int
}

// Engine is safe for concurrent use as long as the Rand it was given is.
type Engine struct {
	cat    *catalog.Catalog
	rnd    Rand
	cal    Calendar
	cfg    Config
	logger *slog.Logger
}

// New returns an Engine. A nil rnd uses DefaultRand.
func New(cat *catalog.Catalog, rnd Rand, cfg Config, logger *slog.Logger) *Engine {
	if rnd == nil {
		rnd = DefaultRand()
	}
	if cfg.DailyLoginReward == 0 {
		cfg.DailyLoginReward = DefaultDailyLoginReward
	}
	return &Engine{
		cat:    cat,
		rnd:    rnd,
		cal:    NewCalendar(cfg.Location),
		cfg:    cfg,
		logger: logger,
	}
}

// Calendar exposes the engine's day boundaries to callers.
func (e *Engine) Calendar() Calendar { return e.cal }

// LoginResult is what one login produced.
type LoginResult struct {
	CoinsEarned     int
	FirstLoginToday bool
	Mails           []model.Mail
}

// run carries the state shared by the detectors of one invocation.
type run struct {
	user  *model.User
	now   time.Time
	hist  History
	batch *Batch
}

type detector struct {
	name string
	fn   func(ctx context.Context, r *run) error
}

func (e *Engine) loginDetectors() []detector {
	return []detector{
		{"streak_milestone", e.streakMilestones},
		{"entry_milestone", e.entryMilestones},
		{"mood_digest", e.moodDigest},
		{"inactivity", e.inactivityReminder},
		{"weekly_summary", e.weeklySummary},
		{"story", e.storyChapter},
		{"tip", e.tip},
		{"prompt", e.prompt},
		{"cozy", e.cozy},
	}
}

// RunLogin applies one login at now to u and returns the mails it earned.
//
// The streak update always runs first and cannot fail. Every other
// detector is isolated: an error or panic is logged and the next detector
// still runs. u is mutated in place; nothing is persisted here.
func (e *Engine) RunLogin(ctx context.Context, u *model.User, now time.Time, h History) LoginResult {
	u.Normalize()

	coins, first := e.updateStreak(u, now)

	r := &run{user: u, now: now, hist: h, batch: NewBatch(e.cfg.MaxMailsPerLogin)}
	for _, d := range e.loginDetectors() {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("engagement: login run cancelled",
				slog.String("userID", u.ID),
				slog.String("error", err.Error()),
			)
			break
		}
		e.runDetector(ctx, d, r)
	}

	return LoginResult{CoinsEarned: coins, FirstLoginToday: first, Mails: r.batch.Mails()}
}

func (e *Engine) runDetector(ctx context.Context, d detector, r *run) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("engagement: detector panicked",
				slog.String("detector", d.name),
				slog.String("userID", r.user.ID),
				slog.String("panic", fmt.Sprint(p)),
			)
		}
	}()

	if err := d.fn(ctx, r); err != nil {
		e.logger.Warn("engagement: detector failed",
			slog.String("detector", d.name),
			slog.String("userID", r.user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// userText lists the placeholders filled from user input. They are escaped
// in bodies; titles are plain text and keep them as typed.
var userText = []string{"nickname", "journalTitle"}

// newMail builds a single-recipient mail from a template. Placeholders
// are rendered with the user's common values plus extra. When skin is set
// and the user has an active theme in the catalog, the body is wrapped in
// that theme.
func (e *Engine) newMail(u *model.User, now time.Time, t catalog.Template, typ model.MailType, md model.Metadata, key string, extra map[string]string, skin bool) model.Mail {
	vals := map[string]string{
		"nickname":      u.Nickname,
		"streak":        fmt.Sprint(u.CurrentStreak),
		"longestStreak": fmt.Sprint(u.LongestStreak),
	}
	for k, v := range extra {
		vals[k] = v
	}

	body := make(map[string]string, len(vals))
	for k, v := range vals {
		body[k] = v
	}
	for _, k := range userText {
		if v, ok := body[k]; ok {
			body[k] = EscapeText(v)
		}
	}

	content := Render(t.Content, body)
	if skin {
		if theme, ok := e.cat.Theme(u.ActiveMailTheme); ok {
			content = Skin(theme, content, e.rnd)
		}
	}

	return model.Mail{
		Sender:       t.Sender,
		Title:        Render(t.Title, vals),
		Content:      content,
		Type:         typ,
		Recipients:   []model.Recipient{{UserID: u.ID}},
		RewardAmount: t.RewardAmount,
		Metadata:     md,
		ThemeID:      u.ActiveMailTheme,
		DedupKey:     key,
		Date:         now,
	}
}

// sentWithin reports whether a mail of type t reached the user less than
// days ago.
func sentWithin(ctx context.Context, r *run, t model.MailType, days int) (bool, error) {
	last, err := r.hist.LastMailOfType(ctx, r.user.ID, t)
	if err != nil {
		return false, fmt.Errorf("last %s mail: %w", t, err)
	}
	return last != nil && last.After(DaysAgo(r.now, days)), nil
}
