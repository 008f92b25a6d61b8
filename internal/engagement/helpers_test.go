package engagement

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/starlit/internal/catalog"
	"github.com/sakif/starlit/internal/model"
)

const testTemplates = `{
  "welcome": [{"sender": "Team", "title": "Welcome {nickname}", "content": "<p>Hello {nickname}</p>"}],
  "reward": [{"sender": "Team", "title": "Gift", "content": "coins", "rewardAmount": 50}],
  "storyPromo": [{"sender": "Andy", "title": "Free chapter", "content": "claim it"}],
  "streakMilestone": {
    "3day": [{"sender": "Team", "title": "3 days", "content": "three", "rewardAmount": 50}],
    "7day": [{"sender": "Team", "title": "7 days", "content": "{streak} in a row", "rewardAmount": 20}]
  },
  "entryMilestone": {
    "5entries": [{"sender": "Team", "title": "5 entries", "content": "five"}],
    "10entries": [{"sender": "Team", "title": "10 entries", "content": "ten"}]
  },
  "moodBased": {
    "sad": [{"sender": "Team", "title": "Hug", "content": "hug"}],
    "happy": [{"sender": "Team", "title": "Glow", "content": "glow"}],
    "mixed": [{"sender": "Team", "title": "Mix", "content": "mix"}]
  },
  "specificMoods": {"tired": [{"sender": "Team", "title": "Rest", "content": "rest"}]},
  "inactivity": {
    "short": [{"sender": "Team", "title": "Short", "content": "short"}],
    "medium": [{"sender": "Team", "title": "Medium", "content": "medium"}],
    "long": [{"sender": "Team", "title": "Long", "content": "long"}]
  },
  "tipsAndInspiration": [{"sender": "Team", "title": "Tip", "content": "tip"}],
  "writingPrompts": ["What made you smile?"],
  "promptMail": [{"sender": "Grove", "title": "Prompt", "content": "Prompt: {prompt}"}],
  "seasonal": {"halloween": [{"sender": "Team", "title": "Boo", "content": "boo"}]},
  "mailThemes": {
    "mailtheme_elf": {
      "styles": {"color": "#2f4f2f", "backgroundColor": "#f0f7ee"},
      "contentPrefixes": ["<p>From the grove:</p>"],
      "contentSuffixes": ["<p>~ Elarion</p>"],
      "sender": "Elarion of Elbaf",
      "promptTitles": ["The Prompt the Forest Whispered"]
    }
  }
}`

const testStories = `{"stories": [
  {"Story Name": "X", "character": "Narrator", "image": "/x.png", "number_of_chapters": 3,
   "chapters": [
     {"title": "One", "content": "first"},
     {"title": "Two", "content": "second"},
     {"title": "Three", "content": "third"}
   ]}
]}`

// fixedRand always picks the first element; f decides optional mails.
type fixedRand struct{ f float64 }

func (fixedRand) IntN(int) int       { return 0 }
func (r fixedRand) Float64() float64 { return r.f }

// noExtras never passes the tip/prompt chance roll.
var noExtras = fixedRand{f: 0.99}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testTemplates), []byte(testStories))
	require.NoError(t, err)
	return c
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, rnd Rand, cfg Config) *Engine {
	t.Helper()
	return New(testCatalog(t), rnd, cfg, testLogger())
}

// fakeHistory is an in-memory History. Tests append the mails an engine
// run returns to simulate them being persisted.
type fakeHistory struct {
	journals []model.Journal
	mails    []model.Mail

	countErr  error
	recentErr error
	panicOn   string
}

func (h *fakeHistory) RecentJournals(_ context.Context, userID string, limit int) ([]model.Journal, error) {
	if h.panicOn == "recent" {
		panic("boom")
	}
	if h.recentErr != nil {
		return nil, h.recentErr
	}
	var out []model.Journal
	for _, j := range h.journals {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Journal) int { return b.Date.Compare(a.Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *fakeHistory) JournalsSince(_ context.Context, userID string, since time.Time) ([]model.Journal, error) {
	var out []model.Journal
	for _, j := range h.journals {
		if j.UserID == userID && !j.Date.Before(since) {
			out = append(out, j)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Journal) int { return a.Date.Compare(b.Date) })
	return out, nil
}

func (h *fakeHistory) CountJournals(_ context.Context, userID string) (int, error) {
	if h.countErr != nil {
		return 0, h.countErr
	}
	n := 0
	for _, j := range h.journals {
		if j.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (h *fakeHistory) LastMailOfType(_ context.Context, userID string, t model.MailType) (*time.Time, error) {
	var last *time.Time
	for i := range h.mails {
		m := &h.mails[i]
		if m.Type != t {
			continue
		}
		if _, ok := m.RecipientFor(userID); !ok {
			continue
		}
		if last == nil || m.Date.After(*last) {
			d := m.Date
			last = &d
		}
	}
	return last, nil
}

func (h *fakeHistory) addJournal(userID string, mood model.Mood, at time.Time, content string) {
	h.journals = append(h.journals, model.Journal{
		ID:      "j" + at.Format("20060102150405") + string(mood),
		UserID:  userID,
		Mood:    mood,
		Content: content,
		Date:    at,
	})
}

// login runs the engine and "persists" its mails into the history.
func login(e *Engine, u *model.User, h *fakeHistory, now time.Time) LoginResult {
	res := e.RunLogin(context.Background(), u, now, h)
	h.mails = append(h.mails, res.Mails...)
	return res
}

func mailsOfType(ms []model.Mail, t model.MailType) []model.Mail {
	var out []model.Mail
	for _, m := range ms {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Wednesday of ISO week 2026-W42.
var baseNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }
