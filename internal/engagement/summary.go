package engagement

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sakif/starlit/internal/model"
)

const (
	summaryWindowDays = 7
	trendThreshold    = 0.5
)

// Trend labels for the first-half versus second-half mood comparison.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// WeeklyStats is everything the summary mail reports about a week.
type WeeklyStats struct {
	EntryCount     int
	JournalingDays int

	ConsistencyScore   int // percent of the 7 days with at least one entry
	ConsistencyMessage string
	ConsistencyEmoji   string

	Moods         []MoodCount
	DominantMood  model.Mood
	DominantCount int
	AvgMoodScore  float64
	Trend         string
	TrendEmoji    string

	TotalWords      int
	AvgWords        int
	ShortestWords   int
	LongestWords    int
	LongestEntryDay string

	PreferredTime string
	PreferredDay  string

	TopTags        []string // "tag (n)", at most three
	TopTheme       string
	TopCollections []string // "name (n)", at most two, never the default collection

	Insights        []string
	Recommendations []string
}

// CompileWeeklyStats aggregates entries, which must be sorted oldest
// first. Hours and weekdays are read in loc.
func CompileWeeklyStats(entries []model.Journal, loc *time.Location) WeeklyStats {
	if loc == nil {
		loc = time.UTC
	}
	s := WeeklyStats{EntryCount: len(entries), DominantMood: model.MoodNeutral}
	if len(entries) == 0 {
		s.Trend, s.TrendEmoji = TrendStable, trendEmoji(TrendStable)
		return s
	}

	days := make(map[string]struct{})
	var times, weekdays, tags, themes, collections counter
	scores := make([]float64, 0, len(entries))
	longestChars := -1

	for i, j := range entries {
		at := j.Date.In(loc)
		days[at.Format(time.DateOnly)] = struct{}{}
		times.add(TimeOfDay(at.Hour()))
		weekdays.add(at.Weekday().String())
		scores = append(scores, j.Mood.Score())

		words := model.CountWords(j.Content)
		s.TotalWords += words
		if i == 0 || words < s.ShortestWords {
			s.ShortestWords = words
		}
		if words > s.LongestWords {
			s.LongestWords = words
		}
		if len(j.Content) > longestChars {
			longestChars = len(j.Content)
			s.LongestEntryDay = at.Weekday().String()
		}

		for _, t := range j.Tags {
			tags.add(t)
		}
		if j.Theme != "" {
			themes.add(j.Theme)
		}
		for _, c := range j.Collections {
			if c != model.DefaultCollection {
				collections.add(c)
			}
		}
	}

	s.JournalingDays = len(days)
	s.ConsistencyScore = int(float64(s.JournalingDays)/summaryWindowDays*100 + 0.5)
	s.ConsistencyMessage, s.ConsistencyEmoji = consistencyNote(s.ConsistencyScore)

	s.Moods = tally(entries)
	if top, ok := dominant(s.Moods); ok {
		s.DominantMood, s.DominantCount = top.Mood, top.Count
	}
	s.AvgMoodScore = mean(scores)
	s.Trend = moodTrend(scores)
	s.TrendEmoji = trendEmoji(s.Trend)

	s.AvgWords = int(float64(s.TotalWords)/float64(len(entries)) + 0.5)
	s.PreferredTime = times.top()
	s.PreferredDay = weekdays.top()
	s.TopTags = tags.ranked(3)
	s.TopTheme = themes.top()
	s.TopCollections = collections.ranked(2)

	s.Insights = insights(s)
	s.Recommendations = recommendations(s)
	return s
}

// moodTrend compares the mean score of the first half of the week's
// entries with the second half. Fewer than two entries is always stable.
func moodTrend(scores []float64) string {
	if len(scores) < 2 {
		return TrendStable
	}
	half := len(scores) / 2
	first, second := mean(scores[:half]), mean(scores[half:])
	switch {
	case second > first+trendThreshold:
		return TrendImproving
	case second < first-trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func trendEmoji(trend string) string {
	switch trend {
	case TrendImproving:
		return "📈"
	case TrendDeclining:
		return "📉"
	default:
		return "➡️"
	}
}

func consistencyNote(score int) (string, string) {
	switch {
	case score >= 85:
		return "Exceptional consistency! You're building a strong habit.", "🔥"
	case score >= 60:
		return "Great consistency! Keep up the momentum.", "⭐"
	case score >= 40:
		return "Good start! Try to journal a bit more regularly.", "🌱"
	default:
		return "Every entry counts! Consider setting a daily reminder.", "💪"
	}
}

func insights(s WeeklyStats) []string {
	var out []string
	switch s.DominantMood {
	case model.MoodHappy, model.MoodExcited:
		out = append(out, "Your positive energy shines through your entries! ✨")
	case model.MoodReflective:
		out = append(out, "You're in a thoughtful phase - perfect for self-discovery! 🤔")
	case model.MoodAnxious, model.MoodSad:
		out = append(out, "Remember: journaling during tough times builds resilience. You're doing great! 💙")
	}

	switch {
	case s.AvgWords > 200:
		out = append(out, "You're a natural storyteller with rich, detailed entries! 📖")
	case s.AvgWords < 50:
		out = append(out, "Concise and focused - sometimes less is more! Consider expanding when you feel inspired. ✍️")
	}

	switch s.PreferredTime {
	case "morning":
		out = append(out, "Morning pages are powerful! You're setting positive intentions for your days. 🌅")
	case "evening":
		out = append(out, "Evening reflection helps process the day. Great for better sleep! 🌙")
	}
	return out
}

func recommendations(s WeeklyStats) []string {
	var out []string
	if s.JournalingDays < 5 {
		out = append(out, fmt.Sprintf("Try setting a daily reminder to journal at your preferred time (%s)", s.PreferredTime))
	}
	if s.AvgWords < 100 {
		out = append(out, "Challenge yourself to write one extra sentence per entry this week")
	}
	if len(s.TopTags) < 2 {
		out = append(out, "Experiment with more tags to better categorize your thoughts and feelings")
	}
	if s.Trend == TrendDeclining {
		out = append(out, "Consider adding gratitude or positive affirmations to your journaling routine")
	}
	return out
}

var numbers = message.NewPrinter(language.English)

// Values maps every summary placeholder to its rendered text. Keys with
// nothing to report are omitted so Render fills them with MissingValue.
func (s WeeklyStats) Values() map[string]string {
	v := map[string]string{
		"entryCount":         fmt.Sprint(s.EntryCount),
		"journalingDays":     fmt.Sprint(s.JournalingDays),
		"totalWords":         numbers.Sprintf("%d", s.TotalWords),
		"avgWordsPerEntry":   fmt.Sprint(s.AvgWords),
		"consistencyScore":   fmt.Sprint(s.ConsistencyScore),
		"consistencyEmoji":   s.ConsistencyEmoji,
		"consistencyMessage": s.ConsistencyMessage,
		"shortest":           fmt.Sprint(s.ShortestWords),
		"longest":            fmt.Sprint(s.LongestWords),
		"mostFrequentMood":   string(s.DominantMood),
		"maxCount":           fmt.Sprint(s.DominantCount),
		"moodTrend":          s.Trend,
		"trendEmoji":         s.TrendEmoji,
		"avgMoodScore":       fmt.Sprintf("%.1f", s.AvgMoodScore),
	}

	if s.PreferredTime != "" {
		v["preferredTime"] = s.PreferredTime
	}
	if s.PreferredDay != "" {
		v["preferredDay"] = s.PreferredDay
	}
	if s.LongestEntryDay != "" {
		v["longestEntryDay"] = s.LongestEntryDay
	}
	if len(s.TopTags) > 0 {
		v["topTags"] = escapeJoin(s.TopTags)
	}

	breakdown := make([]string, 0, len(s.Moods))
	for _, m := range s.Moods {
		breakdown = append(breakdown, fmt.Sprintf("%s(%d)", m.Mood, m.Count))
	}
	if len(breakdown) > 0 {
		v["moodBreakdown"] = strings.Join(breakdown, ", ")
	}

	v["topThemeSection"] = ""
	if s.TopTheme != "" {
		v["topThemeSection"] = fmt.Sprintf(`<p><strong>Favorite Theme:</strong> %s</p>`, EscapeText(s.TopTheme))
	}
	v["topCollectionsSection"] = ""
	if len(s.TopCollections) > 0 {
		v["topCollectionsSection"] = fmt.Sprintf(`<p><strong>Active Collections:</strong> %s</p>`, escapeJoin(s.TopCollections))
	}

	v["insightsList"] = bullets(s.Insights, "#ff8a65")
	recs := s.Recommendations
	if len(recs) == 0 {
		recs = []string{"You're doing great! Keep up your journaling journey."}
	}
	v["recommendationsList"] = bullets(recs, "#4caf50")
	return v
}

func escapeJoin(items []string) string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = EscapeText(it)
	}
	return strings.Join(out, ", ")
}

func bullets(items []string, color string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, `<p style="padding-left: 1rem; border-left: 2px solid %s;">• %s</p>`, color, it)
	}
	return b.String()
}

func (e *Engine) weeklySummary(ctx context.Context, r *run) error {
	week := e.cal.ISOWeekKey(r.now)
	if r.user.LastWeeklySummary == week {
		return nil
	}

	entries, err := r.hist.JournalsSince(ctx, r.user.ID, DaysAgo(r.now, summaryWindowDays))
	if err != nil {
		return fmt.Errorf("journals since: %w", err)
	}
	if len(entries) == 0 || r.batch.Full() {
		return nil
	}

	stats := CompileWeeklyStats(entries, e.cal.Location())
	vals := stats.Values()
	vals["week"] = week
	if p, ok := pick(e.rnd, e.cat.Prompts()); ok {
		vals["randomPrompt"] = p
	}

	t, _ := pick(e.rnd, e.cat.WeeklySummary())
	r.batch.Add(e.newMail(r.user, r.now, t, model.MailSummary, model.SummaryMeta{
		Week:           week,
		EntryCount:     stats.EntryCount,
		JournalingDays: stats.JournalingDays,
		DominantMood:   stats.DominantMood,
		Consistency:    stats.ConsistencyScore,
		Trend:          stats.Trend,
	}, DedupKey(r.user.ID, "summary", week), vals, false))
	r.user.LastWeeklySummary = week
	return nil
}

// counter tallies strings and remembers first-seen order for tie breaks.
type counter struct {
	order  []string
	counts map[string]int
}

func (c *counter) add(k string) {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if _, ok := c.counts[k]; !ok {
		c.order = append(c.order, k)
	}
	c.counts[k]++
}

func (c *counter) top() string {
	best, n := "", 0
	for _, k := range c.order {
		if c.counts[k] > n {
			best, n = k, c.counts[k]
		}
	}
	return best
}

// ranked returns up to limit keys by descending count as "key (n)".
func (c *counter) ranked(limit int) []string {
	keys := slices.Clone(c.order)
	slices.SortStableFunc(keys, func(a, b string) int { return c.counts[b] - c.counts[a] })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s (%d)", k, c.counts[k])
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
