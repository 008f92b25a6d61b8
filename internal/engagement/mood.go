package engagement

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/starlit/internal/model"
)

const (
	moodSampleSize   = 5
	moodMinEntries   = 3
	moodCooldownDays = 10
	moodLeanCount    = 2 // entries in one bucket needed to lean that way
)

// MoodCount is one label's tally, kept in first-seen order.
type MoodCount struct {
	Mood  model.Mood
	Count int
}

// tally counts moods preserving the order each label was first seen.
func tally(entries []model.Journal) []MoodCount {
	idx := make(map[model.Mood]int)
	var out []MoodCount
	for _, j := range entries {
		i, ok := idx[j.Mood]
		if !ok {
			i = len(out)
			idx[j.Mood] = i
			out = append(out, MoodCount{Mood: j.Mood})
		}
		out[i].Count++
	}
	return out
}

// dominant is the most frequent label; ties go to the one seen first.
func dominant(counts []MoodCount) (MoodCount, bool) {
	var best MoodCount
	for _, c := range counts {
		if c.Count > best.Count {
			best = c
		}
	}
	return best, best.Count > 0
}

// MoodDigest is the classification of a run of recent entries.
type MoodDigest struct {
	Category string          // sad, happy, mixed, or a specific mood label
	Bucket   model.Sentiment // negative, positive or mixed
	Dominant model.Mood
}

// DigestMoods classifies entries: two or more negative labels lean "sad",
// otherwise two or more positive ones lean "happy", otherwise "mixed".
func DigestMoods(entries []model.Journal) MoodDigest {
	counts := tally(entries)

	var negative, positive int
	for _, c := range counts {
		switch c.Mood.Sentiment() {
		case model.SentimentNegative:
			negative += c.Count
		case model.SentimentPositive:
			positive += c.Count
		}
	}

	d := MoodDigest{Category: "mixed", Bucket: model.SentimentMixed}
	switch {
	case negative >= moodLeanCount:
		d.Category, d.Bucket = "sad", model.SentimentNegative
	case positive >= moodLeanCount:
		d.Category, d.Bucket = "happy", model.SentimentPositive
	}
	if top, ok := dominant(counts); ok {
		d.Dominant = top.Mood
	}
	return d
}

func (e *Engine) moodDigest(ctx context.Context, r *run) error {
	recent, err := sentWithin(ctx, r, model.MailMood, moodCooldownDays)
	if err != nil || recent {
		return err
	}

	entries, err := r.hist.RecentJournals(ctx, r.user.ID, moodSampleSize)
	if err != nil {
		return fmt.Errorf("recent journals: %w", err)
	}
	if len(entries) < moodMinEntries || r.batch.Full() {
		return nil
	}

	d := DigestMoods(entries)
	pool, ok := e.cat.MoodBased(d.Category)
	if specific, found := e.cat.SpecificMood(string(d.Dominant)); found && d.Dominant != "" {
		pool, ok = specific, true
		d.Category = strings.ToLower(string(d.Dominant))
	}
	if !ok {
		return nil
	}

	t, _ := pick(e.rnd, pool)
	r.batch.Add(e.newMail(r.user, r.now, t, model.MailMood,
		model.MoodMeta{MoodCategory: d.Category, Bucket: d.Bucket, DominantMood: d.Dominant},
		DedupKey(r.user.ID, "mood", e.cal.DayKey(r.now)),
		map[string]string{"mood": string(d.Dominant)}, true))
	return nil
}
