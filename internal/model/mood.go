package model

import "strings"

// Mood is the label a writer picks for an entry.
type Mood string

const (
	MoodHappy      Mood = "Happy"
	MoodNeutral    Mood = "Neutral"
	MoodSad        Mood = "Sad"
	MoodAngry      Mood = "Angry"
	MoodAnxious    Mood = "Anxious"
	MoodTired      Mood = "Tired"
	MoodReflective Mood = "Reflective"
	MoodExcited    Mood = "Excited"
)

// Moods lists the labels accepted on new entries.
var Moods = []Mood{
	MoodHappy, MoodNeutral, MoodSad, MoodAngry,
	MoodAnxious, MoodTired, MoodReflective, MoodExcited,
}

// ParseMood matches case-insensitively against Moods.
func ParseMood(s string) (Mood, bool) {
	for _, m := range Moods {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, true
		}
	}
	return "", false
}

// Sentiment is the coarse bucket a mood falls into.
type Sentiment string

const (
	SentimentNegative Sentiment = "negative"
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentOther    Sentiment = "other"

	// SentimentMixed labels a run of entries that leans neither way.
	SentimentMixed Sentiment = "mixed"
)

// sentimentOf also carries labels from older clients (Stressed, Grateful,
// Calm...) so history written before the enum was narrowed still buckets.
var sentimentOf = map[Mood]Sentiment{
	MoodSad:       SentimentNegative,
	MoodAnxious:   SentimentNegative,
	MoodAngry:     SentimentNegative,
	"Stressed":    SentimentNegative,
	"Overwhelmed": SentimentNegative,

	MoodHappy:   SentimentPositive,
	MoodExcited: SentimentPositive,
	"Grateful":  SentimentPositive,
	"Peaceful":  SentimentPositive,
	"Content":   SentimentPositive,

	MoodNeutral:    SentimentNeutral,
	"Calm":         SentimentNeutral,
	MoodReflective: SentimentNeutral,
}

// Sentiment returns the bucket for m. Tired and unknown labels are "other".
func (m Mood) Sentiment() Sentiment {
	if s, ok := sentimentOf[m]; ok {
		return s
	}
	return SentimentOther
}

var moodScores = map[Mood]float64{
	MoodHappy:      5,
	MoodExcited:    4,
	MoodNeutral:    3,
	MoodReflective: 3,
	MoodTired:      2,
	MoodAnxious:    1,
	MoodSad:        1,
	MoodAngry:      0,
}

// Score maps a mood onto 0..5 for trend analysis. Unknown moods score 3.
func (m Mood) Score() float64 {
	if s, ok := moodScores[m]; ok {
		return s
	}
	return 3
}
