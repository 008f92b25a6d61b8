package model

import (
	"encoding/json"
	"fmt"
)

// Metadata is the per-type payload attached to a mail. Each concrete type
// belongs to exactly one MailType; DecodeMetadata picks the variant from
// the mail's type when reading it back from storage.
type Metadata interface {
	MailType() MailType
}

// StreakMeta marks a streak-length milestone.
type StreakMeta struct {
	Milestone int `json:"milestone"`
}

func (StreakMeta) MailType() MailType { return MailStreak }

// EntryMeta marks an entry-count milestone.
type EntryMeta struct {
	Milestone int `json:"milestone"`
}

func (EntryMeta) MailType() MailType { return MailEntry }

// RewardMeta accompanies coin rewards. Milestone is zero for the signup reward.
type RewardMeta struct {
	Milestone int `json:"milestone,omitempty"`
}

func (RewardMeta) MailType() MailType { return MailReward }

// MoodMeta records which template pool a mood digest was drawn from.
type MoodMeta struct {
	MoodCategory string    `json:"moodCategory"`
	Bucket       Sentiment `json:"bucket"`
	DominantMood Mood      `json:"dominantMood"`
}

func (MoodMeta) MailType() MailType { return MailMood }

// StoryMeta identifies the delivered chapter.
type StoryMeta struct {
	Story   string `json:"story"`
	Chapter int    `json:"chapter"`
}

func (StoryMeta) MailType() MailType { return MailStory }

// SummaryMeta carries the headline numbers of a weekly summary.
type SummaryMeta struct {
	Week           string `json:"week"`
	EntryCount     int    `json:"entryCount"`
	JournalingDays int    `json:"journalingDays"`
	DominantMood   Mood   `json:"dominantMood"`
	Consistency    int    `json:"consistency"`
	Trend          string `json:"trend"`
}

func (SummaryMeta) MailType() MailType { return MailSummary }

// InactivityMeta names the reminder tier (short, medium, long).
type InactivityMeta struct {
	Period string `json:"period"`
	Days   int    `json:"days"`
}

func (InactivityMeta) MailType() MailType { return MailInactivity }

// LikeMeta is attached to like notifications, which use MailOther.
type LikeMeta struct {
	JournalID string `json:"journalId"`
	Likes     int    `json:"likes"`
}

func (LikeMeta) MailType() MailType { return MailOther }

// SeasonalMeta names the special date or season.
type SeasonalMeta struct {
	Season string `json:"season"`
}

func (SeasonalMeta) MailType() MailType { return MailSeasonal }

// DecodeMetadata unmarshals raw into the variant for t. Types without a
// payload, and empty input, decode to nil.
func DecodeMetadata(t MailType, raw []byte) (Metadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var md Metadata
	switch t {
	case MailStreak:
		md = &StreakMeta{}
	case MailEntry:
		md = &EntryMeta{}
	case MailReward:
		md = &RewardMeta{}
	case MailMood:
		md = &MoodMeta{}
	case MailStory:
		md = &StoryMeta{}
	case MailSummary:
		md = &SummaryMeta{}
	case MailInactivity:
		md = &InactivityMeta{}
	case MailOther:
		md = &LikeMeta{}
	case MailSeasonal:
		md = &SeasonalMeta{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(raw, md); err != nil {
		return nil, fmt.Errorf("model: decode %s metadata: %w", t, err)
	}
	return deref(md), nil
}

// deref turns the pointer used for unmarshalling back into the value type
// the rest of the code constructs and compares against.
func deref(md Metadata) Metadata {
	switch v := md.(type) {
	case *StreakMeta:
		return *v
	case *EntryMeta:
		return *v
	case *RewardMeta:
		return *v
	case *MoodMeta:
		return *v
	case *StoryMeta:
		return *v
	case *SummaryMeta:
		return *v
	case *InactivityMeta:
		return *v
	case *LikeMeta:
		return *v
	case *SeasonalMeta:
		return *v
	}
	return md
}
