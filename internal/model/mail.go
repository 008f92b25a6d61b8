package model

import "time"

// MailType identifies both what a mail is about and which Metadata
// variant it carries.
type MailType string

const (
	MailWelcome    MailType = "welcome"
	MailReward     MailType = "reward"
	MailMood       MailType = "mood"
	MailStreak     MailType = "streak"
	MailEntry      MailType = "entry"
	MailInactivity MailType = "inactivity"
	MailSummary    MailType = "summary"
	MailSeasonal   MailType = "seasonal"
	MailTip        MailType = "tip"
	MailPrompt     MailType = "prompt"
	MailStory      MailType = "story"
	MailOther      MailType = "other"
)

// Recipient is the per-user mutable part of a mail. Everything else on
// Mail is immutable once inserted.
type Recipient struct {
	UserID        string `json:"userId"`
	Read          bool   `json:"read"`
	RewardClaimed bool   `json:"rewardClaimed"`
}

// Mail is a system-generated notification.
type Mail struct {
	ID           string      `json:"id"`
	Sender       string      `json:"sender"`
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	Type         MailType    `json:"mailType"`
	Recipients   []Recipient `json:"recipients"`
	RewardAmount int         `json:"rewardAmount"`
	Metadata     Metadata    `json:"metadata,omitempty"`
	ThemeID      string      `json:"themeId,omitempty"`

	// DedupKey is unique in storage. Inserting a mail whose key already
	// exists is a silent no-op, so replays of the same event are safe.
	DedupKey string `json:"-"`

	Date       time.Time  `json:"date"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

// RecipientFor returns the recipient state for userID.
func (m *Mail) RecipientFor(userID string) (*Recipient, bool) {
	for i := range m.Recipients {
		if m.Recipients[i].UserID == userID {
			return &m.Recipients[i], true
		}
	}
	return nil, false
}

// Expired reports whether the mail is past its expiry date at now.
func (m *Mail) Expired(now time.Time) bool {
	return m.ExpiryDate != nil && !now.Before(*m.ExpiryDate)
}

// InboxItem is a mail as one recipient sees it.
type InboxItem struct {
	ID            string     `json:"id"`
	Sender        string     `json:"sender"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Type          MailType   `json:"mailType"`
	RewardAmount  int        `json:"rewardAmount"`
	Metadata      Metadata   `json:"metadata,omitempty"`
	ThemeID       string     `json:"themeId,omitempty"`
	Read          bool       `json:"read"`
	RewardClaimed bool       `json:"rewardClaimed"`
	Date          time.Time  `json:"date"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
}
