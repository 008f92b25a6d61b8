// Package model defines the data structures used throughout the application.
package model

import (
	"slices"
	"time"
)

// User is an account holder plus the mutable engagement state the login
// engine reads and writes.
//
// WHY POINTERS FOR LastVisited / LastJournaled?
// A brand-new account has never visited or journaled. nil keeps "never"
// distinct from the zero time, which would otherwise read as year 1 and
// make every streak comparison look like a very long gap.
type User struct {
	ID            string `json:"id"`
	Nickname      string `json:"nickname"`
	Email         string `json:"email"`
	Password      string `json:"-"` // bcrypt hash, or a legacy plaintext value
	Age           int    `json:"age"`
	Gender        string `json:"gender"`
	Subscribe     bool   `json:"subscribe"`
	AnonymousName string `json:"anonymousName"`

	CurrentStreak int        `json:"currentStreak"`
	LongestStreak int        `json:"longestStreak"`
	LastVisited   *time.Time `json:"lastVisited,omitempty"`
	LastJournaled *time.Time `json:"lastJournaled,omitempty"`

	Coins     int             `json:"coins"`
	Inventory []InventoryItem `json:"inventory"`

	CompletedStreakMilestones MilestoneLedger `json:"completedStreakMilestones"`
	CompletedEntryMilestones  MilestoneLedger `json:"completedEntryMilestones"`

	StoryProgress     StoryProgress `json:"storyProgress"`
	ActiveMailTheme   string        `json:"activeMailTheme,omitempty"`
	LastWeeklySummary string        `json:"lastWeeklySummary,omitempty"` // ISO week key, e.g. "2026-W42"

	// Version is bumped on every engagement save. Writers must present the
	// version they read; a mismatch means another session got there first.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// InventoryItem is something the user owns from the shop (themes, emoji packs).
type InventoryItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Category    string `json:"category"`
	IsEmoji     bool   `json:"isEmoji"`
	Gradient    string `json:"gradient,omitempty"`
	Price       int    `json:"price"`
	Quantity    int    `json:"quantity"`
}

// DefaultInventory is what every new account starts with.
func DefaultInventory() []InventoryItem {
	return []InventoryItem{{
		ID:          "theme_default",
		Name:        "Default",
		Description: "A simple, no-frills journal theme",
		Color:       "#cccccc",
		Category:    "theme",
		Price:       0,
		Quantity:    1,
	}}
}

// StoryProgress is the user's cursor into the story catalog.
// An empty StoryName means no story is assigned.
type StoryProgress struct {
	StoryName      string     `json:"storyName,omitempty"`
	CurrentChapter int        `json:"currentChapter,omitempty"` // 1-based
	LastSent       *time.Time `json:"lastSent,omitempty"`
	IsComplete     bool       `json:"isComplete"`
	// AssignedAt separates chapter mail of a re-read story from the
	// first reading. Nil on rows assigned before it existed.
	AssignedAt *time.Time `json:"assignedAt,omitempty"`
}

// HasStory reports whether a story is assigned and not yet finished.
func (p StoryProgress) HasStory() bool {
	return p.StoryName != "" && !p.IsComplete
}

// MilestoneLedger is the append-only set of thresholds already notified.
// Entries are never removed, even when a streak resets.
type MilestoneLedger []int

// Has reports whether n has already been recorded.
func (l MilestoneLedger) Has(n int) bool {
	return slices.Contains(l, n)
}

// Add records n. Adding an existing value is a no-op.
func (l *MilestoneLedger) Add(n int) {
	if !l.Has(n) {
		*l = append(*l, n)
	}
}

// Normalize repairs missing or inconsistent engagement fields in place.
// Rows written by older versions of the app may lack ledgers or carry a
// story pointer of 0; none of that is worth failing a login over.
func (u *User) Normalize() {
	if u.Inventory == nil {
		u.Inventory = []InventoryItem{}
	}
	if u.CompletedStreakMilestones == nil {
		u.CompletedStreakMilestones = MilestoneLedger{}
	}
	if u.CompletedEntryMilestones == nil {
		u.CompletedEntryMilestones = MilestoneLedger{}
	}
	if u.CurrentStreak < 0 {
		u.CurrentStreak = 0
	}
	if u.Coins < 0 {
		u.Coins = 0
	}
	if u.LongestStreak < u.CurrentStreak {
		u.LongestStreak = u.CurrentStreak
	}
	if u.StoryProgress.StoryName != "" && u.StoryProgress.CurrentChapter < 1 {
		u.StoryProgress.CurrentChapter = 1
	}
}
