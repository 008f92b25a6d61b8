package model

import (
	"strings"
	"time"
)

// Journal is one mood-tagged entry. The engagement engine only ever reads
// journals; it never modifies them.
type Journal struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Mood        Mood      `json:"mood"`
	Tags        []string  `json:"tags"`
	Collections []string  `json:"collections"`
	WordCount   int       `json:"wordCount"`
	Theme       string    `json:"theme,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	AuthorName  string    `json:"authorName,omitempty"`
	Likes       []string  `json:"likes"`
	LikeCount   int       `json:"likeCount"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DefaultCollection is implicitly part of every entry's collections.
const DefaultCollection = "All"

// CountWords splits on runs of whitespace.
func CountWords(content string) int {
	return len(strings.Fields(content))
}
