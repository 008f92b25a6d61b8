// Package catalog holds the read-only mail copy and story chapters the
// engagement engine draws from.
//
// A Catalog is built once at startup and shared by every request. Nothing
// mutates it after Parse returns, so it is safe for concurrent use.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Template is one piece of mail copy. Content may contain {placeholder}
// tokens that the engine substitutes before sending.
type Template struct {
	Sender       string `json:"sender"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	RewardAmount int    `json:"rewardAmount,omitempty"`
}

// MailTheme is a presentation skin wrapped around generated mail bodies.
// Sender, PromptTitles and CozyTitles, when set, replace the defaults on
// prompt mails and cozy notes.
type MailTheme struct {
	Styles          map[string]string `json:"styles"`
	ContentPrefixes []string          `json:"contentPrefixes"`
	ContentSuffixes []string          `json:"contentSuffixes"`
	Sender          string            `json:"sender,omitempty"`
	PromptTitles    []string          `json:"promptTitles,omitempty"`
	CozyTitles      []string          `json:"cozyTitles,omitempty"`
}

// Chapter is one installment of a story.
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Story is an ordered list of chapters delivered one per day.
type Story struct {
	Name             string    `json:"Story Name"`
	Character        string    `json:"character"`
	Image            string    `json:"image"`
	NumberOfChapters int       `json:"number_of_chapters"`
	Chapters         []Chapter `json:"chapters"`
}

// TotalChapters is the declared chapter count, falling back to the number
// of chapters present when the story does not declare one.
func (s Story) TotalChapters() int {
	if s.NumberOfChapters > 0 {
		return s.NumberOfChapters
	}
	return len(s.Chapters)
}

// templates mirrors the on-disk mail template document.
type templates struct {
	Reward             []Template            `json:"reward"`
	Welcome            []Template            `json:"welcome"`
	StoryPromo         []Template            `json:"storyPromo"`
	MoodBased          map[string][]Template `json:"moodBased"`
	SpecificMoods      map[string][]Template `json:"specificMoods"`
	StreakMilestone    map[string][]Template `json:"streakMilestone"`
	EntryMilestone     map[string][]Template `json:"entryMilestone"`
	Inactivity         map[string][]Template `json:"inactivity"`
	TipsAndInspiration []Template            `json:"tipsAndInspiration"`
	WritingPrompts     []string              `json:"writingPrompts"`
	CozyMessages       []string              `json:"cozyMessages"`
	PromptMail         []Template            `json:"promptMail"`
	WeeklySummary      []Template            `json:"weeklySummary"`
	LikeMilestone      []Template            `json:"likeMilestone"`
	Seasonal           map[string][]Template `json:"seasonal"`
	MailThemes         map[string]MailTheme  `json:"mailThemes"`
}

type storyDocument struct {
	Stories []Story `json:"stories"`
}

// Catalog answers template and chapter lookups. A missing key is reported
// with ok=false; callers skip delivery rather than fail.
type Catalog struct {
	t       templates
	stories map[string]Story
	order   []string
}

// Parse builds a Catalog from the mail template and story documents.
func Parse(templateJSON, storyJSON []byte) (*Catalog, error) {
	var t templates
	if err := json.Unmarshal(templateJSON, &t); err != nil {
		return nil, fmt.Errorf("catalog: parse templates: %w", err)
	}

	var doc storyDocument
	if len(storyJSON) > 0 {
		if err := json.Unmarshal(storyJSON, &doc); err != nil {
			return nil, fmt.Errorf("catalog: parse stories: %w", err)
		}
	}

	c := &Catalog{t: t, stories: make(map[string]Story, len(doc.Stories))}
	for _, s := range doc.Stories {
		if s.Name == "" {
			return nil, errors.New("catalog: story without a name")
		}
		if _, dup := c.stories[s.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate story %q", s.Name)
		}
		c.stories[s.Name] = s
		c.order = append(c.order, s.Name)
	}
	return c, nil
}

func (c *Catalog) Welcome() []Template    { return c.t.Welcome }
func (c *Catalog) Reward() []Template     { return c.t.Reward }
func (c *Catalog) StoryPromo() []Template { return c.t.StoryPromo }
func (c *Catalog) Tips() []Template       { return c.t.TipsAndInspiration }
func (c *Catalog) PromptMail() []Template { return c.t.PromptMail }
func (c *Catalog) Prompts() []string      { return c.t.WritingPrompts }
func (c *Catalog) CozyMessages() []string { return c.t.CozyMessages }

// WeeklySummary returns the summary templates, or the built-in layout when
// the document does not provide one.
func (c *Catalog) WeeklySummary() []Template {
	if len(c.t.WeeklySummary) > 0 {
		return c.t.WeeklySummary
	}
	return []Template{defaultSummaryTemplate}
}

// LikeMilestone returns the templates used to tell an author their entry
// is being liked.
func (c *Catalog) LikeMilestone() []Template {
	if len(c.t.LikeMilestone) > 0 {
		return c.t.LikeMilestone
	}
	return []Template{defaultLikeTemplate}
}

// StreakMilestone returns the pool keyed "<n>day".
func (c *Catalog) StreakMilestone(n int) ([]Template, bool) {
	return nonEmpty(c.t.StreakMilestone[strconv.Itoa(n)+"day"])
}

// EntryMilestone returns the pool keyed "<n>entries".
func (c *Catalog) EntryMilestone(n int) ([]Template, bool) {
	return nonEmpty(c.t.EntryMilestone[strconv.Itoa(n)+"entries"])
}

// MoodBased returns the pool for a mood category (sad, happy, mixed).
func (c *Catalog) MoodBased(category string) ([]Template, bool) {
	return nonEmpty(c.t.MoodBased[category])
}

// SpecificMood returns the pool for one mood label, matched case-insensitively.
func (c *Catalog) SpecificMood(mood string) ([]Template, bool) {
	return nonEmpty(c.t.SpecificMoods[strings.ToLower(mood)])
}

// Inactivity returns the pool for a reminder tier (short, medium, long).
func (c *Catalog) Inactivity(tier string) ([]Template, bool) {
	return nonEmpty(c.t.Inactivity[tier])
}

// Seasonal returns the pool for a special date or season key.
func (c *Catalog) Seasonal(key string) ([]Template, bool) {
	return nonEmpty(c.t.Seasonal[key])
}

// Theme looks up a mail theme by id.
func (c *Catalog) Theme(id string) (MailTheme, bool) {
	if id == "" {
		return MailTheme{}, false
	}
	th, ok := c.t.MailThemes[id]
	return th, ok
}

// Story looks up a story by its exact name.
func (c *Catalog) Story(name string) (Story, bool) {
	s, ok := c.stories[name]
	return s, ok
}

// StoryNames lists stories in document order.
func (c *Catalog) StoryNames() []string {
	return append([]string(nil), c.order...)
}

// Chapter returns chapter n (1-based) of the named story. An unknown story
// or an out-of-range n reports ok=false.
func (c *Catalog) Chapter(story string, n int) (Chapter, bool) {
	s, ok := c.stories[story]
	if !ok || n < 1 || n > s.TotalChapters() || n > len(s.Chapters) {
		return Chapter{}, false
	}
	return s.Chapters[n-1], true
}

func nonEmpty(ts []Template) ([]Template, bool) {
	return ts, len(ts) > 0
}
