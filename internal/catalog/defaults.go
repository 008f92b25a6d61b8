package catalog

import (
	_ "embed"
	"fmt"
)

//go:embed defaults/templates.json
var defaultTemplatesJSON []byte

//go:embed defaults/stories.json
var defaultStoriesJSON []byte

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	c, err := Parse(defaultTemplatesJSON, defaultStoriesJSON)
	if err != nil {
		return nil, fmt.Errorf("catalog: embedded defaults: %w", err)
	}
	return c, nil
}

var defaultLikeTemplate = Template{
	Sender:  "Starlit Journals Team",
	Title:   "Your words are being felt 💫",
	Content: `<div style="padding: 1rem; text-align: center;"><p>Your entry "{journalTitle}" has reached {likes} like(s). Someone out there needed to read it today.</p></div>`,
}

var defaultSummaryTemplate = Template{
	Sender: "Starlit Journals Team",
	Title:  "Your Weekly Journal Insights 📊✨",
	Content: `<div style="padding: 1rem; background: linear-gradient(to bottom, #ffe5d9, #fff5eb); border: 2px solid #ffccbc; color: #5c4033; text-align: center;">
  <h2>Your Weekly Journal Deep Dive 🔍</h2>
  <p>Hello, {nickname}. Here's your week in journaling ({week}).</p>
  <div style="text-align: left;">
    <h3>📈 Weekly Overview</h3>
    <p><strong>Total Entries:</strong> {entryCount}</p>
    <p><strong>Days Journaled:</strong> {journalingDays}/7</p>
    <p><strong>Total Words:</strong> {totalWords}</p>
    <p><strong>Avg per Entry:</strong> {avgWordsPerEntry} words</p>
    <p><strong>Consistency:</strong> {consistencyScore}% {consistencyEmoji}</p>
    <p><strong>Range:</strong> {shortest}-{longest} words</p>
    <p><em>{consistencyMessage}</em></p>
    <h3>🎭 Mood Journey</h3>
    <p><strong>Dominant Mood:</strong> {mostFrequentMood} ({maxCount} entries)</p>
    <p><strong>Weekly Trend:</strong> {moodTrend} {trendEmoji}</p>
    <p><strong>Mood Score:</strong> {avgMoodScore}/5.0</p>
    <p><em>All moods recorded: {moodBreakdown}</em></p>
    <h3>⏰ Your Writing Rhythms</h3>
    <p><strong>Favorite Time:</strong> {preferredTime}</p>
    <p><strong>Preferred Day:</strong> {preferredDay}</p>
    <p><strong>Longest Entry:</strong> {longestEntryDay}</p>
    <p><strong>Top Tags:</strong> {topTags}</p>
    {topThemeSection}
    {topCollectionsSection}
    <h3>💎 Personal Insights</h3>
    {insightsList}
    <h3>🎯 Growth Suggestions</h3>
    {recommendationsList}
  </div>
  <h3>This Week's Writing Spark 💌</h3>
  <p><em>{randomPrompt}</em></p>
  <p>Keep nurturing your inner world through words,<br><strong>The Starlit Journals Team</strong></p>
</div>`,
}
