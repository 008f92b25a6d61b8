package engagement

import (
	"context"
	"fmt"
	"html"

	"github.com/sakif/starlit/internal/catalog"
	"github.com/sakif/starlit/internal/model"
)

// storyChapter delivers the user's current chapter at most once per
// calendar day and then advances the pointer. Once the pointer passes the
// story's last chapter the story is marked complete and nothing more is
// sent. Catalog misses skip delivery without touching progress.
func (e *Engine) storyChapter(_ context.Context, r *run) error {
	p := &r.user.StoryProgress
	if !p.HasStory() {
		return nil
	}
	if p.LastSent != nil && e.cal.SameDay(*p.LastSent, r.now) {
		return nil
	}

	story, ok := e.cat.Story(p.StoryName)
	if !ok {
		return nil
	}
	if p.CurrentChapter > story.TotalChapters() {
		p.IsComplete = true
		return nil
	}

	ch, ok := e.cat.Chapter(p.StoryName, p.CurrentChapter)
	if !ok || r.batch.Full() {
		return nil
	}

	key := DedupKey(r.user.ID, "story", story.Name, p.CurrentChapter)
	if p.AssignedAt != nil {
		key = DedupKey(r.user.ID, "story", story.Name, p.AssignedAt.UnixMilli(), p.CurrentChapter)
	}
	r.batch.Add(model.Mail{
		Sender:     story.Character,
		Title:      fmt.Sprintf("Chapter %d: %s", p.CurrentChapter, ch.Title),
		Content:    chapterBody(story, ch),
		Type:       model.MailStory,
		Recipients: []model.Recipient{{UserID: r.user.ID}},
		Metadata:   model.StoryMeta{Story: story.Name, Chapter: p.CurrentChapter},
		ThemeID:    r.user.ActiveMailTheme,
		DedupKey:   key,
		Date:       r.now,
	})

	sent := r.now
	p.LastSent = &sent
	p.CurrentChapter++
	if p.CurrentChapter > story.TotalChapters() {
		p.IsComplete = true
	}
	return nil
}

func chapterBody(s catalog.Story, ch catalog.Chapter) string {
	return fmt.Sprintf(`<div style="background-image: url('%s'); background-size: cover; background-position: center; padding: 2rem; border-radius: 10px; color: #2c2c2c;">
  <div style="background-color: rgba(255, 255, 255, 0.6); padding: 1.25rem; border-radius: 10px; white-space: pre-wrap;">%s</div>
</div>`, html.EscapeString(s.Image), ch.Content)
}
