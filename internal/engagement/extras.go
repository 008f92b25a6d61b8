package engagement

import (
	"context"

	"github.com/sakif/starlit/internal/catalog"
	"github.com/sakif/starlit/internal/model"
)

const (
	tipCooldownDays    = 14
	promptCooldownDays = 7
	cozyCooldownDays   = 2
	extraMailChance    = 0.3
)

var defaultPromptTemplate = catalog.Template{
	Sender:  "The Whispering Grove",
	Title:   "A Prompt from the Woodland Scrolls",
	Content: "Today's prompt: {prompt}",
}

func (e *Engine) tip(ctx context.Context, r *run) error {
	recent, err := sentWithin(ctx, r, model.MailTip, tipCooldownDays)
	if err != nil || recent || r.batch.Full() {
		return err
	}
	if e.rnd.Float64() >= extraMailChance {
		return nil
	}

	t, ok := pick(e.rnd, e.cat.Tips())
	if !ok {
		return nil
	}
	r.batch.Add(e.newMail(r.user, r.now, t, model.MailTip, nil,
		DedupKey(r.user.ID, "tip", e.cal.DayKey(r.now)), nil, true))
	return nil
}

// prompt sends a random writing prompt. A theme with its own sender or
// prompt titles speaks in that voice instead of the template's.
func (e *Engine) prompt(ctx context.Context, r *run) error {
	recent, err := sentWithin(ctx, r, model.MailPrompt, promptCooldownDays)
	if err != nil || recent || r.batch.Full() {
		return err
	}
	if e.rnd.Float64() >= extraMailChance {
		return nil
	}

	text, ok := pick(e.rnd, e.cat.Prompts())
	if !ok {
		return nil
	}
	t, ok := pick(e.rnd, e.cat.PromptMail())
	if !ok {
		t = defaultPromptTemplate
	}
	if theme, ok := e.cat.Theme(r.user.ActiveMailTheme); ok {
		if theme.Sender != "" {
			t.Sender = theme.Sender
		}
		if title, ok := pick(e.rnd, theme.PromptTitles); ok {
			t.Title = title
		}
	}

	r.batch.Add(e.newMail(r.user, r.now, t, model.MailPrompt, nil,
		DedupKey(r.user.ID, "prompt", e.cal.DayKey(r.now)),
		map[string]string{"prompt": text}, true))
	return nil
}

var cozyTemplate = catalog.Template{
	Sender: "Starlit Journals Team",
	Title:  "A Cozy Note for You ✨",
	Content: `<div style="padding: 1.25rem; background: rgba(243, 231, 245, 0.4); border-radius: 10px; color: #4b2e60; text-align: center; max-width: 600px; margin: 0 auto;">
  <p style="font-size: 0.9rem; margin-bottom: 1.2rem;">Hey Journaler 🌿</p>
  <div style="font-size: 1rem; line-height: 1.6; padding: 1rem; border-radius: 8px; background: rgba(255, 255, 255, 0.5); font-style: italic; color: #3f2b4f;">{cozyMessage}</div>
  <a style="display: inline-block; margin-top: 1.25rem; font-size: 0.85rem; padding: 0.4rem 1rem; border-radius: 9999px; background: #d8b4fe; color: white; text-decoration: none;" href="journaling-alt">Open Journal ✍️</a>
</div>`,
}

// cozy sends a short note of encouragement. Cozy notes are prompt mail:
// any prompt mail in the last two days, or one already queued on this
// login, holds it back.
func (e *Engine) cozy(ctx context.Context, r *run) error {
	if r.batch.Full() || r.batch.Has(model.MailPrompt) {
		return nil
	}
	recent, err := sentWithin(ctx, r, model.MailPrompt, cozyCooldownDays)
	if err != nil || recent {
		return err
	}

	text, ok := pick(e.rnd, e.cat.CozyMessages())
	if !ok {
		return nil
	}
	t := cozyTemplate
	if theme, ok := e.cat.Theme(r.user.ActiveMailTheme); ok {
		if theme.Sender != "" {
			t.Sender = theme.Sender
		}
		if title, ok := pick(e.rnd, theme.CozyTitles); ok {
			t.Title = title
		}
	}

	r.batch.Add(e.newMail(r.user, r.now, t, model.MailPrompt, nil,
		DedupKey(r.user.ID, "cozy", e.cal.DayKey(r.now)),
		map[string]string{"cozyMessage": text}, true))
	return nil
}
