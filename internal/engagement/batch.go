package engagement

import "github.com/sakif/starlit/internal/model"

// Batch collects the mails produced by one engine run. Detectors run in
// priority order, so when the cap is reached the earlier ones have won.
type Batch struct {
	limit int // 0 means unbounded
	mails []model.Mail
}

// NewBatch returns an empty batch holding at most limit mails.
func NewBatch(limit int) *Batch {
	if limit < 0 {
		limit = 0
	}
	return &Batch{limit: limit}
}

// Full reports whether another mail would exceed the cap. Detectors check
// it before touching user state so a skipped mail can fire next time.
func (b *Batch) Full() bool {
	return b.limit > 0 && len(b.mails) >= b.limit
}

// Add appends m unless the batch is full.
func (b *Batch) Add(m model.Mail) bool {
	if b.Full() {
		return false
	}
	b.mails = append(b.mails, m)
	return true
}

func (b *Batch) Len() int { return len(b.mails) }

// Has reports whether a mail of type t is already queued.
func (b *Batch) Has(t model.MailType) bool {
	for _, m := range b.mails {
		if m.Type == t {
			return true
		}
	}
	return false
}

// Mails returns the collected mails in insertion order.
func (b *Batch) Mails() []model.Mail {
	return append([]model.Mail(nil), b.mails...)
}
