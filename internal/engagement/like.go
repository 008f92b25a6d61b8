package engagement

import (
	"fmt"
	"slices"
	"time"

	"github.com/sakif/starlit/internal/model"
)

// LikeThresholds are the like counts at which an author hears about it.
var LikeThresholds = []int{1, 5, 10, 25, 50, 100}

// RunLike is called after likerID likes j, with j.LikeCount already
// including the new like. The author gets a mail when the count lands on
// a threshold. Self-likes never notify. The dedup key is per journal and
// threshold, so unliking and liking again cannot repeat a notification.
func (e *Engine) RunLike(author *model.User, j model.Journal, likerID string, now time.Time) []model.Mail {
	if likerID == author.ID || !slices.Contains(LikeThresholds, j.LikeCount) {
		return nil
	}

	t, ok := pick(e.rnd, e.cat.LikeMilestone())
	if !ok {
		return nil
	}
	return []model.Mail{e.newMail(author, now, t, model.MailOther,
		model.LikeMeta{JournalID: j.ID, Likes: j.LikeCount},
		DedupKey(author.ID, "like", j.ID, j.LikeCount),
		map[string]string{
			"journalTitle": j.Title,
			"likes":        fmt.Sprint(j.LikeCount),
		}, true)}
}
