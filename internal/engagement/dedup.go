package engagement

import (
	"fmt"

	"github.com/google/uuid"
)

var mailNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://starlit.journal/mail"))

// DedupKey derives a stable id for "this event for this user". Storage
// ignores a second insert with the same key, so rerunning the engine for
// an event that was already persisted cannot produce a duplicate mail.
func DedupKey(userID, event string, parts ...any) string {
	name := userID + "|" + event
	for _, p := range parts {
		name += "|" + fmt.Sprint(p)
	}
	return uuid.NewSHA1(mailNamespace, []byte(name)).String()
}
