package dispatcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/pkg/timeutil"
)

// RenderReminder produces the subject and plain-text body for a reminder
// email. The due instant is rendered in the owner's timezone; storage stays
// UTC.
func RenderReminder(event *model.Event, user *model.User, offset time.Duration) (subject, body string) {
	subject = fmt.Sprintf("[Reminder] %s — %s", event.Title, timeutil.Humanize(offset))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", event.Title)
	if event.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", event.Description)
	}
	fmt.Fprintf(&b, "Due: %s\n", event.DueAt.In(user.Location()).Format("2006-01-02 15:04 MST"))
	if len(event.Labels) > 0 {
		names := make([]string, len(event.Labels))
		for i, l := range event.Labels {
			names[i] = l.Name
		}
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(names, ", "))
	}
	return subject, b.String()
}
