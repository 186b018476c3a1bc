// Package Views computes read-only projections over entity snapshots.
// Every function here is pure: same snapshot in, same view out.
package Views

import (
	"time"

	"Workdesk/AbstractFunctions"
	"Workdesk/Models"
)

type ChatGroup struct {
	Label    string               `json:"label"`
	Messages []Models.ChatMessage `json:"messages"`
}

// GroupChatByDate buckets an ordered message list by the viewer-local calendar
// date. Buckets appear in order of first occurrence and keep message order.
// Messages still waiting on their server timestamp are labelled with now.
func GroupChatByDate(messages []Models.ChatMessage, loc *time.Location, now time.Time) []ChatGroup {
	var groups []ChatGroup
	index := make(map[string]int)
	for _, m := range messages {
		at := m.CreatedAt
		if m.Pending() {
			at = now
		}
		label := AbstractFunctions.ChatDateLabel(at, loc)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, ChatGroup{Label: label})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}
