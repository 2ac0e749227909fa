package chat

import "time"

// DayGroup is one render group of messages sharing a calendar-day label.
type DayGroup struct {
	Label    string
	Messages []Message
}

// Group buckets messages by calendar day relative to now, preserving
// store order within each group. Pure: identical input always yields
// identical output, and it never mutates its input.
func Group(messages []Message, now time.Time) []DayGroup {
	groups := make([]DayGroup, 0)
	index := make(map[string]int)

	for _, m := range messages {
		label := DayLabel(m.CreatedAt, now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DayGroup{Label: label})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}

// DayLabel renders a message timestamp relative to now: "Today",
// "Yesterday", or a formatted date like "Monday, Jan 2, 2006".
func DayLabel(t, now time.Time) string {
	t = t.In(now.Location())
	if sameDay(t, now) {
		return "Today"
	}
	if sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	return t.Format("Monday, Jan 2, 2006")
}

// ClockLabel renders the per-message time shown next to each bubble.
func ClockLabel(t time.Time) string {
	return t.Format("15:04")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
