package timeline

import "strings"

// Filter returns a pruned copy of forest holding the events whose
// text contains query (case-insensitively) and the ancestors of such
// events. A kept ancestor's children are replaced by the filtered
// subsequence. The input is never modified. A blank query returns
// forest itself.
func Filter(forest []*Event, query string) []*Event {
	if strings.TrimSpace(query) == "" {
		return forest
	}
	return filterEvents(forest, strings.ToLower(query))
}

func filterEvents(events []*Event, needle string) []*Event {
	out := []*Event{}
	for _, ev := range events {
		children := filterEvents(ev.Children, needle)
		if len(children) == 0 && !matches(ev, needle) {
			continue
		}
		kept := ev.shallowCopy()
		kept.Children = children
		out = append(out, kept)
	}
	return out
}

func matches(ev *Event, needle string) bool {
	return strings.Contains(strings.ToLower(ev.Text()), needle)
}
