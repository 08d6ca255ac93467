package timeline

import (
	"slices"

	"github.com/wesm/sessiontree/internal/timeutil"
)

// Sort stable-sorts events by timestamp ascending, then sorts every
// node's children the same way. Invalid timestamps go last.
func Sort(events []*Event) {
	slices.SortStableFunc(events, compareEvents)
	for _, ev := range events {
		Sort(ev.Children)
	}
}

func compareEvents(a, b *Event) int {
	return timeutil.Compare(a.Timestamp, b.Timestamp)
}
