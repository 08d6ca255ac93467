package timeline

// Walk visits every event depth-first in pre-order, parents before
// their children, passing each event's depth (roots are 0).
func Walk(forest []*Event, fn func(ev *Event, depth int)) {
	walk(forest, 0, fn)
}

func walk(events []*Event, depth int, fn func(*Event, int)) {
	for _, ev := range events {
		fn(ev, depth)
		walk(ev.Children, depth+1, fn)
	}
}

// Flatten returns every event in pre-order.
func Flatten(forest []*Event) []*Event {
	var out []*Event
	Walk(forest, func(ev *Event, _ int) {
		out = append(out, ev)
	})
	return out
}

// Count returns the number of events in the forest, children
// included.
func Count(forest []*Event) int {
	n := 0
	Walk(forest, func(*Event, int) { n++ })
	return n
}

// CountByLocation counts events whose provenance flag equals local.
func CountByLocation(forest []*Event, local bool) int {
	n := 0
	Walk(forest, func(ev *Event, _ int) {
		if ev.IsLocal == local {
			n++
		}
	})
	return n
}
