package timeline

import (
	"fmt"
	"io"

	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/timeutil"
)

// Builder turns decoded records into a sorted forest.
type Builder struct {
	classifier *parser.Classifier
}

// NewBuilder returns a Builder using c. A nil classifier uses the
// default tool table.
func NewBuilder(c *parser.Classifier) *Builder {
	if c == nil {
		c = parser.NewClassifier(nil)
	}
	return &Builder{classifier: c}
}

var defaultBuilder = NewBuilder(nil)

// Build builds a forest with the default classifier.
func Build(records []parser.Record) []*Event {
	return defaultBuilder.Build(records)
}

// noParent marks an event whose parent reference does not resolve.
const noParent = -1

// Build reconstructs the forest. Every record yields exactly one
// event. Only tool results whose parent is a tool request are
// nested; every other event is a root. The passes run in a fixed
// order: provenance must be corrected before nesting.
func (b *Builder) Build(records []parser.Record) []*Event {
	arena := b.materialize(records)
	parents := resolveParents(records)

	for i, ev := range arena {
		if p := parents[i]; p != noParent && nests(ev, arena[p]) {
			ev.IsLocal = arena[p].IsLocal
		}
	}

	roots := []*Event{}
	for i, ev := range arena {
		if p := parents[i]; p != noParent && nests(ev, arena[p]) {
			arena[p].Children = append(arena[p].Children, ev)
			continue
		}
		roots = append(roots, ev)
	}

	Sort(roots)
	return roots
}

func (b *Builder) materialize(records []parser.Record) []*Event {
	arena := make([]*Event, len(records))
	for i, rec := range records {
		c := b.classifier.Classify(rec)
		arena[i] = &Event{
			ID:         fmt.Sprintf("event-%d", i),
			UUID:       rec.UUID,
			ParentUUID: rec.ParentUUID,
			Timestamp:  timeutil.NewInstant(rec.Timestamp),
			Kind:       c.Kind,
			Role:       c.Role,
			Content:    c.Content,
			Metadata:   c.Metadata,
			IsLocal:    c.IsLocal,
			Children:   []*Event{},
		}
	}
	return arena
}

// resolveParents maps each record to the arena index of its parent.
// A uuid resolves to the first record carrying it; empty uuids,
// dangling references, and self references resolve to noParent.
func resolveParents(records []parser.Record) []int {
	first := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.UUID == "" {
			continue
		}
		if _, ok := first[rec.UUID]; !ok {
			first[rec.UUID] = i
		}
	}

	parents := make([]int, len(records))
	for i, rec := range records {
		parents[i] = noParent
		if rec.ParentUUID == nil || *rec.ParentUUID == "" {
			continue
		}
		if j, ok := first[*rec.ParentUUID]; ok && j != i {
			parents[i] = j
		}
	}
	return parents
}

// nests reports whether child belongs under parent. Tool requests
// are never nested themselves, so the forest is at most two levels
// deep and cannot contain a cycle.
func nests(child, parent *Event) bool {
	return child.Kind == parser.KindToolResult &&
		parent.Kind == parser.KindToolRequest
}

// Ingestion is the result of decoding and building one input.
type Ingestion struct {
	Forest       []*Event
	Records      int
	DecodeErrors []parser.DecodeError
}

// Ingest decodes r and builds its forest. Undecodable lines are
// reported in DecodeErrors; an error is returned only when the
// input is not text or cannot be read.
func (b *Builder) Ingest(
	r io.Reader, opts parser.DecodeOptions,
) (*Ingestion, error) {
	res, err := parser.Decode(r, opts)
	if err != nil {
		return nil, err
	}
	return &Ingestion{
		Forest:       b.Build(res.Records),
		Records:      len(res.Records),
		DecodeErrors: res.Errors,
	}, nil
}
