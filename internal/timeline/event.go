// Package timeline reconstructs classified transcript records into
// an ordered forest of events, and provides the tree operations
// (sort, filter, walk, stats) consumed by exporters and the server.
package timeline

import (
	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/timeutil"
)

// Event is one classified, tree-positioned transcript record.
// Children are owned exclusively by their parent.
type Event struct {
	ID         string           `json:"id"`
	UUID       string           `json:"uuid"`
	ParentUUID *string          `json:"parentUuid"`
	Timestamp  timeutil.Instant `json:"timestamp"`
	Kind       parser.EventKind `json:"type"`
	Role       parser.RoleType  `json:"role,omitempty"`
	Content    parser.Content   `json:"content"`
	Metadata   parser.Metadata  `json:"metadata"`
	IsLocal    bool             `json:"isLocal"`
	Children   []*Event         `json:"children"`
}

// Text returns the flattened searchable text of the event's
// content.
func (e *Event) Text() string {
	return parser.FlattenText(e.Content)
}

// Parent returns the raw parent uuid, or "" for none.
func (e *Event) Parent() string {
	if e.ParentUUID == nil {
		return ""
	}
	return *e.ParentUUID
}

// shallowCopy returns a copy of e with an empty children slice.
func (e *Event) shallowCopy() *Event {
	c := *e
	c.Children = []*Event{}
	return &c
}
