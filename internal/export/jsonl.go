package export

import (
	"bytes"
	"encoding/json"
	"log"

	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/timeline"
	"github.com/wesm/sessiontree/internal/timeutil"
)

// Record is one line of a JSONL export. Metadata is present only
// when the export asked for it.
type Record struct {
	UUID       string           `json:"uuid"`
	ParentUUID *string          `json:"parentUuid"`
	Timestamp  timeutil.Instant `json:"timestamp"`
	Type       parser.EventKind `json:"type"`
	Role       parser.RoleType  `json:"role,omitempty"`
	Content    parser.Content   `json:"content"`
	Metadata   *parser.Metadata `json:"metadata,omitempty"`
	IsLocal    bool             `json:"isLocal"`
}

type jsonlRenderer struct {
	opts Options
	buf  bytes.Buffer
	enc  *json.Encoder
}

func newJSONLRenderer(_ []*timeline.Event, opts Options) renderer {
	r := &jsonlRenderer{opts: opts}
	r.enc = json.NewEncoder(&r.buf)
	r.enc.SetEscapeHTML(false)
	return r
}

func (r *jsonlRenderer) node(ev *timeline.Event, _ int) {
	rec := Record{
		UUID:       ev.UUID,
		ParentUUID: ev.ParentUUID,
		Timestamp:  ev.Timestamp,
		Type:       ev.Kind,
		Role:       ev.Role,
		Content:    ev.Content,
		IsLocal:    ev.IsLocal,
	}
	if r.opts.IncludeMetadata {
		md := ev.Metadata
		rec.Metadata = &md
	}

	// The encoder writes nothing when marshaling fails.
	if err := r.enc.Encode(rec); err != nil {
		log.Printf("export: event %s: %v; writing empty content", ev.UUID, err)
		rec.Content = parser.Content{}
		if err := r.enc.Encode(rec); err != nil {
			log.Printf("export: event %s: %v; skipped", ev.UUID, err)
		}
	}
}

func (r *jsonlRenderer) finish() ([]byte, error) {
	return r.buf.Bytes(), nil
}
