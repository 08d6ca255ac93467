// Package export serializes a timeline forest as markdown text,
// re-emitted JSONL, or a self-contained HTML document.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wesm/sessiontree/internal/timeline"
)

// Format names an export serialization.
type Format string

const (
	FormatText     Format = "text"
	FormatJSONL    Format = "jsonl"
	FormatDocument Format = "document"
)

// ErrUnknownFormat is returned for a format name that is not
// supported.
var ErrUnknownFormat = errors.New("unknown export format")

type formatSpec struct {
	ext         string
	contentType string
	newRenderer func(forest []*timeline.Event, opts Options) renderer
}

var formats = map[Format]formatSpec{
	FormatText: {
		ext:         "md",
		contentType: "text/markdown; charset=utf-8",
		newRenderer: newTextRenderer,
	},
	FormatJSONL: {
		ext:         "jsonl",
		contentType: "application/x-ndjson",
		newRenderer: newJSONLRenderer,
	},
	FormatDocument: {
		ext:         "html",
		contentType: "text/html; charset=utf-8",
		newRenderer: newDocumentRenderer,
	},
}

var formatAliases = map[string]Format{
	"markdown": FormatText,
	"md":       FormatText,
	"html":     FormatDocument,
}

// ParseFormat resolves a format name or alias, case-insensitively.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if f, ok := formatAliases[name]; ok {
		return f, nil
	}
	if _, ok := formats[Format(name)]; ok {
		return Format(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	return formats[f].ext
}

// Options controls an export.
type Options struct {
	Format          Format
	IncludeMetadata bool

	// Now stamps the filename and document title. Zero means
	// time.Now.
	Now time.Time

	// Location is the zone used for displayed times. Nil means UTC.
	Location *time.Location
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o Options) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Result is a rendered export ready to be written or served.
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Export renders forest in opts.Format. Individual events that fail
// to render degrade to placeholders; an error is returned only for
// an unknown format or a failure assembling the output.
func Export(forest []*timeline.Event, opts Options) (*Result, error) {
	spec, ok := formats[opts.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	r := spec.newRenderer(forest, opts)
	timeline.Walk(forest, r.node)
	data, err := r.finish()
	if err != nil {
		return nil, fmt.Errorf("rendering %s export: %w", opts.Format, err)
	}

	return &Result{
		Filename:    Filename(opts.Format, opts.now().In(opts.loc())),
		ContentType: spec.contentType,
		Data:        data,
	}, nil
}

// Filename derives the download name for an export generated at t.
func Filename(f Format, t time.Time) string {
	return "timeline_export_" + t.Format("2006-01-02_15-04-05") +
		"." + f.Ext()
}

// renderer builds one export format from a pre-order walk.
type renderer interface {
	node(ev *timeline.Event, depth int)
	finish() ([]byte, error)
}

// excerpt truncates s to max runes, marking a cut with "...".
func excerpt(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
