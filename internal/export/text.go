package export

import (
	"strings"

	"github.com/wesm/sessiontree/internal/timeline"
	"github.com/wesm/sessiontree/internal/timeutil"
)

const (
	textExcerptLen  = 200
	textTimeLayout  = "2006-01-02 15:04:05.000"
	invalidDateText = "invalid date"
)

type textRenderer struct {
	opts  Options
	lines []string
}

func newTextRenderer(_ []*timeline.Event, opts Options) renderer {
	return &textRenderer{
		opts:  opts,
		lines: []string{"# Timeline Export", ""},
	}
}

func (r *textRenderer) node(ev *timeline.Event, depth int) {
	indent := strings.Repeat("  ", depth)
	r.lines = append(r.lines,
		indent+"- **["+r.timestamp(ev.Timestamp)+"]** "+
			locationLabel(ev.IsLocal)+" - "+string(ev.Kind))

	if text := ev.Text(); text != "" {
		r.lines = append(r.lines, indent+"  "+excerpt(text, textExcerptLen))
	}
	if r.opts.IncludeMetadata && ev.Metadata.Model != "" {
		r.lines = append(r.lines, indent+"  *Model: "+ev.Metadata.Model+"*")
	}
	r.lines = append(r.lines, "")
}

func (r *textRenderer) timestamp(ts timeutil.Instant) string {
	if !ts.Valid {
		return invalidDateText
	}
	return ts.Time.In(r.opts.loc()).Format(textTimeLayout)
}

func (r *textRenderer) finish() ([]byte, error) {
	return []byte(strings.Join(r.lines, "\n")), nil
}

func locationLabel(local bool) string {
	if local {
		return "📱 Local"
	}
	return "☁️ Cloud"
}
