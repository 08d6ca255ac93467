package export

import (
	"bytes"
	"fmt"
	"html/template"
	"log"

	"github.com/wesm/sessiontree/internal/timeline"
)

const (
	documentExcerptLen = 500
	documentTimeLayout = "15:04:05.000"
	documentIndentPx   = 20
)

type documentData struct {
	Title  string
	Total  int
	Local  int
	Remote int
	Events []template.HTML
}

type documentEvent struct {
	Class   string
	Icon    string
	Kind    string
	Time    string
	Indent  int
	Excerpt string
	Model   string
}

var documentTmpl = template.Must(
	template.New("document").Parse(documentTemplateStr))

var documentEventTmpl = template.Must(
	template.New("event").Parse(documentEventTemplateStr))

const documentEventTemplateStr = `
<div class="event {{.Class}}" style="margin-left: {{.Indent}}px">
  <div class="event-card">
    <div class="event-header"><span>{{.Icon}} {{.Kind}}</span><span>{{.Time}}</span></div>
    <div class="event-content">{{.Excerpt}}</div>
    {{- if .Model}}
    <div class="event-metadata">Model: {{.Model}}</div>
    {{- end}}
  </div>
</div>`

const documentTemplateStr = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body {
  font-family: system-ui, -apple-system, sans-serif;
  max-width: 1200px; margin: 0 auto; padding: 20px;
  background: #f5f5f5;
}
.header {
  background: #fff; padding: 20px; border-radius: 8px;
  margin-bottom: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1);
}
.stats { display: flex; gap: 30px; margin-top: 20px; }
.stat { display: flex; flex-direction: column; }
.stat-label { font-size: 0.875rem; color: #666; }
.stat-value { font-size: 1.5rem; font-weight: bold; color: #333; }
.timeline { position: relative; padding: 20px 0; }
.timeline::before {
  content: ''; position: absolute; left: 50%; top: 0; bottom: 0;
  width: 2px; background: #ddd; transform: translateX(-50%);
}
.event { position: relative; margin: 20px 0; display: flex; }
.event.local { justify-content: flex-end; padding-right: 51%; }
.event.cloud { justify-content: flex-start; padding-left: 51%; }
.event-card {
  background: #fff; padding: 15px; border-radius: 8px;
  box-shadow: 0 2px 4px rgba(0,0,0,0.1);
  max-width: 500px; border-left: 4px solid;
}
.event.local .event-card { border-left-color: #0056b3; }
.event.cloud .event-card { border-left-color: #28a745; }
.event-header {
  display: flex; justify-content: space-between; align-items: center;
  margin-bottom: 10px; font-size: 0.875rem; color: #666;
}
.event-content {
  color: #333; line-height: 1.5;
  white-space: pre-wrap; word-break: break-word;
}
.event-metadata { margin-top: 10px; font-size: 0.75rem; color: #999; }
</style>
</head>
<body>
<div class="header">
  <h1>Timeline Export</h1>
  <div class="stats">
    <div class="stat"><span class="stat-label">Total Events</span><span class="stat-value">{{.Total}}</span></div>
    <div class="stat"><span class="stat-label">Local Events</span><span class="stat-value">{{.Local}}</span></div>
    <div class="stat"><span class="stat-label">Cloud Events</span><span class="stat-value">{{.Remote}}</span></div>
  </div>
</div>
<div class="timeline">
{{- range .Events}}{{.}}{{end}}
</div>
</body>
</html>
`

type documentRenderer struct {
	opts Options
	data documentData
}

func newDocumentRenderer(
	forest []*timeline.Event, opts Options,
) renderer {
	return &documentRenderer{
		opts: opts,
		data: documentData{
			Title: "Timeline Export - " +
				opts.now().In(opts.loc()).Format("2006-01-02 15:04:05"),
			Total:  timeline.Count(forest),
			Local:  timeline.CountByLocation(forest, true),
			Remote: timeline.CountByLocation(forest, false),
		},
	}
}

func (r *documentRenderer) node(ev *timeline.Event, depth int) {
	de := documentEvent{
		Class:   "cloud",
		Icon:    "☁️",
		Kind:    string(ev.Kind),
		Time:    invalidDateText,
		Indent:  depth * documentIndentPx,
		Excerpt: excerpt(ev.Text(), documentExcerptLen),
	}
	if ev.IsLocal {
		de.Class, de.Icon = "local", "📱"
	}
	if ev.Timestamp.Valid {
		de.Time = ev.Timestamp.Time.In(r.opts.loc()).Format(documentTimeLayout)
	}
	if r.opts.IncludeMetadata {
		de.Model = ev.Metadata.Model
	}

	var b bytes.Buffer
	if err := documentEventTmpl.Execute(&b, de); err != nil {
		log.Printf("export: event %s: %v", ev.UUID, err)
		b.Reset()
		b.WriteString(`<div class="event">[unrenderable event]</div>`)
	}
	// Safe: produced by an html/template execution or the literal
	// placeholder above.
	r.data.Events = append(r.data.Events, template.HTML(b.String()))
}

func (r *documentRenderer) finish() ([]byte, error) {
	var b bytes.Buffer
	if err := documentTmpl.Execute(&b, r.data); err != nil {
		return nil, fmt.Errorf("executing document template: %w", err)
	}
	return b.Bytes(), nil
}
