package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/wesm/sessiontree/internal/testjsonl"
)

type transcriptSpec struct {
	project string
	suffix  string
	turns   int
}

var specs = []transcriptSpec{
	{"project-alpha", "small-2", 2},
	{"project-alpha", "small-5", 5},
	{"project-beta", "mixed-content", 0},
	{"project-beta", "medium-100", 100},
	{"project-gamma", "large-1500", 1500},
	{"project-delta", "xlarge-20000", 20000},
}

func main() {
	out := flag.String("out", "", "output directory")
	flag.Parse()
	if *out == "" {
		fmt.Fprintln(os.Stderr, "usage: testfixture -out <dir>")
		os.Exit(1)
	}

	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	for i, spec := range specs {
		start := base.Add(time.Duration(i) * 24 * time.Hour)
		var b *testjsonl.SessionBuilder
		if spec.suffix == "mixed-content" {
			b = mixedContentTranscript(start)
		} else {
			b = generateTranscript(spec, start)
		}

		dir := filepath.Join(*out, spec.project)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("creating %s: %v", dir, err)
		}
		path := filepath.Join(dir, "test-session-"+spec.suffix+".jsonl")
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			log.Fatalf("writing fixture %s: %v", spec.suffix, err)
		}
		fmt.Printf("  %s: %d lines\n", path, b.Len())
	}

	fmt.Printf("Fixtures written to %s\n", *out)
}

func stamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// generateTranscript writes turns of user prompt, Bash call,
// Bash result, and assistant reply, each parented on the previous
// line.
func generateTranscript(
	spec transcriptSpec, start time.Time,
) *testjsonl.SessionBuilder {
	b := testjsonl.NewSessionBuilder()
	parent := ""
	for i := range spec.turns {
		ts := start.Add(time.Duration(i) * time.Minute)
		user := fmt.Sprintf("%s-u%d", spec.suffix, i)
		req := fmt.Sprintf("%s-req%d", spec.suffix, i)
		res := fmt.Sprintf("%s-res%d", spec.suffix, i)
		reply := fmt.Sprintf("%s-a%d", spec.suffix, i)
		toolID := fmt.Sprintf("toolu_%06d", i)

		b.AddRaw(testjsonl.WithFields(
			testjsonl.UserJSON(user, parent, stamp(ts), fmt.Sprintf(
				"User message %d of %d in %s. "+
					"Please list the files and explain them.",
				i, spec.turns, spec.project,
			)),
			map[string]any{
				"sessionId": "test-session-" + spec.suffix,
				"cwd":       "/work/" + spec.project,
				"version":   "1.0.40",
			},
		))
		b.AddToolUse(stamp(ts.Add(5*time.Second)), req, user, toolID, "Bash")
		b.AddToolResult(stamp(ts.Add(6*time.Second)), res, req, toolID,
			fmt.Sprintf("main.go\nfile_%d.go\ngo.mod", i))
		b.AddRaw(testjsonl.AssistantJSON(
			reply, res, stamp(ts.Add(10*time.Second)),
			fmt.Sprintf("Assistant response %d of %d. "+
				"There are three files in the directory.", i, spec.turns),
			"claude-sonnet-4",
		))
		parent = reply
	}
	return b
}

// mixedContentTranscript covers every event kind, each tool
// location, a summary, and one undecodable line.
func mixedContentTranscript(start time.Time) *testjsonl.SessionBuilder {
	ts := func(sec int) string {
		return stamp(start.Add(time.Duration(sec) * time.Second))
	}
	return testjsonl.NewSessionBuilder().
		AddSummary(ts(0), "m-sum", "Reviewing the web server").
		AddRaw(testjsonl.SystemJSON("system", "m-sys", "", ts(1),
			"Session resumed")).
		AddUser(ts(2), "m-u1", "", "Read main.ts and check the docs").
		AddRaw(testjsonl.ToolUseJSON("m-read", "m-u1", ts(3), "toolu_r",
			"Read", map[string]any{"file_path": "/src/main.ts"})).
		AddToolResult(ts(4), "m-read-res", "m-read", "toolu_r",
			"const app = express();").
		AddRaw(testjsonl.ToolUseJSON("m-fetch", "m-read-res", ts(5), "toolu_f",
			"WebFetch", map[string]any{"url": "https://expressjs.com"})).
		AddRaw(testjsonl.ToolResultJSON("m-fetch-res", "m-fetch", ts(6),
			"toolu_f", "Express 5 routing guide", false)).
		AddRaw(testjsonl.ToolUseJSON("m-nav", "m-fetch-res", ts(7), "toolu_n",
			"mcp__playwright__browser_navigate",
			map[string]any{"url": "http://localhost:3000"})).
		AddRaw(testjsonl.ToolResultJSON("m-nav-res", "m-nav", ts(8),
			"toolu_n", "page not found", true)).
		AddRaw(testjsonl.MetaJSON("m-meta", "m-nav-res", ts(9),
			"Caveat: local command output follows")).
		AddRaw(`{"type":"assistant","uuid":"m-broken",`).
		AddRaw(testjsonl.AssistantJSON("m-a1", "m-nav-res", ts(10),
			"The route is missing; add app.get('/').", "claude-opus-4")).
		AddRaw(testjsonl.WithFields(
			testjsonl.UserJSON("m-u2", "m-a1", "not a timestamp", "Thanks"),
			map[string]any{"gitBranch": "main"},
		))
}
