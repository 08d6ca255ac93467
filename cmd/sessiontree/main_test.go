package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/sessiontree/internal/config"
	"github.com/wesm/sessiontree/internal/export"
	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/testjsonl"
	"github.com/wesm/sessiontree/internal/timeline"
	"github.com/wesm/sessiontree/internal/watch"
)

const (
	tsZero = "2024-01-01T00:00:00Z"
	tsOne  = "2024-01-01T00:00:01Z"
	tsTwo  = "2024-01-01T00:00:02Z"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func sampleTranscript() string {
	return testjsonl.NewSessionBuilder().
		AddRaw(testjsonl.WithFields(
			testjsonl.UserJSON("u1", "", tsZero, "list the files"),
			map[string]any{"sessionId": "sess-1", "version": "1.0.40"},
		)).
		AddToolUse(tsOne, "req", "u1", "t1", "Bash").
		AddToolResult(tsTwo, "res", "req", "t1", "main.go").
		AddRaw(testjsonl.AssistantJSON("a1", "res", tsTwo, "One file.", "claude-sonnet-4")).
		String()
}

func writeTranscript(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("SESSIONTREE_DATA_DIR", t.TempDir())
	t.Setenv("SESSIONTREE_LOCAL_TOOLS", "")
	t.Setenv("SESSIONTREE_REMOTE_TOOLS", "")
	cfg, err := config.LoadMinimal()
	require.NoError(t, err)
	return cfg
}

func TestMustLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantHost  string
		wantPort  int
		wantWatch string
	}{
		{
			name:     "DefaultArgs",
			args:     []string{},
			wantHost: "127.0.0.1",
			wantPort: 8090,
		},
		{
			name:      "ExplicitFlags",
			args:      []string{"-host", "0.0.0.0", "-port", "9090", "-watch", "s.jsonl"},
			wantHost:  "0.0.0.0",
			wantPort:  9090,
			wantWatch: "s.jsonl",
		},
		{
			name:     "PartialFlags",
			args:     []string{"-port", "3000"},
			wantHost: "127.0.0.1",
			wantPort: 3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "data")
			t.Setenv("SESSIONTREE_DATA_DIR", dir)
			cfg := mustLoadConfig(tt.args)

			if cfg.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", cfg.Host, tt.wantHost)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.wantPort)
			}
			if cfg.WatchPath != tt.wantWatch {
				t.Errorf("WatchPath = %q, want %q", cfg.WatchPath, tt.wantWatch)
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				t.Errorf("data dir not created: %v", err)
			}
		})
	}
}

func TestSetupLogFile(t *testing.T) {
	origOutput := log.Writer()
	t.Cleanup(func() { log.SetOutput(origOutput) })

	dir := t.TempDir()
	setupLogFile(dir)
	log.Print("test-log-message")

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "test-log-message") {
		t.Errorf("log file missing message, got: %q", data)
	}
}

func TestSetupLogFileOpenFailure(t *testing.T) {
	origOutput := log.Writer()
	t.Cleanup(func() { log.SetOutput(origOutput) })

	var buf bytes.Buffer
	log.SetOutput(&buf)

	// A regular file standing in for the data dir cannot hold
	// debug.log.
	notDir := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(notDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	setupLogFile(notDir)

	if !strings.Contains(buf.String(), "cannot open log file") {
		t.Errorf("expected warning about log file, got: %q", buf.String())
	}
}

func TestTruncateLogFile(t *testing.T) {
	dir := t.TempDir()

	big := filepath.Join(dir, "big.log")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("x"), 1024), 0o644))
	truncateLogFile(big, 512)
	info, err := os.Stat(big)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	small := filepath.Join(dir, "small.log")
	require.NoError(t, os.WriteFile(small, []byte("small"), 0o644))
	truncateLogFile(small, 1024)
	data, err := os.ReadFile(small)
	require.NoError(t, err)
	assert.Equal(t, "small", string(data))

	// Missing files are ignored.
	truncateLogFile(filepath.Join(dir, "missing", "log.txt"), 1024)
}

func TestTruncateLogFileSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.log")
	link := filepath.Join(dir, "link.log")

	require.NoError(t, os.WriteFile(target, bytes.Repeat([]byte("x"), 1024), 0o644))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	truncateLogFile(link, 512)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Len(t, data, 1024, "symlink target was truncated")
}

func TestParseExportFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    ExportConfig
		wantErr string
	}{
		{
			name: "Defaults",
			args: []string{"a.jsonl"},
			want: ExportConfig{Format: export.FormatText, Inputs: []string{"a.jsonl"}},
		},
		{
			name: "AllFlags",
			args: []string{"-format", "HTML", "-metadata", "-q", "bash", "-o", "out", "a.jsonl", "b.jsonl"},
			want: ExportConfig{
				Format:   export.FormatDocument,
				Metadata: true,
				Query:    "bash",
				Output:   "out",
				Inputs:   []string{"a.jsonl", "b.jsonl"},
			},
		},
		{
			name:    "NoInputs",
			args:    []string{"-format", "jsonl"},
			wantErr: "at least one input file is required",
		},
		{
			name:    "UnknownFormat",
			args:    []string{"-format", "pdf", "a.jsonl"},
			wantErr: "unknown export format",
		},
		{
			name:    "SeveralToStdout",
			args:    []string{"-o", "-", "a.jsonl", "b.jsonl"},
			wantErr: "cannot write several exports to stdout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExportFlags(tt.args, "text")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWatchFlags(t *testing.T) {
	cfg, err := parseWatchFlags([]string{"-format", "jsonl", "s.jsonl"}, "text")
	require.NoError(t, err)
	assert.Equal(t, export.FormatJSONL, cfg.Format)
	assert.Equal(t, []string{"s.jsonl"}, cfg.Inputs)

	_, err = parseWatchFlags([]string{"a.jsonl", "b.jsonl"}, "text")
	assert.Error(t, err)
	_, err = parseWatchFlags([]string{"-"}, "text")
	assert.EqualError(t, err, "cannot watch stdin")
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	const derived = "timeline_export_2024-03-09_14-05-07.md"

	tests := []struct {
		name   string
		output string
		inputs []string
		input  string
		want   string
	}{
		{"SingleDefault", "", []string{"a.jsonl"}, "a.jsonl", derived},
		{"SingleStdout", "-", []string{"a.jsonl"}, "a.jsonl", "-"},
		{"SingleFile", "out.md", []string{"a.jsonl"}, "a.jsonl", "out.md"},
		{"SingleDir", dir, []string{"a.jsonl"}, "a.jsonl", filepath.Join(dir, derived)},
		{"StdinDefault", "", []string{"-"}, "-", "-"},
		{
			"Multi", dir, []string{"x/a.jsonl", "b.jsonl"}, "x/a.jsonl",
			filepath.Join(dir, "a_"+derived),
		},
		{
			"MultiCurrentDir", "", []string{"a.jsonl", "b.jsonl"}, "b.jsonl",
			"b_" + derived,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ExportConfig{Output: tt.output, Inputs: tt.inputs}
			assert.Equal(t, tt.want, outputPath(cfg, tt.input, derived))
		})
	}
}

func TestExportAllMultipleInputs(t *testing.T) {
	base := testConfig(t)
	in := t.TempDir()
	out := t.TempDir()
	a := writeTranscript(t, in, "alpha.jsonl", sampleTranscript())
	b := writeTranscript(t, in, "beta.jsonl",
		testjsonl.UserJSON("u9", "", tsZero, "only me")+"\n")

	cfg := ExportConfig{
		Format: export.FormatJSONL,
		Output: out,
		Inputs: []string{a, b},
	}
	require.NoError(t, exportAll(base, cfg, fixedNow, io.Discard))

	alpha, err := os.ReadFile(filepath.Join(out, "alpha_timeline_export_2024-03-09_14-05-07.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(alpha), "\n"))

	beta, err := os.ReadFile(filepath.Join(out, "beta_timeline_export_2024-03-09_14-05-07.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(beta), `"uuid":"u9"`)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files should not be left behind")
}

func TestExportAllRejectsCollidingOutputs(t *testing.T) {
	base := testConfig(t)
	in := t.TempDir()
	out := t.TempDir()
	a := writeTranscript(t, filepath.Join(in, "a"), "s.jsonl", sampleTranscript())
	b := writeTranscript(t, filepath.Join(in, "b"), "s.jsonl", sampleTranscript())

	cfg := ExportConfig{
		Format: export.FormatJSONL,
		Output: out,
		Inputs: []string{a, b},
	}
	err := exportAll(base, cfg, fixedNow, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would both be written to")
	assert.Contains(t, err.Error(), "s_timeline_export_2024-03-09_14-05-07.jsonl")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is exported when outputs collide")
}

func TestOutputPathsAllowsStdout(t *testing.T) {
	cfg := ExportConfig{Output: "", Inputs: []string{"-"}}
	dests, err := outputPaths(cfg, "x.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"-"}, dests)
}

func TestExportAllStdoutWithQuery(t *testing.T) {
	base := testConfig(t)
	path := writeTranscript(t, t.TempDir(), "s.jsonl", sampleTranscript())

	var buf bytes.Buffer
	cfg := ExportConfig{
		Format: export.FormatJSONL,
		Query:  "main.go",
		Output: "-",
		Inputs: []string{path},
	}
	require.NoError(t, exportAll(base, cfg, fixedNow, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"uuid":"req"`)
	assert.Contains(t, lines[1], `"uuid":"res"`)
}

func TestExportAllReportsFailures(t *testing.T) {
	base := testConfig(t)
	dir := t.TempDir()
	good := writeTranscript(t, dir, "good.jsonl", sampleTranscript())
	binary := writeTranscript(t, dir, "bin.jsonl", "\x00\x01")
	missing := filepath.Join(dir, "missing.jsonl")

	origOutput := log.Writer()
	t.Cleanup(func() { log.SetOutput(origOutput) })
	log.SetOutput(io.Discard)

	cfg := ExportConfig{
		Format: export.FormatText,
		Output: t.TempDir(),
		Inputs: []string{good, binary, missing},
	}
	err := exportAll(base, cfg, fixedNow, io.Discard)
	require.Error(t, err)

	// The good input is still exported.
	_, statErr := os.Stat(filepath.Join(cfg.Output, "good_timeline_export_2024-03-09_14-05-07.md"))
	assert.NoError(t, statErr)
}

func TestPrintTree(t *testing.T) {
	cfg := testConfig(t)
	path := writeTranscript(t, t.TempDir(), "s.jsonl", sampleTranscript())

	var buf bytes.Buffer
	require.NoError(t, printTree(cfg, path, "", true, &buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Timeline Export\n"))
	assert.Contains(t, out, "  - **[")
	assert.Contains(t, out, "*Model: claude-sonnet-4*")

	buf.Reset()
	require.NoError(t, printTree(cfg, path, "nothing matches", false, &buf))
	assert.Equal(t, "# Timeline Export\n", buf.String())
}

func TestPrintStats(t *testing.T) {
	cfg := testConfig(t)
	path := writeTranscript(t, t.TempDir(), "s.jsonl",
		sampleTranscript()+"garbage\n")

	origOutput := log.Writer()
	t.Cleanup(func() { log.SetOutput(origOutput) })
	log.SetOutput(io.Discard)

	var buf bytes.Buffer
	require.NoError(t, printStats(cfg, path, true, &buf))

	var report struct {
		File         string   `json:"file"`
		Records      int      `json:"records"`
		SkippedLines int      `json:"skipped_lines"`
		Total        int      `json:"total_events"`
		ToolCalls    int      `json:"tool_calls"`
		Sessions     []string `json:"sessions"`
		Versions     []string `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, path, report.File)
	assert.Equal(t, 4, report.Records)
	assert.Equal(t, 1, report.SkippedLines)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.ToolCalls)
	assert.Equal(t, []string{"sess-1"}, report.Sessions)
	assert.Equal(t, []string{"1.0.40"}, report.Versions)

	buf.Reset()
	require.NoError(t, printStats(cfg, path, false, &buf))
	assert.Contains(t, buf.String(), "Tool calls:         2\n")
	assert.Contains(t, buf.String(), "Local / cloud:      3 / 1\n")
	assert.Contains(t, buf.String(), "Models:             claude-sonnet-4\n")
	assert.Contains(t, buf.String(), "Tool errors:        0\n")
	assert.Contains(t, buf.String(),
		"By kind:\n  user-message       1\n  assistant-message  1\n"+
			"  tool-request       1\n  tool-result        1\n")
}

func TestWatchLoopRewritesOutput(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "live.jsonl")
	cfg := ExportConfig{
		Format: export.FormatJSONL,
		Output: dest,
		Inputs: []string{"session.jsonl"},
	}

	origOutput := log.Writer()
	t.Cleanup(func() { log.SetOutput(origOutput) })
	log.SetOutput(io.Discard)

	updates := make(chan *watch.Snapshot)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(ctx, cfg, updates, func() time.Time { return fixedNow })
	}()

	one := buildIngestion(t, testjsonl.UserJSON("u1", "", tsZero, "hi"))
	two := buildIngestion(t,
		testjsonl.UserJSON("u1", "", tsZero, "hi"),
		testjsonl.UserJSON("u2", "", tsOne, "again"),
	)
	updates <- &watch.Snapshot{Seq: 1, Ingestion: one}
	updates <- &watch.Snapshot{Seq: 2, Err: os.ErrNotExist}
	updates <- &watch.Snapshot{Seq: 3, Ingestion: two}
	cancel()
	<-done

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"uuid":"u2"`)
}

func buildIngestion(t *testing.T, lines ...string) *timeline.Ingestion {
	t.Helper()
	ing, err := timeline.NewBuilder(nil).Ingest(
		strings.NewReader(testjsonl.JoinJSONL(lines...)), parser.DecodeOptions{},
	)
	require.NoError(t, err)
	return ing
}
