package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/wesm/sessiontree/internal/config"
	"github.com/wesm/sessiontree/internal/export"
	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/timeline"
)

func runTree(args []string) {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	query := fs.String("q", "", "Keep only events matching this text")
	metadata := fs.Bool("metadata", false, "Show model names")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}
	if fs.NArg() != 1 {
		fatal("usage: sessiontree tree [-q text] [-metadata] <file>")
	}

	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := printTree(cfg, fs.Arg(0), *query, *metadata, os.Stdout); err != nil {
		fatal("tree: %v", err)
	}
}

// printTree writes the markdown rendering of a transcript to w.
func printTree(
	cfg config.Config, path, query string, metadata bool, w io.Writer,
) error {
	ing, err := ingestFile(newBuilder(cfg), cfg, path)
	if err != nil {
		return err
	}
	res, err := export.Export(timeline.Filter(ing.Forest, query), export.Options{
		Format:          export.FormatText,
		IncludeMetadata: metadata,
		Now:             time.Now(),
		Location:        time.Local,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(res.Data)
	return err
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print statistics as JSON")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}
	if fs.NArg() != 1 {
		fatal("usage: sessiontree stats [-json] <file>")
	}

	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := printStats(cfg, fs.Arg(0), *asJSON, os.Stdout); err != nil {
		fatal("stats: %v", err)
	}
}

type statsReport struct {
	File         string `json:"file"`
	Records      int    `json:"records"`
	SkippedLines int    `json:"skipped_lines"`
	timeline.Stats
}

func printStats(
	cfg config.Config, path string, asJSON bool, w io.Writer,
) error {
	ing, err := ingestFile(newBuilder(cfg), cfg, path)
	if err != nil {
		return err
	}
	report := statsReport{
		File:         path,
		Records:      ing.Records,
		SkippedLines: len(ing.DecodeErrors),
		Stats:        timeline.ComputeStats(ing.Forest),
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File:               %s\n", report.File)
	fmt.Fprintf(&b, "Records:            %d\n", report.Records)
	fmt.Fprintf(&b, "Skipped lines:      %d\n", report.SkippedLines)
	fmt.Fprintf(&b, "Events:             %d\n", report.Total)
	fmt.Fprintf(&b, "User messages:      %d\n", report.UserMessages)
	fmt.Fprintf(&b, "Assistant messages: %d\n", report.AssistantMessages)
	fmt.Fprintf(&b, "Tool calls:         %d\n", report.ToolCalls)
	fmt.Fprintf(&b, "Tool errors:        %d\n", report.ToolErrors)
	fmt.Fprintf(&b, "Local / cloud:      %d / %d\n", report.Local, report.Remote)
	fmt.Fprintf(&b, "Models:             %s\n", joinOrNone(report.Models))
	fmt.Fprintf(&b, "Sessions:           %s\n", joinOrNone(report.Sessions))
	fmt.Fprintf(&b, "Versions:           %s\n", joinOrNone(report.Versions))
	b.WriteString("By kind:\n")
	for _, kind := range parser.Kinds {
		if n := report.ByKind[kind]; n > 0 {
			fmt.Fprintf(&b, "  %-18s %d\n", kind, n)
		}
	}
	_, err = io.WriteString(w, b.String())
	return err
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "(none)"
	}
	return strings.Join(list, ", ")
}
