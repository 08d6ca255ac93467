package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wesm/sessiontree/internal/config"
	"github.com/wesm/sessiontree/internal/export"
	"github.com/wesm/sessiontree/internal/timeline"
)

// ExportConfig holds parsed CLI options for the export and watch
// commands.
type ExportConfig struct {
	Format   export.Format
	Metadata bool
	Query    string
	Output   string
	Inputs   []string
}

// registerExportFlags adds the flags shared by export and watch.
func registerExportFlags(
	fs *flag.FlagSet, defaultFormat string,
) (format *string, metadata *bool, query *string, output *string) {
	format = fs.String("format", defaultFormat,
		"Export format: text, jsonl, or document")
	metadata = fs.Bool("metadata", false,
		"Include model and session metadata")
	query = fs.String("q", "",
		"Keep only events matching this text, with their ancestors")
	output = fs.String("o", "",
		`Output file or directory, "-" for stdout`)
	return format, metadata, query, output
}

func parseExportFlags(
	args []string, defaultFormat string,
) (ExportConfig, error) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format, metadata, query, output := registerExportFlags(fs, defaultFormat)
	if err := fs.Parse(args); err != nil {
		return ExportConfig{}, err
	}

	f, err := export.ParseFormat(*format)
	if err != nil {
		return ExportConfig{}, err
	}
	cfg := ExportConfig{
		Format:   f,
		Metadata: *metadata,
		Query:    *query,
		Output:   *output,
		Inputs:   fs.Args(),
	}

	if len(cfg.Inputs) == 0 {
		return ExportConfig{}, errors.New("at least one input file is required")
	}
	if len(cfg.Inputs) > 1 && cfg.Output == stdioName {
		return ExportConfig{}, errors.New(
			"cannot write several exports to stdout",
		)
	}
	return cfg, nil
}

func runExport(args []string) {
	base, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg, err := parseExportFlags(args, base.ExportFormat)
	if err != nil {
		fatal("export: %v", err)
	}
	if err := exportAll(base, cfg, time.Now(), os.Stdout); err != nil {
		fatal("export: %v", err)
	}
}

// exportAll exports every input concurrently. All inputs are
// attempted; the first failure is returned. Inputs that would write
// to the same file are rejected before anything is exported.
func exportAll(
	base config.Config, cfg ExportConfig, now time.Time, stdout io.Writer,
) error {
	b := newBuilder(base)
	opts := export.Options{
		Format:          cfg.Format,
		IncludeMetadata: cfg.Metadata,
		Now:             now,
		Location:        time.Local,
	}

	derived := export.Filename(cfg.Format, now.In(opts.Location))
	dests, err := outputPaths(cfg, derived)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, in := range cfg.Inputs {
		dest := dests[i]
		g.Go(func() error {
			res, err := exportFile(b, base, in, cfg.Query, opts)
			if err != nil {
				log.Printf("export: %v", err)
				return err
			}
			if dest == stdioName {
				_, err := stdout.Write(res.Data)
				return err
			}
			if err := writeFileAtomic(dest, res.Data); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s -> %s\n", in, dest)
			return nil
		})
	}
	return g.Wait()
}

func exportFile(
	b *timeline.Builder,
	base config.Config,
	path, query string,
	opts export.Options,
) (*export.Result, error) {
	ing, err := ingestFile(b, base, path)
	if err != nil {
		return nil, err
	}
	return export.Export(timeline.Filter(ing.Forest, query), opts)
}

// outputPaths resolves the destination of every input and fails
// when two inputs resolve to the same file.
func outputPaths(cfg ExportConfig, derived string) ([]string, error) {
	dests := make([]string, len(cfg.Inputs))
	owner := make(map[string]string, len(cfg.Inputs))
	for i, in := range cfg.Inputs {
		dest := outputPath(cfg, in, derived)
		dests[i] = dest
		if dest == stdioName {
			continue
		}
		key := filepath.Clean(dest)
		if prev, ok := owner[key]; ok {
			return nil, fmt.Errorf(
				"inputs %s and %s would both be written to %s",
				prev, in, dest,
			)
		}
		owner[key] = in
	}
	return dests, nil
}

// outputPath decides where one export goes. With several inputs
// -o names a directory and each output is prefixed with its input
// name. With one input -o may be a file, an existing directory,
// or "-".
func outputPath(cfg ExportConfig, input, derived string) string {
	multi := len(cfg.Inputs) > 1
	if input == stdioName && cfg.Output == "" {
		return stdioName
	}
	if multi {
		name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) +
			"_" + derived
		return filepath.Join(cfg.Output, name)
	}

	switch cfg.Output {
	case "":
		return derived
	case stdioName:
		return stdioName
	}
	if info, err := os.Stat(cfg.Output); err == nil && info.IsDir() {
		return filepath.Join(cfg.Output, derived)
	}
	return cfg.Output
}

// writeFileAtomic writes data to a temp file beside path and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sessiontree-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
