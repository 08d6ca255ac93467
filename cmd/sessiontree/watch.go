package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wesm/sessiontree/internal/config"
	"github.com/wesm/sessiontree/internal/export"
	"github.com/wesm/sessiontree/internal/timeline"
	"github.com/wesm/sessiontree/internal/watch"
)

func parseWatchFlags(
	args []string, defaultFormat string,
) (ExportConfig, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	format, metadata, query, output := registerExportFlags(fs, defaultFormat)
	if err := fs.Parse(args); err != nil {
		return ExportConfig{}, err
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return ExportConfig{}, err
	}
	if fs.NArg() != 1 {
		return ExportConfig{}, errors.New("exactly one input file is required")
	}
	if fs.Arg(0) == stdioName {
		return ExportConfig{}, errors.New("cannot watch stdin")
	}
	return ExportConfig{
		Format:   f,
		Metadata: *metadata,
		Query:    *query,
		Output:   *output,
		Inputs:   fs.Args(),
	}, nil
}

func runWatch(args []string) {
	base, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg, err := parseWatchFlags(args, base.ExportFormat)
	if err != nil {
		fatal("watch: %v", err)
	}

	live, err := watch.NewLive(
		cfg.Inputs[0], newBuilder(base), base.DecodeOptions(),
		watcherDebounce,
	)
	if err != nil {
		fatal("watch: %v", err)
	}
	updates, cancel := live.Subscribe()
	defer cancel()
	live.Start()
	defer live.Stop()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", cfg.Inputs[0])
	watchLoop(ctx, cfg, updates, time.Now)
}

// watchLoop re-exports every snapshot until ctx is done. The
// output name is fixed by the first export so that later ones
// overwrite it.
func watchLoop(
	ctx context.Context,
	cfg ExportConfig,
	updates <-chan *watch.Snapshot,
	now func() time.Time,
) {
	var dest string
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if snap.Err != nil {
				log.Printf("watch: %v", snap.Err)
				continue
			}
			res, err := export.Export(
				timeline.Filter(snap.Ingestion.Forest, cfg.Query),
				export.Options{
					Format:          cfg.Format,
					IncludeMetadata: cfg.Metadata,
					Now:             now(),
					Location:        time.Local,
				},
			)
			if err != nil {
				log.Printf("watch: export: %v", err)
				continue
			}
			if dest == "" {
				dest = outputPath(cfg, cfg.Inputs[0], res.Filename)
			}
			if dest == stdioName {
				_, _ = os.Stdout.Write(res.Data)
				continue
			}
			if err := writeFileAtomic(dest, res.Data); err != nil {
				log.Printf("watch: %v", err)
				continue
			}
			fmt.Fprintf(os.Stderr, "[%d] %d events -> %s\n",
				snap.Seq, timeline.Count(snap.Ingestion.Forest), dest)
		}
	}
}
