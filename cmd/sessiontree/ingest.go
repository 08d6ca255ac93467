package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/wesm/sessiontree/internal/config"
	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/timeline"
)

// stdioName as an input reads stdin and as an output writes stdout.
const stdioName = "-"

func newBuilder(cfg config.Config) *timeline.Builder {
	return timeline.NewBuilder(parser.NewClassifier(cfg.Tools()))
}

// ingestFile decodes and builds one transcript. Skipped lines are
// summarized on the log; the per-line details were logged by the
// decoder.
func ingestFile(
	b *timeline.Builder, cfg config.Config, path string,
) (*timeline.Ingestion, error) {
	var r io.Reader = os.Stdin
	if path != stdioName {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	ing, err := b.Ingest(r, cfg.DecodeOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if n := len(ing.DecodeErrors); n > 0 {
		log.Printf("%s: skipped %d undecodable line(s)", path, n)
	}
	return ing, nil
}
