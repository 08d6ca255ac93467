package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/wesm/sessiontree/internal/config"
	"github.com/wesm/sessiontree/internal/server"
	"github.com/wesm/sessiontree/internal/watch"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	watcherDebounce = 300 * time.Millisecond
	shutdownTimeout = 5 * time.Second
	maxLogFileBytes = 10 << 20
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "export":
			runExport(os.Args[2:])
			return
		case "tree":
			runTree(os.Args[2:])
			return
		case "stats":
			runStats(os.Args[2:])
			return
		case "watch":
			runWatch(os.Args[2:])
			return
		case "serve":
			runServe(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("sessiontree %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`sessiontree %s - timeline viewer for Claude Code transcripts

Rebuilds the conversation tree of a Claude Code JSONL transcript,
tags every event as running locally or in the cloud, and exports
the result as markdown, JSONL, or a standalone HTML page.

Usage:
  sessiontree [flags]                  Start the API server (default command)
  sessiontree serve [flags]            Start the API server (explicit)
  sessiontree export [flags] <file>... Export transcripts
  sessiontree tree [flags] <file>      Print the event tree as markdown
  sessiontree stats [flags] <file>     Print transcript statistics
  sessiontree watch [flags] <file>     Re-export a transcript whenever it changes
  sessiontree version                  Show version information
  sessiontree help                     Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8090)
  -watch string       Transcript to serve live under /api/v1/live

Export flags:
  -format string      text, jsonl, or document (default from config, "text")
  -metadata           Include model and session metadata
  -q string           Keep only events matching this text
  -o string           Output file, directory, or "-" for stdout

Watch flags:
  -format, -metadata, -q as for export
  -o string           Output file (default: derived name in the current directory)

Environment variables:
  SESSIONTREE_DATA_DIR      Data directory (config, logs)
  SESSIONTREE_LOCAL_TOOLS   Extra tool names that run locally (comma-separated)
  SESSIONTREE_REMOTE_TOOLS  Extra tool names that run in the cloud (comma-separated)

Configuration is read from ~/.sessiontree/config.json by default.
`, version)
}

type serveConfig struct {
	config.Config
	WatchPath string
}

func mustLoadConfig(args []string) serveConfig {
	fs := flag.NewFlagSet("sessiontree", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: sessiontree [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	watchPath := fs.String("watch", "",
		"Transcript to serve live under /api/v1/live")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return serveConfig{Config: cfg, WatchPath: *watchPath}
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)
	setupLogFile(cfg.DataDir)

	opts := []server.Option{
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	}
	if cfg.WatchPath != "" {
		live := mustStartLive(cfg.Config, cfg.WatchPath)
		defer live.Stop()
		opts = append(opts, server.WithLive(live))
	}

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg.Config, opts...)
	fmt.Printf("sessiontree %s listening at http://%s:%d\n",
		version, cfg.Host, cfg.Port)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func mustStartLive(cfg config.Config, path string) *watch.Live {
	live, err := watch.NewLive(
		path, newBuilder(cfg), cfg.DecodeOptions(), watcherDebounce,
	)
	if err != nil {
		log.Fatalf("watching %s: %v", path, err)
	}
	live.Start()
	return live
}

// setupLogFile sends log output to stderr and to debug.log in the
// data dir. A log file that has grown past the limit is emptied
// first.
func setupLogFile(dataDir string) {
	path := filepath.Join(dataDir, "debug.log")
	truncateLogFile(path, maxLogFileBytes)

	f, err := os.OpenFile(
		path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
	)
	if err != nil {
		log.Printf("warning: cannot open log file: %v", err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
}

// truncateLogFile empties path when it is a regular file larger
// than limit. Symlinks are left alone.
func truncateLogFile(path string, limit int64) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if info.Size() <= limit {
		return
	}
	if err := os.Truncate(path, 0); err != nil {
		log.Printf("warning: cannot truncate log file: %v", err)
	}
}
