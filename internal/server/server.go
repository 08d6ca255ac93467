package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/wesm/sessiontree/internal/config"
	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/timeline"
	"github.com/wesm/sessiontree/internal/watch"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP server for the timeline API. It keeps no
// state between requests except the optional live view.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	tools   *parser.ToolLocations
	builder *timeline.Builder
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo
	live    *watch.Live
	now     func() time.Time

	// heartbeat is the keepalive period of live event streams.
	heartbeat time.Duration

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server.
func New(cfg config.Config, opts ...Option) *Server {
	tools := cfg.Tools()
	s := &Server{
		cfg:       cfg,
		tools:     tools,
		builder:   timeline.NewBuilder(parser.NewClassifier(tools)),
		mux:       http.NewServeMux(),
		now:       time.Now,
		heartbeat: heartbeatInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithLive serves the given live view under /api/v1/live.
func WithLive(l *watch.Live) Option {
	return func(s *Server) { s.live = l }
}

// WithClock overrides the clock used to stamp export filenames.
// Nil is ignored.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func (s *Server) routes() {
	s.mux.Handle("POST /api/v1/timeline", s.withTimeout(s.handleTimeline))
	// Export: Do not use timeout handler to support large downloads and avoid buffering.
	s.mux.HandleFunc("POST /api/v1/export", s.handleExport)
	s.mux.Handle("GET /api/v1/tools", s.withTimeout(s.handleTools))
	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))

	s.mux.Handle("GET /api/v1/live", s.withTimeout(s.handleLive))
	// SSE: Do not use timeout, as this is a long-lived connection.
	s.mux.HandleFunc("GET /api/v1/live/events", s.handleLiveEvents)
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleTools(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.tools.Table())
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set(
				"Access-Control-Allow-Origin", "*",
			)
			w.Header().Set(
				"Access-Control-Allow-Methods",
				"GET, POST, OPTIONS",
			)
			w.Header().Set(
				"Access-Control-Allow-Headers",
				"Content-Type",
			)
			w.Header().Set(
				"Access-Control-Expose-Headers",
				"Content-Disposition",
			)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
