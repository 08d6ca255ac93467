package watch

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/timeline"
)

// Snapshot is one build of a watched transcript. Exactly one of
// Ingestion and Err is set.
type Snapshot struct {
	Path      string
	Seq       uint64
	LoadedAt  time.Time
	Ingestion *timeline.Ingestion
	Err       error
}

// Live keeps the latest forest of a single transcript file,
// rebuilding it whenever the file changes and handing each new
// snapshot to subscribers.
type Live struct {
	path    string
	builder *timeline.Builder
	opts    parser.DecodeOptions
	watcher *Watcher
	now     func() time.Time

	reloadMu sync.Mutex

	mu   sync.Mutex
	seq  uint64
	snap *Snapshot
	subs map[chan *Snapshot]struct{}
}

// NewLive prepares a live view of path. Nothing is read until
// Start. A nil builder uses the default classifier.
func NewLive(
	path string,
	b *timeline.Builder,
	opts parser.DecodeOptions,
	debounce time.Duration,
) (*Live, error) {
	if b == nil {
		b = timeline.NewBuilder(nil)
	}
	l := &Live{
		path:    path,
		builder: b,
		opts:    opts,
		now:     time.Now,
		subs:    make(map[chan *Snapshot]struct{}),
	}
	w, err := NewWatcher(debounce, func([]string) { l.Reload() })
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Stop()
		return nil, err
	}
	l.watcher = w
	return l, nil
}

// Path returns the watched file.
func (l *Live) Path() string { return l.path }

// Start loads the file once and begins watching it.
func (l *Live) Start() {
	l.Reload()
	l.watcher.Start()
}

// Stop ends watching. Subscriptions stay open but receive nothing
// further.
func (l *Live) Stop() {
	l.watcher.Stop()
}

// Snapshot returns the most recent build, or nil before Start.
func (l *Live) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Subscribe returns a channel that receives each new snapshot. A
// slow reader only ever sees the latest one. The returned func
// cancels the subscription.
func (l *Live) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()
	return ch, func() {
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
	}
}

// Reload rebuilds the forest from disk and publishes the result.
func (l *Live) Reload() *Snapshot {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()

	ing, err := l.load()
	if err != nil {
		log.Printf("watch: reloading %s: %v", l.path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	snap := &Snapshot{
		Path:      l.path,
		Seq:       l.seq,
		LoadedAt:  l.now(),
		Ingestion: ing,
		Err:       err,
	}
	l.snap = snap
	for ch := range l.subs {
		// Replace an unread snapshot rather than block.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	return snap
}

func (l *Live) load() (*timeline.Ingestion, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ing, err := l.builder.Ingest(f, l.opts)
	if err != nil {
		return nil, fmt.Errorf("ingesting: %w", err)
	}
	return ing, nil
}
