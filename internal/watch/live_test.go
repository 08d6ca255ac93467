package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/testjsonl"
	"github.com/wesm/sessiontree/internal/timeline"
)

const (
	tsZero = "2024-01-01T00:00:00Z"
	tsOne  = "2024-01-01T00:00:01Z"
	tsTwo  = "2024-01-01T00:00:02Z"
)

func newTestLive(t *testing.T, content string) (*Live, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	l, err := NewLive(path, nil, parser.DecodeOptions{}, 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(l.Stop)
	return l, path
}

func waitSnapshot(t *testing.T, ch <-chan *Snapshot) *Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestLiveStartLoads(t *testing.T) {
	b := testjsonl.NewSessionBuilder().
		AddUser(tsZero, "u1", "", "hi").
		AddToolUse(tsOne, "req", "u1", "t1", "Bash").
		AddToolResult(tsTwo, "res", "req", "t1", "ok")
	l, path := newTestLive(t, b.String())

	assert.Nil(t, l.Snapshot())
	l.Start()

	snap := l.Snapshot()
	require.NotNil(t, snap)
	require.NoError(t, snap.Err)
	assert.Equal(t, path, snap.Path)
	assert.Equal(t, uint64(1), snap.Seq)
	assert.Equal(t, 3, snap.Ingestion.Records)
	assert.Equal(t, 3, timeline.Count(snap.Ingestion.Forest))
	assert.Len(t, snap.Ingestion.Forest, 2)
}

func TestLivePublishesOnWrite(t *testing.T) {
	b := testjsonl.NewSessionBuilder().AddUser(tsZero, "u1", "", "hi")
	l, path := newTestLive(t, b.String())

	updates, cancel := l.Subscribe()
	defer cancel()
	l.Start()
	first := waitSnapshot(t, updates)
	assert.Equal(t, 1, first.Ingestion.Records)

	b.AddAssistant(tsOne, "a1", "u1", "hello")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-updates:
			if s.Ingestion != nil && s.Ingestion.Records == 2 {
				assert.Greater(t, s.Seq, first.Seq)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload after write")
		}
	}
}

func TestLiveMissingFile(t *testing.T) {
	l, path := newTestLive(t, "")
	l.Start()

	snap := l.Snapshot()
	require.NotNil(t, snap)
	assert.Nil(t, snap.Ingestion)
	assert.True(t, errors.Is(snap.Err, fs.ErrNotExist))

	require.NoError(t, os.WriteFile(
		path, []byte(testjsonl.UserJSON("u1", "", tsZero, "late")+"\n"), 0o644,
	))
	snap = l.Reload()
	require.NoError(t, snap.Err)
	assert.Equal(t, 1, snap.Ingestion.Records)
}

func TestLiveNotText(t *testing.T) {
	l, _ := newTestLive(t, "\x00\x01\x02binary")
	snap := l.Reload()
	assert.ErrorIs(t, snap.Err, parser.ErrNotText)
}

func TestLiveSlowSubscriberSeesLatest(t *testing.T) {
	l, _ := newTestLive(t, testjsonl.UserJSON("u1", "", tsZero, "hi")+"\n")
	updates, cancel := l.Subscribe()
	defer cancel()

	l.Reload()
	l.Reload()
	last := l.Reload()

	got := waitSnapshot(t, updates)
	assert.Same(t, last, got)
	select {
	case extra := <-updates:
		t.Fatalf("unexpected extra snapshot seq %d", extra.Seq)
	default:
	}
}

func TestLiveCancelStopsDelivery(t *testing.T) {
	l, _ := newTestLive(t, testjsonl.UserJSON("u1", "", tsZero, "hi")+"\n")
	updates, cancel := l.Subscribe()
	cancel()

	l.Reload()
	select {
	case <-updates:
		t.Fatal("cancelled subscription received a snapshot")
	default:
	}
}
