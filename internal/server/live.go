package server

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/wesm/sessiontree/internal/watch"
)

// heartbeatInterval is how often a "heartbeat" event carrying the
// server time is sent on a live stream.
const heartbeatInterval = 30 * time.Second

// liveResponse is one snapshot of the watched file. On a failed
// reload Error is set and the timeline fields are empty.
type liveResponse struct {
	Path     string    `json:"path"`
	Seq      uint64    `json:"seq"`
	LoadedAt time.Time `json:"loaded_at"`
	Error    string    `json:"error,omitempty"`
	*timelineResponse
}

func newLiveResponse(snap *watch.Snapshot, query string) liveResponse {
	resp := liveResponse{
		Path:     snap.Path,
		Seq:      snap.Seq,
		LoadedAt: snap.LoadedAt,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
		return resp
	}
	tr := newTimelineResponse(
		filepath.Base(snap.Path), snap.Ingestion, query,
	)
	resp.timelineResponse = &tr
	return resp
}

func (s *Server) handleLive(
	w http.ResponseWriter, r *http.Request,
) {
	if s.live == nil {
		writeError(w, http.StatusNotFound, "no live file configured")
		return
	}
	snap := s.live.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable,
			"live file not loaded yet")
		return
	}
	writeJSON(w, http.StatusOK,
		newLiveResponse(snap, r.URL.Query().Get("q")))
}

// handleLiveEvents streams a "timeline" event with the current
// snapshot and another after every reload of the watched file.
func (s *Server) handleLiveEvents(
	w http.ResponseWriter, r *http.Request,
) {
	if s.live == nil {
		writeError(w, http.StatusNotFound, "no live file configured")
		return
	}
	query := r.URL.Query().Get("q")

	updates, cancel := s.live.Subscribe()
	defer cancel()

	stream, err := newEventStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError,
			"streaming not supported")
		return
	}

	var lastSeq uint64
	if snap := s.live.Snapshot(); snap != nil {
		if !stream.sendJSON("timeline", newLiveResponse(snap, query)) {
			return
		}
		lastSeq = snap.Seq
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-updates:
			if snap.Seq <= lastSeq {
				continue
			}
			lastSeq = snap.Seq
			if !stream.sendJSON("timeline", newLiveResponse(snap, query)) {
				return
			}
		case <-heartbeat.C:
			if !stream.send("heartbeat",
				s.now().UTC().Format(time.RFC3339)) {
				return
			}
		}
	}
}
