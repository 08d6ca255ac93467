package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/wesm/sessiontree/internal/parser"
	"github.com/wesm/sessiontree/internal/timeline"
)

type decodeErrorJSON struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// timelineResponse carries a built forest. Events are filtered by
// the query; stats always describe the whole input.
type timelineResponse struct {
	Filename     string            `json:"filename"`
	Query        string            `json:"query,omitempty"`
	Records      int               `json:"records"`
	Events       []*timeline.Event `json:"events"`
	Stats        timeline.Stats    `json:"stats"`
	DecodeErrors []decodeErrorJSON `json:"decode_errors"`
}

func newTimelineResponse(
	filename string, ing *timeline.Ingestion, query string,
) timelineResponse {
	errs := make([]decodeErrorJSON, len(ing.DecodeErrors))
	for i, de := range ing.DecodeErrors {
		errs[i] = decodeErrorJSON{Line: de.Line, Error: de.Err.Error()}
	}
	return timelineResponse{
		Filename:     filename,
		Query:        query,
		Records:      ing.Records,
		Events:       timeline.Filter(ing.Forest, query),
		Stats:        timeline.ComputeStats(ing.Forest),
		DecodeErrors: errs,
	}
}

// ingestUpload parses and builds the uploaded transcript, writing
// the error response itself when that fails.
func (s *Server) ingestUpload(
	w http.ResponseWriter, r *http.Request,
) (string, *timeline.Ingestion, bool) {
	req, status, errMsg := s.parseUploadRequest(w, r)
	if errMsg != "" {
		writeError(w, status, errMsg)
		return "", nil, false
	}
	defer req.file.Close()

	ing, err := s.builder.Ingest(req.file, s.cfg.DecodeOptions())
	if err != nil {
		if errors.Is(err, parser.ErrNotText) {
			writeError(w, http.StatusBadRequest, err.Error())
			return "", nil, false
		}
		log.Printf("Error reading upload %s: %v", req.filename, err)
		writeError(w, http.StatusInternalServerError,
			"failed to read upload")
		return "", nil, false
	}
	return req.filename, ing, true
}

func (s *Server) handleTimeline(
	w http.ResponseWriter, r *http.Request,
) {
	filename, ing, ok := s.ingestUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTimelineResponse(
		filename, ing, r.URL.Query().Get("q"),
	))
}
