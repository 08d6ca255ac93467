package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/wesm/sessiontree/internal/export"
	"github.com/wesm/sessiontree/internal/timeline"
)

// parseExportOptions reads format and metadata from the query,
// falling back to the configured default format.
func (s *Server) parseExportOptions(
	r *http.Request,
) (export.Options, error) {
	q := r.URL.Query()

	name := q.Get("format")
	if name == "" {
		name = s.cfg.ExportFormat
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return export.Options{}, err
	}

	var metadata bool
	if v := q.Get("metadata"); v != "" {
		metadata, err = strconv.ParseBool(v)
		if err != nil {
			return export.Options{}, fmt.Errorf("invalid metadata value %q", v)
		}
	}

	return export.Options{
		Format:          format,
		IncludeMetadata: metadata,
		Now:             s.now(),
	}, nil
}

func (s *Server) handleExport(
	w http.ResponseWriter, r *http.Request,
) {
	opts, err := s.parseExportOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, ing, ok := s.ingestUpload(w, r)
	if !ok {
		return
	}

	forest := timeline.Filter(ing.Forest, r.URL.Query().Get("q"))
	res, err := export.Export(forest, opts)
	if err != nil {
		log.Printf("Error exporting timeline: %v", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, res.Filename),
	)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	if _, err := w.Write(res.Data); err != nil {
		log.Printf("Error writing export: %v", err)
	}
}
