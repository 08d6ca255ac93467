package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

type uploadRequest struct {
	file     multipart.File
	filename string
}

// parseUploadRequest extracts and validates the multipart
// transcript. On failure it returns the status and message to
// report. The caller must close req.file when done.
func (s *Server) parseUploadRequest(
	w http.ResponseWriter, r *http.Request,
) (*uploadRequest, int, string) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)
		}
		return nil, http.StatusBadRequest, "file field required"
	}

	if !strings.HasSuffix(header.Filename, ".jsonl") {
		file.Close()
		return nil, http.StatusBadRequest, "file must be .jsonl"
	}

	safeName := filepath.Base(header.Filename)
	if safeName != header.Filename || !isSafeName(
		strings.TrimSuffix(safeName, ".jsonl"),
	) {
		file.Close()
		return nil, http.StatusBadRequest, "invalid filename"
	}

	return &uploadRequest{file: file, filename: safeName}, 0, ""
}

// isSafeName rejects names containing path separators, "..",
// or starting with "." to prevent directory traversal.
func isSafeName(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return true
}
