package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
)

func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	anns, err := sess.Annotations(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(anns), "annotations": anns})
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Page int        `json:"page"`
		Rect [4]float64 `json:"rect"`
		Text string     `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := sess.Draw(r.Context(), req.Page, req.Rect, req.Text)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleClearAnnotations(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.ClearAnnotations(r.Context()); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport returns the annotations as a JSON attachment and archives a
// copy when an archive is configured. Archive failures do not fail the
// download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	f, err := sess.ExportAnnotations(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	if s.archive != nil {
		loc, err := s.archive.Store(r.Context(), sess.ID, f)
		if err != nil {
			s.log.Warn("archive export failed", "session_id", sess.ID, "error", err)
		} else {
			w.Header().Set("X-Archive-Location", loc)
		}
	}

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", attachment(f.Name))
	w.Header().Set("X-Annotation-Count", strconv.Itoa(f.Count))
	w.Write(f.Data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	name, _, data, ok := readUpload(w, r, s.cfg.MaxImportBytes)
	if !ok {
		return
	}
	n, err := sess.ImportAnnotations(r.Context(), name, bytes.NewReader(data))
	if err != nil {
		writeError(w, s.log, fmt.Errorf("import %s: %w", name, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": n, "filename": name})
}
