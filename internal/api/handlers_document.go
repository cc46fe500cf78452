package api

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/markview/internal/report"
)

// formOverhead is allowed on top of a file limit for multipart framing.
const formOverhead = 1 << 20

// readUpload reads the multipart "file" field, rejecting payloads over limit.
// It writes the error response itself and reports ok=false.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (name, contentType string, data []byte, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return "", "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return "", "", nil, false
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return "", "", nil, false
	}
	if int64(len(data)) > limit {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", limit), http.StatusRequestEntityTooLarge)
		return "", "", nil, false
	}

	contentType = header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return sanitizeFilename(header.Filename), contentType, data, true
}

func (s *Server) handleLoadDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	name, contentType, data, ok := readUpload(w, r, s.cfg.MaxUploadBytes)
	if !ok {
		return
	}
	if err := sess.LoadDocument(r.Context(), name, contentType, data); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	data, err := sess.DocumentBytes(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	name := sess.Snapshot().DocumentName
	if name == "" {
		name = "document.pdf"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment(name))
	w.Write(data)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	anns, err := sess.Annotations(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	ctx := r.Context()
	doc := sess.Snapshot().DocumentName
	rep := report.Build(doc, anns, func(page int, rect [4]float64) string {
		return sess.Excerpt(ctx, page, rect)
	}, time.Now())

	var buf bytes.Buffer
	if err := rep.Render(&buf, format); err != nil {
		writeError(w, s.log, fmt.Errorf("render report: %w", err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if format == report.FormatDOCX {
		base := strings.TrimSuffix(doc, filepath.Ext(doc))
		if base == "" {
			base = "annotations"
		}
		w.Header().Set("Content-Disposition", attachment(base+"-report.docx"))
	}
	w.Write(buf.Bytes())
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
