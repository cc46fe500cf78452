package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/markview/internal/session"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// lookup resolves the {id} URL parameter, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.log, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var owner string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Owner string `json:"owner"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		owner = req.Owner
	} else {
		owner = r.FormValue("owner")
	}

	sess, err := s.sessions.Create(r.Context(), strings.TrimSpace(owner))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Page *int `json:"page"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Page == nil {
		jsonError(w, "page is required", http.StatusBadRequest)
		return
	}
	if _, err := sess.NavigateToPage(r.Context(), *req.Page); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, err := sess.NextPage(r.Context()); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handlePreviousPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, err := sess.PreviousPage(r.Context()); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Action  string `json:"action"`
		Percent *int   `json:"percent"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.Percent != nil:
		_, err = sess.SetZoom(*req.Percent)
	case req.Action == "in":
		_, err = sess.ZoomIn()
	case req.Action == "out":
		_, err = sess.ZoomOut()
	default:
		jsonError(w, `zoom needs "percent" or "action" of "in" or "out"`, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	active, err := sess.ToggleMode(r.Context(), mode)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_mode": active,
		"state":       sess.Snapshot(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"settings":          sess.Settings(),
		"highlight_palette": session.HighlightPalette,
		"text_palette":      session.TextPalette,
		"font_sizes":        session.FontSizes,
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode  string          `json:"mode"`
		Field string          `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	value, err := settingValue(req.Value)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := sess.SetSetting(r.Context(), mode, session.Field(req.Field), value)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// settingValue accepts a JSON string or number.
func settingValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errMissingValue
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", errMissingValue
	}
	return num.String(), nil
}

func (s *Server) handleThumbnails(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	thumbs, err := sess.Thumbnails()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	pages := make(map[string]string, len(thumbs))
	for page, url := range thumbs {
		pages[strconv.Itoa(page)] = url
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(pages),
		"thumbnails": pages,
	})
}

func (s *Server) handleRenderStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":    s.sessions.Len(),
		"queue_depth": s.sessions.QueueDepth(),
		"stats":       s.sessions.RenderStats(),
	})
}
