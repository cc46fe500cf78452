// Package session hosts one document-viewer session: the shared viewer state,
// the mode controller, and the orchestrator that routes user actions and
// viewer events to them.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/markview/internal/annotation"
	"github.com/dgallion1/markview/internal/thumbnail"
	"github.com/dgallion1/markview/internal/viewer"
)

const pdfMIME = "application/pdf"

// Options configure a Session.
type Options struct {
	Owner      string
	Settings   Settings
	Thumbnails thumbnail.Config
	Stats      *thumbnail.Stats

	// Trigger schedules thumbnail generation after pages load. Nil runs it
	// inline.
	Trigger func(ctx context.Context, s *Session)
	// OnSettings observes every accepted settings change.
	OnSettings func(ctx context.Context, owner string, s Settings)
}

// Session routes user actions to the viewer and keeps State in step with
// viewer events.
type Session struct {
	ID    string
	Owner string

	v     viewer.Viewer
	log   *slog.Logger
	state *State
	modes *ModeController
	codec *annotation.Codec

	thumbCfg   thumbnail.Config
	stats      *thumbnail.Stats
	trigger    func(ctx context.Context, s *Session)
	onSettings func(ctx context.Context, owner string, s Settings)

	loadMu sync.Mutex // serializes LoadDocument

	mu       sync.Mutex
	thumbs   *thumbnail.Cache
	lastUsed time.Time
	created  time.Time
}

// New creates a session around v. The id is generated when empty.
func New(id string, v viewer.Viewer, log *slog.Logger, opts Options) *Session {
	if id == "" {
		id = newID()
	}
	if opts.Settings == (Settings{}) {
		opts.Settings = DefaultSettings()
	}
	log = log.With("session_id", id)
	state := NewState()
	now := time.Now()
	s := &Session{
		ID:         id,
		Owner:      opts.Owner,
		v:          v,
		log:        log,
		state:      state,
		modes:      NewModeController(v, state, opts.Settings, log),
		codec:      annotation.NewCodec(log),
		thumbCfg:   opts.Thumbnails,
		stats:      opts.Stats,
		trigger:    opts.Trigger,
		onSettings: opts.OnSettings,
		lastUsed:   now,
		created:    now,
	}
	s.thumbs = thumbnail.New(v, log, opts.Thumbnails, opts.Stats)
	return s
}

// PagesLoaded records the page count and schedules thumbnail generation.
func (s *Session) PagesLoaded(ctx context.Context, total int) {
	s.state.setTotalPages(total)
	s.log.Info("pages loaded", "total_pages", total)
	if s.trigger != nil {
		s.trigger(ctx, s)
		return
	}
	s.EnsureThumbnails(ctx)
}

func (s *Session) PageRendered(_ context.Context, page int) {
	s.log.Debug("page rendered", "page", page)
}

// LoadDocument hands a PDF to the viewer, replacing any loaded document
// together with its annotations and thumbnails. When the viewer rejects the
// document the previous one stays loaded and untouched.
func (s *Session) LoadDocument(ctx context.Context, name, contentType string, data []byte) error {
	s.touch()
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != pdfMIME {
		return fmt.Errorf("%w: %q is not a PDF (%s)", ErrUnsupportedFile, name, contentType)
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	prev := s.state.Snapshot()
	s.mu.Lock()
	prevThumbs := s.thumbs
	s.thumbs = thumbnail.New(s.v, s.log, s.thumbCfg, s.stats)
	s.mu.Unlock()

	s.state.setDocument(name)
	if err := s.v.Render(ctx, data, s); err != nil {
		s.state.restore(prev)
		s.mu.Lock()
		s.thumbs = prevThumbs
		s.mu.Unlock()
		return fmt.Errorf("render %s: %w", name, err)
	}

	if prev.IsLoaded {
		if _, err := s.modes.Activate(ctx, ModeNone); err != nil {
			s.log.Warn("reset mode after reload", "error", err)
		}
		if err := s.v.RemoveAllNativeAnnotations(ctx); err != nil {
			s.log.Warn("clear annotations after reload", "error", err)
		}
	}
	s.log.Info("document loaded", "name", name, "bytes", len(data))
	return nil
}

// NavigateToPage moves to page, clamped to the document, and returns the
// page actually shown.
func (s *Session) NavigateToPage(ctx context.Context, page int) (int, error) {
	if err := s.requireDocument(); err != nil {
		return 0, err
	}
	shown := s.state.setCurrentPage(page)
	if err := s.v.ScrollToPage(ctx, shown); err != nil {
		return shown, fmt.Errorf("scroll to page %d: %w", shown, err)
	}
	return shown, nil
}

func (s *Session) NextPage(ctx context.Context) (int, error) {
	cur, _ := s.state.pages()
	return s.NavigateToPage(ctx, cur+1)
}

func (s *Session) PreviousPage(ctx context.Context) (int, error) {
	cur, _ := s.state.pages()
	return s.NavigateToPage(ctx, cur-1)
}

func (s *Session) ZoomIn() (int, error) {
	if err := s.requireDocument(); err != nil {
		return 0, err
	}
	return s.state.addZoom(ZoomStep), nil
}

func (s *Session) ZoomOut() (int, error) {
	if err := s.requireDocument(); err != nil {
		return 0, err
	}
	return s.state.addZoom(-ZoomStep), nil
}

// SetZoom stores percent clamped to [MinZoom, MaxZoom].
func (s *Session) SetZoom(percent int) (int, error) {
	if err := s.requireDocument(); err != nil {
		return 0, err
	}
	return s.state.setZoom(percent), nil
}

// ToggleMode activates mode, or deactivates it when already active.
func (s *Session) ToggleMode(ctx context.Context, mode Mode) (Mode, error) {
	if err := s.requireDocument(); err != nil {
		return ModeNone, err
	}
	return s.modes.Activate(ctx, mode)
}

func (s *Session) SetSetting(ctx context.Context, mode Mode, field Field, value string) (Settings, error) {
	if err := s.requireDocument(); err != nil {
		return Settings{}, err
	}
	settings, err := s.modes.SetSetting(ctx, mode, field, value)
	if err != nil {
		return settings, err
	}
	if s.onSettings != nil {
		s.onSettings(ctx, s.Owner, settings)
	}
	return settings, nil
}

// Settings returns the current mode settings.
func (s *Session) Settings() Settings {
	return s.modes.Settings()
}

// ExportAnnotations serializes the viewer's annotations.
func (s *Session) ExportAnnotations(ctx context.Context) (*annotation.File, error) {
	if err := s.requireDocument(); err != nil {
		return nil, err
	}
	return s.codec.Export(ctx, s.v)
}

// ImportAnnotations reads a .json annotation file and adds its valid
// elements to the viewer.
func (s *Session) ImportAnnotations(ctx context.Context, name string, r io.Reader) (int, error) {
	if err := s.requireDocument(); err != nil {
		return 0, err
	}
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return 0, fmt.Errorf("%w: %q is not a .json file", ErrUnsupportedFile, name)
	}
	return s.codec.Import(ctx, s.v, r)
}

// Annotations lists the viewer's annotations in portable form.
func (s *Session) Annotations(ctx context.Context) ([]annotation.Annotation, error) {
	if err := s.requireDocument(); err != nil {
		return nil, err
	}
	natives, err := s.v.ListNativeAnnotations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	out := make([]annotation.Annotation, 0, len(natives))
	for _, n := range natives {
		a := annotation.Annotation(n.Clone())
		delete(a, "id")
		out = append(out, a)
	}
	return out, nil
}

func (s *Session) ClearAnnotations(ctx context.Context) error {
	if err := s.requireDocument(); err != nil {
		return err
	}
	if err := s.v.RemoveAllNativeAnnotations(ctx); err != nil {
		return fmt.Errorf("clear annotations: %w", err)
	}
	s.log.Info("annotations cleared")
	return nil
}

// Draw places one mark-up element with the active editor on page (1-based).
func (s *Session) Draw(ctx context.Context, page int, rect [4]float64, text string) (viewer.NativeAnnotation, error) {
	if err := s.requireDocument(); err != nil {
		return nil, err
	}
	d, ok := s.v.(viewer.Drawer)
	if !ok {
		return nil, ErrDrawUnsupported
	}
	if m := s.modes.Active(); m != ModeHighlight && m != ModeTextBox {
		return nil, fmt.Errorf("draw in %s mode: %w", m, viewer.ErrEditorIdle)
	}
	if _, total := s.state.pages(); page < 1 || page > total {
		return nil, fmt.Errorf("draw on page %d of %d: %w", page, total, viewer.ErrPageRange)
	}
	return d.Draw(ctx, page, rect, text)
}

// Excerpt returns the document text inside rect on page. It is empty when
// the viewer has no text layer or the lookup fails.
func (s *Session) Excerpt(ctx context.Context, page int, rect [4]float64) string {
	tl, ok := s.v.(viewer.TextLocator)
	if !ok {
		return ""
	}
	text, err := tl.TextIn(ctx, page, rect)
	if err != nil {
		s.log.Debug("excerpt lookup failed", "page", page, "error", err)
		return ""
	}
	return text
}

// DocumentBytes returns the loaded document with its annotations.
func (s *Session) DocumentBytes(ctx context.Context) ([]byte, error) {
	if err := s.requireDocument(); err != nil {
		return nil, err
	}
	data, err := s.v.ExportCurrentDocumentBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("export document: %w", err)
	}
	if data == nil {
		return nil, ErrNoDocument
	}
	return data, nil
}

// EnsureThumbnails fills the thumbnail cache for the loaded document and
// returns how many previews were generated.
func (s *Session) EnsureThumbnails(ctx context.Context) int {
	_, total := s.state.pages()
	s.mu.Lock()
	cache := s.thumbs
	s.mu.Unlock()
	n := cache.Ensure(ctx, total)
	if n > 0 {
		s.log.Debug("thumbnails generated", "count", n, "cached", cache.Len())
	}
	return n
}

// Thumbnails returns a copy of the cached previews keyed by page.
func (s *Session) Thumbnails() (map[int]string, error) {
	if err := s.requireDocument(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	cache := s.thumbs
	s.mu.Unlock()
	return cache.All(), nil
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	return s.state.Snapshot()
}

// Info is the JSON view of a session.
type Info struct {
	ID         string    `json:"session_id"`
	Owner      string    `json:"owner,omitempty"`
	State      Snapshot  `json:"state"`
	Settings   Settings  `json:"settings"`
	Thumbnails int       `json:"thumbnails"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	thumbs := s.thumbs.Len()
	created := s.created
	s.mu.Unlock()
	return Info{
		ID:         s.ID,
		Owner:      s.Owner,
		State:      s.state.Snapshot(),
		Settings:   s.modes.Settings(),
		Thumbnails: thumbs,
		CreatedAt:  created,
	}
}

func (s *Session) requireDocument() error {
	s.touch()
	if !s.state.isLoaded() {
		return ErrNoDocument
	}
	return nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsed reports when the session last served an action.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

var _ viewer.EventHandler = (*Session)(nil)
