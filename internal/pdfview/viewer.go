// Package pdfview is an in-process viewer.Viewer. It reads the page tree and
// text layer with ledongthuc/pdf, keeps native annotations in memory, and
// paints a text-run preview of each page for thumbnails.
package pdfview

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/markview/internal/annotation"
	"github.com/dgallion1/markview/internal/viewer"
)

// Viewer is safe for concurrent use.
type Viewer struct {
	log *slog.Logger

	mu       sync.RWMutex
	doc      *document
	handler  viewer.EventHandler
	current  int
	editor   viewer.EditorMode
	hand     bool
	hlColor  [3]float64
	hlAlpha  float64
	txtColor [3]float64
	txtSize  int
	annots   []viewer.NativeAnnotation
	nextID   int
}

func New(log *slog.Logger) *Viewer {
	return &Viewer{
		log:     log,
		hlColor: [3]float64{255, 255, 152},
		hlAlpha: 0.5,
		txtSize: 16,
	}
}

// Render parses src and replaces the loaded document. Annotations of the
// previous document are dropped.
func (v *Viewer) Render(ctx context.Context, src []byte, h viewer.EventHandler) error {
	doc, err := parseDocument(src)
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}

	v.mu.Lock()
	v.doc = doc
	v.handler = h
	v.current = 1
	v.annots = nil
	v.mu.Unlock()

	v.log.Debug("document parsed", "pages", doc.numPages(), "bytes", len(src))
	if h != nil {
		h.PagesLoaded(ctx, doc.numPages())
		if doc.numPages() > 0 {
			h.PageRendered(ctx, 1)
		}
	}
	return nil
}

func (v *Viewer) ScrollToPage(ctx context.Context, n int) error {
	v.mu.Lock()
	if v.doc == nil {
		v.mu.Unlock()
		return viewer.ErrNoDocument
	}
	if _, ok := v.doc.pageAt(n); !ok {
		v.mu.Unlock()
		return fmt.Errorf("scroll to %d: %w", n, viewer.ErrPageRange)
	}
	v.current = n
	h := v.handler
	v.mu.Unlock()

	if h != nil {
		h.PageRendered(ctx, n)
	}
	return nil
}

func (v *Viewer) SetEditorMode(_ context.Context, mode viewer.EditorMode) error {
	switch mode {
	case viewer.EditorNone, viewer.EditorFreeText, viewer.EditorHighlight:
	default:
		return fmt.Errorf("unsupported editor mode %d", mode)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editor = mode
	return nil
}

func (v *Viewer) SetHandTool(_ context.Context, enabled bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hand = enabled
	return nil
}

func (v *Viewer) SetHighlightColor(_ context.Context, hex string) error {
	rgb, err := parseHex(hex)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hlColor = rgb
	return nil
}

func (v *Viewer) SetHighlightOpacity(_ context.Context, opacity float64) error {
	if opacity < 0 || opacity > 1 || math.IsNaN(opacity) {
		return fmt.Errorf("opacity %v is not in [0,1]", opacity)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hlAlpha = opacity
	return nil
}

func (v *Viewer) SetTextFontColor(_ context.Context, hex string) error {
	rgb, err := parseHex(hex)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txtColor = rgb
	return nil
}

func (v *Viewer) SetTextFontSize(_ context.Context, pt int) error {
	if pt <= 0 {
		return fmt.Errorf("font size %d must be positive", pt)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txtSize = pt
	return nil
}

// RasterizePage paints page n with its annotations as a PNG data URL.
func (v *Viewer) RasterizePage(ctx context.Context, n int, scale float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.RLock()
	if v.doc == nil {
		v.mu.RUnlock()
		return "", viewer.ErrNoDocument
	}
	pg, ok := v.doc.pageAt(n)
	var annots []viewer.NativeAnnotation
	for _, a := range v.annots {
		if annotation.Annotation(a).PageIndex() == n-1 {
			annots = append(annots, a.Clone())
		}
	}
	v.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("rasterize %d: %w", n, viewer.ErrPageRange)
	}

	data, err := rasterize(pg, annots, scale)
	if err != nil {
		return "", fmt.Errorf("rasterize %d: %w", n, err)
	}
	return dataURL(data), nil
}

func (v *Viewer) ListNativeAnnotations(context.Context) ([]viewer.NativeAnnotation, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]viewer.NativeAnnotation, len(v.annots))
	for i, a := range v.annots {
		out[i] = a.Clone()
	}
	return out, nil
}

// AddNativeAnnotation stores a copy of a under a fresh id. The page index
// must refer to a page of the loaded document.
func (v *Viewer) AddNativeAnnotation(_ context.Context, a viewer.NativeAnnotation) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.addLocked(a)
	return err
}

func (v *Viewer) addLocked(a viewer.NativeAnnotation) (viewer.NativeAnnotation, error) {
	if v.doc == nil {
		return nil, viewer.ErrNoDocument
	}
	idx := annotation.Annotation(a).PageIndex()
	if _, ok := v.doc.pageAt(idx + 1); !ok {
		return nil, fmt.Errorf("annotation on page index %d: %w", idx, viewer.ErrPageRange)
	}
	stored := a.Clone()
	stored["id"] = fmt.Sprintf("pdfjs_internal_editor_%d", v.nextID)
	v.nextID++
	v.annots = append(v.annots, stored)
	return stored.Clone(), nil
}

func (v *Viewer) RemoveAllNativeAnnotations(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.annots = nil
	return nil
}

// ExportCurrentDocumentBytes returns the loaded PDF, or nil.
func (v *Viewer) ExportCurrentDocumentBytes(context.Context) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.doc == nil {
		return nil, nil
	}
	out := make([]byte, len(v.doc.data))
	copy(out, v.doc.data)
	return out, nil
}

// Draw creates an annotation with the active editor on page n.
func (v *Viewer) Draw(_ context.Context, n int, rect [4]float64, text string) (viewer.NativeAnnotation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	a := viewer.NativeAnnotation{
		"pageIndex": n - 1,
		"rect":      []float64{rect[0], rect[1], rect[2], rect[3]},
	}
	switch v.editor {
	case viewer.EditorHighlight:
		a["annotationType"] = int(annotation.Highlight)
		a["color"] = rgbSlice(v.hlColor)
		a["opacity"] = v.hlAlpha
	case viewer.EditorFreeText:
		a["annotationType"] = int(annotation.FreeText)
		a["color"] = rgbSlice(v.txtColor)
		a["fontSize"] = v.txtSize
		a["value"] = text
	default:
		return nil, viewer.ErrEditorIdle
	}
	return v.addLocked(a)
}

func rgbSlice(c [3]float64) []float64 {
	return []float64{c[0], c[1], c[2]}
}

// TextIn returns the text runs of page n whose origin lies inside rect,
// top to bottom.
func (v *Viewer) TextIn(_ context.Context, n int, rect [4]float64) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.doc == nil {
		return "", viewer.ErrNoDocument
	}
	pg, ok := v.doc.pageAt(n)
	if !ok {
		return "", fmt.Errorf("text on page %d: %w", n, viewer.ErrPageRange)
	}

	x0, x1 := math.Min(rect[0], rect[2]), math.Max(rect[0], rect[2])
	y0, y1 := math.Min(rect[1], rect[3]), math.Max(rect[1], rect[3])
	var hits []textRun
	for _, r := range pg.runs {
		if r.X >= x0 && r.X <= x1 && r.Y >= y0 && r.Y <= y1 {
			hits = append(hits, r)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Y > hits[j].Y })

	parts := make([]string, 0, len(hits))
	for _, r := range hits {
		parts = append(parts, strings.TrimSpace(r.S))
	}
	return strings.Join(parts, " "), nil
}

// State reports the viewer's editor state.
type State struct {
	Pages    int
	Current  int
	Editor   viewer.EditorMode
	HandTool bool
}

func (v *Viewer) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s := State{Current: v.current, Editor: v.editor, HandTool: v.hand}
	if v.doc != nil {
		s.Pages = v.doc.numPages()
	}
	return s
}

var (
	_ viewer.Viewer      = (*Viewer)(nil)
	_ viewer.HandTool    = (*Viewer)(nil)
	_ viewer.Drawer      = (*Viewer)(nil)
	_ viewer.TextLocator = (*Viewer)(nil)
)
