// Package viewer defines the capability surface of the embedded document
// viewer that renders pages and owns the native annotation objects.
package viewer

import (
	"context"
	"errors"
)

// EditorMode is the viewer's native "what am I drawing" code.
type EditorMode int

const (
	EditorNone      EditorMode = 0
	EditorFreeText  EditorMode = 3
	EditorHighlight EditorMode = 9
)

// NativeAnnotation is the viewer's own representation of a mark-up element.
// It is a JSON-shaped object; the "id" key is transient and reassigned by the
// viewer on insertion.
type NativeAnnotation map[string]any

// Clone returns a shallow copy of the annotation.
func (a NativeAnnotation) Clone() NativeAnnotation {
	out := make(NativeAnnotation, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// EventHandler receives the viewer's rendering events.
type EventHandler interface {
	PagesLoaded(ctx context.Context, total int)
	PageRendered(ctx context.Context, page int)
}

// Viewer is the external rendering and annotation collaborator.
type Viewer interface {
	// Render loads src and reports pagesLoaded/pageRendered events to h.
	Render(ctx context.Context, src []byte, h EventHandler) error
	ScrollToPage(ctx context.Context, page int) error

	SetEditorMode(ctx context.Context, mode EditorMode) error
	SetHighlightColor(ctx context.Context, hex string) error
	SetHighlightOpacity(ctx context.Context, opacity float64) error
	SetTextFontColor(ctx context.Context, hex string) error
	SetTextFontSize(ctx context.Context, pt int) error

	// RasterizePage returns a data URL with an image of page at the given scale.
	RasterizePage(ctx context.Context, page int, scale float64) (string, error)

	ListNativeAnnotations(ctx context.Context) ([]NativeAnnotation, error)
	AddNativeAnnotation(ctx context.Context, a NativeAnnotation) error
	RemoveAllNativeAnnotations(ctx context.Context) error

	// ExportCurrentDocumentBytes returns nil when no document is loaded.
	ExportCurrentDocumentBytes(ctx context.Context) ([]byte, error)
}

// HandTool is implemented by viewers with a pan cursor tool.
type HandTool interface {
	SetHandTool(ctx context.Context, enabled bool) error
}

// Drawer is implemented by viewers that accept drawing input for the active
// editor mode. rect is [x0, y0, x1, y1] in page space.
type Drawer interface {
	Draw(ctx context.Context, page int, rect [4]float64, text string) (NativeAnnotation, error)
}

// TextLocator is implemented by viewers with a text layer. page is 1-based.
type TextLocator interface {
	TextIn(ctx context.Context, page int, rect [4]float64) (string, error)
}

var (
	ErrNoDocument = errors.New("viewer: no document loaded")
	ErrPageRange  = errors.New("viewer: page out of range")
	ErrEditorIdle = errors.New("viewer: no editor mode active")
)
