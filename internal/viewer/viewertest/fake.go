// Package viewertest provides an in-memory viewer.Viewer for tests.
package viewertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgallion1/markview/internal/viewer"
)

// Call records one capability invocation.
type Call struct {
	Method string
	Arg    any
}

// Fake is a scriptable viewer. The zero value is not usable; use New.
type Fake struct {
	mu sync.Mutex

	Pages     int
	Calls     []Call
	Annots    []viewer.NativeAnnotation
	Doc       []byte
	HandTool  bool
	Rasterize map[int]int // page -> request count

	// FailRasterize lists pages whose rasterization fails.
	FailRasterize map[int]bool
	// FailAddAt makes the n-th AddNativeAnnotation call (0-based) fail.
	FailAddAt int
	// FailSettings makes every settings push fail.
	FailSettings bool
	// FailRender makes Render reject the document, keeping the loaded one.
	FailRender bool

	adds   int
	nextID int
}

func New(pages int) *Fake {
	return &Fake{
		Pages:         pages,
		Rasterize:     make(map[int]int),
		FailRasterize: make(map[int]bool),
		FailAddAt:     -1,
	}
}

func (f *Fake) record(method string, arg any) {
	f.Calls = append(f.Calls, Call{Method: method, Arg: arg})
}

// CallsTo returns the recorded calls of one method, in order.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the call log.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}

func (f *Fake) Render(ctx context.Context, src []byte, h viewer.EventHandler) error {
	f.mu.Lock()
	f.record("Render", len(src))
	if f.FailRender {
		f.mu.Unlock()
		return errors.New("document rejected")
	}
	f.Doc = src
	f.Annots = nil
	pages := f.Pages
	f.mu.Unlock()

	h.PagesLoaded(ctx, pages)
	if pages > 0 {
		h.PageRendered(ctx, 1)
	}
	return nil
}

func (f *Fake) ScrollToPage(_ context.Context, page int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ScrollToPage", page)
	return nil
}

func (f *Fake) SetEditorMode(_ context.Context, mode viewer.EditorMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetEditorMode", mode)
	return nil
}

func (f *Fake) settingsCall(method string, arg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(method, arg)
	if f.FailSettings {
		return errors.New("settings rejected")
	}
	return nil
}

func (f *Fake) SetHighlightColor(_ context.Context, hex string) error {
	return f.settingsCall("SetHighlightColor", hex)
}

func (f *Fake) SetHighlightOpacity(_ context.Context, opacity float64) error {
	return f.settingsCall("SetHighlightOpacity", opacity)
}

func (f *Fake) SetTextFontColor(_ context.Context, hex string) error {
	return f.settingsCall("SetTextFontColor", hex)
}

func (f *Fake) SetTextFontSize(_ context.Context, pt int) error {
	return f.settingsCall("SetTextFontSize", pt)
}

func (f *Fake) SetHandTool(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetHandTool", enabled)
	f.HandTool = enabled
	return nil
}

func (f *Fake) RasterizePage(_ context.Context, page int, scale float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RasterizePage", page)
	f.Rasterize[page]++
	if f.FailRasterize[page] {
		return "", fmt.Errorf("rasterize page %d: boom", page)
	}
	return fmt.Sprintf("data:image/png;base64,page-%d@%g", page, scale), nil
}

func (f *Fake) ListNativeAnnotations(context.Context) ([]viewer.NativeAnnotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]viewer.NativeAnnotation, len(f.Annots))
	for i, a := range f.Annots {
		out[i] = a.Clone()
	}
	return out, nil
}

func (f *Fake) AddNativeAnnotation(_ context.Context, a viewer.NativeAnnotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.adds
	f.adds++
	f.record("AddNativeAnnotation", n)
	if n == f.FailAddAt {
		return errors.New("viewer rejected annotation")
	}
	stored := a.Clone()
	f.nextID++
	stored["id"] = fmt.Sprintf("fake_%d", f.nextID)
	f.Annots = append(f.Annots, stored)
	return nil
}

func (f *Fake) RemoveAllNativeAnnotations(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveAllNativeAnnotations", nil)
	f.Annots = nil
	return nil
}

func (f *Fake) ExportCurrentDocumentBytes(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Doc, nil
}

// RasterizeCount returns how many times page was requested.
func (f *Fake) RasterizeCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Rasterize[page]
}

var (
	_ viewer.Viewer   = (*Fake)(nil)
	_ viewer.HandTool = (*Fake)(nil)
)
