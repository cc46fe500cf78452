package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/markview/internal/viewer"
	"github.com/dgallion1/markview/internal/viewer/viewertest"
	"github.com/google/go-cmp/cmp"
)

func testCodec() *Codec {
	c := NewCodec(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time {
		return time.Date(2024, 3, 9, 14, 5, 7, 123_000_000, time.UTC)
	}
	return c
}

const validHighlight = `{"annotationType": 9, "pageIndex": 0, "rect": [0,0,100,20], "color": [255,255,0], "opacity": 0.5}`

func TestFilename_FilesystemSafe(t *testing.T) {
	got := Filename(time.Date(2024, 3, 9, 14, 5, 7, 123_000_000, time.UTC))
	want := "pdf-annotations-2024-03-09T14-05-07-123Z.json"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	stem := strings.TrimSuffix(got, ".json")
	if strings.ContainsAny(stem, ":.") {
		t.Errorf("expected no ':' or '.' in %q", stem)
	}
}

func TestExport_NothingToExport(t *testing.T) {
	v := viewertest.New(3)
	f, err := testCodec().Export(context.Background(), v)
	if !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if f != nil {
		t.Errorf("expected no file, got %+v", f)
	}
}

func TestExport_StripsIDs(t *testing.T) {
	v := viewertest.New(3)
	v.Annots = []viewer.NativeAnnotation{
		{"id": "pdfjs_internal_editor_0", "annotationType": 3, "pageIndex": 1, "rect": []float64{1, 2, 3, 4}, "value": "hi"},
		{"id": "pdfjs_internal_editor_1", "annotationType": 9, "pageIndex": 0, "rect": []float64{0, 0, 10, 10}, "color": []int{255, 0, 0}, "opacity": 0.4},
	}

	f, err := testCodec().Export(context.Background(), v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Count != 2 {
		t.Errorf("expected count 2, got %d", f.Count)
	}
	if f.Name != "pdf-annotations-2024-03-09T14-05-07-123Z.json" {
		t.Errorf("unexpected filename %q", f.Name)
	}
	if f.MimeType != "application/json" {
		t.Errorf("expected application/json, got %q", f.MimeType)
	}
	if !strings.Contains(string(f.Data), "\n  {") {
		t.Errorf("expected indented JSON, got %s", f.Data)
	}

	var got []map[string]any
	if err := json.Unmarshal(f.Data, &got); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	for i, a := range got {
		if _, ok := a["id"]; ok {
			t.Errorf("element %d: expected id to be stripped", i)
		}
	}
	if got[0]["value"] != "hi" {
		t.Errorf("expected type-specific field to survive, got %v", got[0]["value"])
	}

	// The viewer's own objects keep their ids.
	if v.Annots[0]["id"] != "pdfjs_internal_editor_0" {
		t.Error("export must not mutate native annotations")
	}
}

func TestImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := viewertest.New(5)
	src.Annots = []viewer.NativeAnnotation{
		{"id": "a", "annotationType": 3, "pageIndex": 0, "rect": []float64{1, 2, 3, 4}, "value": "note", "fontSize": 16},
		{"id": "b", "annotationType": 9, "pageIndex": 2, "rect": []float64{0, 0, 50, 10}, "color": []int{83, 255, 188}, "opacity": 0.5},
		{"id": "c", "annotationType": 15, "pageIndex": 4, "rect": []float64{5, 5, 6, 6}, "thickness": 2},
	}
	c := testCodec()
	f, err := c.Export(ctx, src)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := viewertest.New(5)
	n, err := c.Import(ctx, dst, strings.NewReader(string(f.Data)))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != f.Count {
		t.Fatalf("expected %d imported, got %d", f.Count, n)
	}
	if len(dst.Annots) != 3 {
		t.Fatalf("expected 3 annotations in viewer, got %d", len(dst.Annots))
	}
	for i, a := range dst.Annots {
		stripped := a.Clone()
		delete(stripped, "id")
		if _, err := Validate(map[string]any(stripped)); err != nil {
			t.Errorf("re-added element %d fails validation: %v", i, err)
		}
	}

	// File order is preserved.
	var order []Type
	for _, a := range dst.Annots {
		order = append(order, Annotation(a).Type())
	}
	if diff := cmp.Diff([]Type{FreeText, Highlight, Ink}, order); diff != "" {
		t.Errorf("import order mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_SingleObject(t *testing.T) {
	dst := viewertest.New(1)
	n, err := testCodec().Import(context.Background(), dst, strings.NewReader(validHighlight))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 imported, got %d", n)
	}
}

func TestImport_DropsInvalidElements(t *testing.T) {
	payload := `[
		{"annotationType": 99, "pageIndex": 0, "rect": [0,0,1,1]},
		` + validHighlight + `,
		{"annotationType": 9, "pageIndex": 0, "rect": [0,0,1,1]},
		{"annotationType": 3, "pageIndex": -1, "rect": [0,0,1,1]},
		{"annotationType": 13, "pageIndex": 1, "rect": [0,0,1,1]}
	]`
	dst := viewertest.New(2)
	n, err := testCodec().Import(context.Background(), dst, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}
}

func TestImport_BatchErrors(t *testing.T) {
	tests := []struct {
		name string
		in   io.Reader
		want error
	}{
		{"invalid json", strings.NewReader(`[{"annotationType": 9,`), ErrFormat},
		{"trailing garbage", strings.NewReader(`{} {}`), ErrFormat},
		{"empty array", strings.NewReader(`[]`), ErrEmpty},
		{"nothing valid", strings.NewReader(`[{"annotationType": 99, "pageIndex": 0, "rect": [0,0,1,1]}]`), ErrEmpty},
		{"scalar", strings.NewReader(`"hello"`), ErrEmpty},
		{"not utf-8", strings.NewReader("\xff\xfe[]"), ErrRead},
		{"read failure", io.MultiReader(strings.NewReader("[{"), failingReader{}), ErrRead},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dst := viewertest.New(1)
			n, err := testCodec().Import(context.Background(), dst, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if n != 0 {
				t.Errorf("expected 0 imported, got %d", n)
			}
			if len(dst.CallsTo("AddNativeAnnotation")) != 0 {
				t.Error("expected no viewer insertions on batch failure")
			}
		})
	}
}

func TestImport_PartialFailureIsNotRolledBack(t *testing.T) {
	payload := `[` + validHighlight + `,` + validHighlight + `,` + validHighlight + `]`
	dst := viewertest.New(1)
	dst.FailAddAt = 1

	n, err := testCodec().Import(context.Background(), dst, strings.NewReader(payload))
	var insErr *InsertError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected *InsertError, got %v", err)
	}
	if insErr.Index != 1 || insErr.Added != 1 {
		t.Errorf("expected failure at index 1 after 1 added, got index=%d added=%d", insErr.Index, insErr.Added)
	}
	if n != 1 {
		t.Errorf("expected 1 reported as added, got %d", n)
	}
	if len(dst.Annots) != 1 {
		t.Errorf("expected the first annotation to remain, got %d", len(dst.Annots))
	}
	if calls := len(dst.CallsTo("AddNativeAnnotation")); calls != 2 {
		t.Errorf("expected batch to stop after the failure, got %d insert calls", calls)
	}
}

func TestImport_FreeTextRichText(t *testing.T) {
	payload := `{"annotationType": 3, "pageIndex": 0, "rect": [0,0,10,10],
		"richText": "<p>First <b>line</b></p><p>Second</p>"}`
	dst := viewertest.New(1)
	if _, err := testCodec().Import(context.Background(), dst, strings.NewReader(payload)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := dst.Annots[0]["value"]; got != "First line\nSecond" {
		t.Errorf("expected derived value %q, got %q", "First line\nSecond", got)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<p>a</p><p>b</p>", "a\nb"},
		{"one<br/>two", "one\ntwo"},
		{"<div><span>x</span> y</div><script>bad()</script>", "x y"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := PlainText(tc.in); got != tc.want {
			t.Errorf("PlainText(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }
