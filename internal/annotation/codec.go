package annotation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/markview/internal/viewer"
)

var (
	// ErrNothingToExport means the viewer holds no annotations; no file is produced.
	ErrNothingToExport = errors.New("nothing to export")
	// ErrRead means the import payload could not be read as text.
	ErrRead = errors.New("import read error")
	// ErrFormat means the import payload is not valid JSON.
	ErrFormat = errors.New("import format error")
	// ErrEmpty means no element of the import payload passed validation.
	ErrEmpty = errors.New("no valid annotations")
)

// InsertError reports a viewer failure partway through an import batch.
// Annotations added before Index stay in the viewer.
type InsertError struct {
	Index int
	Added int
	Err   error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("add annotation %d (after %d added): %s", e.Index, e.Added, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

// File is an export artifact.
type File struct {
	Name     string
	Data     []byte
	Count    int
	MimeType string
}

// Source lists the viewer's native annotations.
type Source interface {
	ListNativeAnnotations(ctx context.Context) ([]viewer.NativeAnnotation, error)
}

// Sink accepts native annotations one at a time.
type Sink interface {
	AddNativeAnnotation(ctx context.Context, a viewer.NativeAnnotation) error
}

// Codec exports and imports annotations.
type Codec struct {
	log *slog.Logger
	now func() time.Time
}

func NewCodec(log *slog.Logger) *Codec {
	return &Codec{log: log, now: time.Now}
}

// transientKeys are native fields that never cross the process boundary.
var transientKeys = []string{"id"}

var filenameReplacer = strings.NewReplacer(":", "-", ".", "-")

// Filename returns the export file name for time t.
func Filename(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return "pdf-annotations-" + filenameReplacer.Replace(ts) + ".json"
}

// Export serializes every native annotation in src to a formatted JSON array.
func (c *Codec) Export(ctx context.Context, src Source) (*File, error) {
	natives, err := src.ListNativeAnnotations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	if len(natives) == 0 {
		c.log.Info("export skipped", "reason", ErrNothingToExport.Error())
		return nil, ErrNothingToExport
	}

	out := make([]Annotation, 0, len(natives))
	for _, n := range natives {
		a := Annotation(n.Clone())
		for _, k := range transientKeys {
			delete(a, k)
		}
		out = append(out, a)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal annotations: %w", err)
	}

	f := &File{
		Name:     Filename(c.now()),
		Data:     data,
		Count:    len(out),
		MimeType: "application/json",
	}
	c.log.Info("annotations exported", "count", f.Count, "filename", f.Name)
	return f, nil
}

// Decode reads r and returns the elements that pass validation, in file
// order. Rejected elements are logged and dropped.
func (c *Codec) Decode(r io.Reader) ([]Annotation, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: payload is not UTF-8 text", ErrRead)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrFormat, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: invalid JSON: trailing data", ErrFormat)
	}

	items, ok := doc.([]any)
	if !ok {
		items = []any{doc}
	}

	valid := make([]Annotation, 0, len(items))
	for i, item := range items {
		a, err := Validate(item)
		if err != nil {
			c.log.Warn("dropping invalid annotation", "index", i, "reason", err.Error())
			continue
		}
		normalize(a)
		valid = append(valid, a)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w (%d rejected)", ErrEmpty, len(items))
	}
	return valid, nil
}

// Import decodes r and feeds each valid annotation to dst sequentially, in
// file order. A failure stops the batch without undoing earlier additions.
func (c *Codec) Import(ctx context.Context, dst Sink, r io.Reader) (int, error) {
	anns, err := c.Decode(r)
	if err != nil {
		return 0, err
	}

	added := 0
	for i, a := range anns {
		if err := dst.AddNativeAnnotation(ctx, viewer.NativeAnnotation(a)); err != nil {
			c.log.Error("import stopped", "index", i, "added", added, "error", err)
			return added, &InsertError{Index: i, Added: added, Err: err}
		}
		added++
	}
	c.log.Info("annotations imported", "count", added)
	return added, nil
}
