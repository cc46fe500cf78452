package pdfview

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// US Letter, used when a page has no usable MediaBox.
const (
	defaultWidth  = 612
	defaultHeight = 792
)

var errNotPDF = errors.New("not a PDF document")

// textRun is one positioned glyph run in page space (origin bottom-left).
type textRun struct {
	X, Y, Size float64
	S          string
}

type page struct {
	width, height float64
	runs          []textRun
}

type document struct {
	data  []byte
	pages []page
}

// parseDocument reads the page tree of a PDF. The reader panics on some
// malformed input, so panics are turned into errors.
func parseDocument(data []byte) (doc *document, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, errNotPDF
	}
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := r.NumPage()
	doc = &document{data: data, pages: make([]page, 0, n)}
	for i := 1; i <= n; i++ {
		doc.pages = append(doc.pages, readPage(r.Page(i)))
	}
	return doc, nil
}

func readPage(p pdflib.Page) page {
	pg := page{width: defaultWidth, height: defaultHeight}
	if p.V.IsNull() {
		return pg
	}
	if box := mediaBox(p.V); box.Len() == 4 {
		w := box.Index(2).Float64() - box.Index(0).Float64()
		h := box.Index(3).Float64() - box.Index(1).Float64()
		if w > 0 && h > 0 {
			pg.width, pg.height = w, h
		}
	}
	pg.runs = pageRuns(p)
	return pg
}

// maxTreeDepth bounds the Parent walk on cyclic page trees.
const maxTreeDepth = 32

// mediaBox returns the page's MediaBox, inherited from the nearest ancestor
// in the page tree when the page does not set one.
func mediaBox(v pdflib.Value) pdflib.Value {
	for range maxTreeDepth {
		if v.IsNull() {
			break
		}
		if box := v.Key("MediaBox"); box.Kind() == pdflib.Array {
			return box
		}
		v = v.Key("Parent")
	}
	return pdflib.Value{}
}

// pageRuns merges the per-character output of the content interpreter into
// runs that share a baseline. Unsupported operators make the interpreter
// panic; such a page simply has no text layer.
func pageRuns(p pdflib.Page) (runs []textRun) {
	defer func() {
		if recover() != nil {
			runs = nil
		}
	}()

	var cur *textRun
	var b strings.Builder
	flush := func() {
		if cur != nil && strings.TrimSpace(b.String()) != "" {
			cur.S = b.String()
			runs = append(runs, *cur)
		}
		cur = nil
		b.Reset()
	}
	for _, t := range p.Content().Text {
		if cur == nil || t.Y != cur.Y || t.FontSize != cur.Size {
			flush()
			cur = &textRun{X: t.X, Y: t.Y, Size: t.FontSize}
		}
		b.WriteString(t.S)
	}
	flush()
	return runs
}

func (d *document) numPages() int { return len(d.pages) }

// pageAt returns the 1-based page n.
func (d *document) pageAt(n int) (page, bool) {
	if n < 1 || n > len(d.pages) {
		return page{}, false
	}
	return d.pages[n-1], true
}
