// Package report summarizes a document's annotations as Markdown, HTML or
// DOCX.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dgallion1/markview/internal/annotation"
	"github.com/fumiama/go-docx"
	"github.com/yuin/goldmark"
)

// Format names an output format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
)

// ParseFormat accepts md, markdown, html and docx. Empty means Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "docx":
		return FormatDOCX, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "text/markdown; charset=utf-8"
}

// Entry is one annotation in report form.
type Entry struct {
	Page    int // 1-based
	Type    annotation.Type
	Rect    [4]float64
	Color   string // "#RRGGBB", empty when unset
	Opacity float64
	Text    string // free-text body
	Excerpt string // document text under the annotation
}

// Report lists a document's annotations by page.
type Report struct {
	Document  string
	Generated time.Time
	Entries   []Entry
}

// ExcerptFunc returns the document text inside rect on page.
type ExcerptFunc func(page int, rect [4]float64) string

// Build converts annotations into report entries ordered by page. excerpt
// may be nil.
func Build(document string, anns []annotation.Annotation, excerpt ExcerptFunc, now time.Time) Report {
	r := Report{Document: document, Generated: now.UTC()}
	for _, a := range anns {
		e := Entry{Page: a.PageIndex() + 1, Type: a.Type()}
		e.Rect, _ = a.Rect()
		if rgb, ok := a.Color(); ok {
			e.Color = hexColor(rgb)
		}
		if op, ok := a.Opacity(); ok {
			e.Opacity = op
		}
		if v, ok := a["value"].(string); ok {
			e.Text = v
		}
		if excerpt != nil && e.Type == annotation.Highlight {
			e.Excerpt = excerpt(e.Page, e.Rect)
		}
		r.Entries = append(r.Entries, e)
	}
	sort.SliceStable(r.Entries, func(i, j int) bool { return r.Entries[i].Page < r.Entries[j].Page })
	return r
}

// Pages returns the distinct pages with annotations, ascending.
func (r Report) Pages() []int {
	var pages []int
	for _, e := range r.Entries {
		if len(pages) == 0 || pages[len(pages)-1] != e.Page {
			pages = append(pages, e.Page)
		}
	}
	return pages
}

func (r Report) title() string {
	if r.Document == "" {
		return "Annotation report"
	}
	return "Annotation report: " + r.Document
}

func (r Report) summary() string {
	return fmt.Sprintf("Generated %s. %d annotation(s) on %d page(s).",
		r.Generated.Format("2006-01-02 15:04 MST"), len(r.Entries), len(r.Pages()))
}

// describe renders one entry as plain text.
func (e Entry) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at [%g, %g, %g, %g]", e.Type, e.Rect[0], e.Rect[1], e.Rect[2], e.Rect[3])
	if e.Color != "" {
		fmt.Fprintf(&b, ", color %s", e.Color)
	}
	if e.Type == annotation.Highlight {
		fmt.Fprintf(&b, ", opacity %.2f", e.Opacity)
	}
	return b.String()
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
	"<", "&lt;", ">", "&gt;", "#", `\#`, "\r", " ", "\n", " ",
)

// Markdown renders the report.
func (r Report) Markdown() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n%s\n", mdEscaper.Replace(r.title()), r.summary())
	if len(r.Entries) == 0 {
		b.WriteString("\nNo annotations.\n")
		return b.Bytes()
	}

	page := 0
	for _, e := range r.Entries {
		if e.Page != page {
			page = e.Page
			fmt.Fprintf(&b, "\n## Page %d\n\n", page)
		}
		fmt.Fprintf(&b, "- **%s**", mdEscaper.Replace(e.describe()))
		if e.Text != "" {
			fmt.Fprintf(&b, ": %s", mdEscaper.Replace(e.Text))
		}
		if e.Excerpt != "" {
			fmt.Fprintf(&b, ": \"%s\"", mdEscaper.Replace(e.Excerpt))
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// HTML renders the Markdown form with goldmark. Raw HTML in annotation text
// never reaches the output.
func (r Report) HTML() ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(r.Markdown(), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(htmlEscaper.Replace(r.title()))
	b.WriteString("</title></head><body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body></html>\n")
	return b.Bytes(), nil
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// WriteDOCX renders the report as a Word document.
func (r Report) WriteDOCX(w io.Writer) error {
	doc := docx.New().WithDefaultTheme().WithA4Page()

	doc.AddParagraph().AddText(r.title()).Size("36").Bold()
	doc.AddParagraph().AddText(r.summary()).Italic()
	if len(r.Entries) == 0 {
		doc.AddParagraph().AddText("No annotations.")
	}

	page := 0
	for _, e := range r.Entries {
		if e.Page != page {
			page = e.Page
			doc.AddParagraph().AddText(fmt.Sprintf("Page %d", page)).Size("28").Bold()
		}
		p := doc.AddParagraph()
		p.AddText(e.describe()).Bold()
		if e.Text != "" {
			run := p.AddText(": " + e.Text)
			if e.Color != "" {
				run.Color(strings.TrimPrefix(e.Color, "#"))
			}
		}
		if e.Excerpt != "" {
			run := p.AddText(": " + e.Excerpt)
			if e.Color != "" {
				run.Shade("clear", "auto", strings.TrimPrefix(e.Color, "#"))
			}
		}
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// Render writes the report in format f.
func (r Report) Render(w io.Writer, f Format) error {
	switch f {
	case FormatHTML:
		data, err := r.HTML()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatDOCX:
		return r.WriteDOCX(w)
	default:
		_, err := w.Write(r.Markdown())
		return err
	}
}

func hexColor(rgb [3]float64) string {
	c := func(v float64) int {
		return int(min(max(v, 0), 255) + 0.5)
	}
	return fmt.Sprintf("#%02X%02X%02X", c(rgb[0]), c(rgb[1]), c(rgb[2]))
}
