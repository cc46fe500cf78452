package annotation

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// normalize fills in derived fields on an admitted annotation. FreeText
// entries exported by other tools may carry only the XHTML rich-text body.
func normalize(a Annotation) {
	if a.Type() != FreeText {
		return
	}
	if v, ok := a["value"].(string); ok && v != "" {
		return
	}
	rc, ok := a["richText"].(string)
	if !ok || rc == "" {
		return
	}
	if text := PlainText(rc); text != "" {
		a["value"] = text
	}
}

// PlainText flattens an XHTML fragment to text, one line per block element.
func PlainText(markup string) string {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return ""
	}

	var lines []string
	var cur strings.Builder
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			lines = append(lines, t)
		}
		cur.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br":
				flush()
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "li":
				flush()
			}
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	flush()
	return strings.Join(lines, "\n")
}
