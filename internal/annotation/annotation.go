// Package annotation converts between the viewer's native annotation objects
// and the portable JSON interchange format, and validates imported data.
package annotation

import (
	"encoding/json"
	"fmt"
	"math"
)

// Type is the numeric annotation type used in the interchange format.
type Type int

const (
	FreeText  Type = 3
	Highlight Type = 9
	Stamp     Type = 13
	Ink       Type = 15
	Popup     Type = 16
)

var typeNames = map[Type]string{
	FreeText:  "FreeText",
	Highlight: "Highlight",
	Stamp:     "Stamp",
	Ink:       "Ink",
	Popup:     "Popup",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Supported reports whether t may cross the import boundary.
func (t Type) Supported() bool {
	_, ok := typeNames[t]
	return ok
}

// Annotation is one portable annotation. Keys other than the generic ones
// (annotationType, pageIndex, rect, color, opacity) are type specific and are
// carried through untouched.
type Annotation map[string]any

// Type returns the annotation type, or 0 when the field is missing.
func (a Annotation) Type() Type {
	n, ok := integer(a["annotationType"])
	if !ok {
		return 0
	}
	return Type(n)
}

// PageIndex returns the zero-based page index, or -1 when missing.
func (a Annotation) PageIndex() int {
	n, ok := integer(a["pageIndex"])
	if !ok {
		return -1
	}
	return int(n)
}

// Rect returns the bounding rectangle; ok is false when it is malformed.
func (a Annotation) Rect() (rect [4]float64, ok bool) {
	vals, ok := numbers(a["rect"], 4)
	if !ok {
		return rect, false
	}
	copy(rect[:], vals)
	return rect, true
}

// Color returns the [r,g,b] color, if present and well-formed.
func (a Annotation) Color() (rgb [3]float64, ok bool) {
	vals, ok := numbers(a["color"], 3)
	if !ok {
		return rgb, false
	}
	copy(rgb[:], vals)
	return rgb, true
}

// Opacity returns the opacity value, if numeric.
func (a Annotation) Opacity() (float64, bool) {
	return number(a["opacity"])
}

// number converts a decoded JSON value to float64. Values decoded with
// UseNumber arrive as json.Number; values built in Go arrive as native types.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func integer(v any) (int64, bool) {
	f, ok := number(v)
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) || math.Trunc(f) != f {
		return 0, false
	}
	return int64(f), true
}

func numbers(v any, n int) ([]float64, bool) {
	var items []any
	switch arr := v.(type) {
	case []any:
		items = arr
	case []float64:
		out := make([]float64, len(arr))
		copy(out, arr)
		return out, len(arr) == n
	case []int:
		out := make([]float64, len(arr))
		for i, x := range arr {
			out[i] = float64(x)
		}
		return out, len(arr) == n
	default:
		return nil, false
	}
	if len(items) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, item := range items {
		f, ok := number(item)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
