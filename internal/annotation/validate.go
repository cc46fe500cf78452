package annotation

import (
	"errors"
	"fmt"
)

var (
	errNotObject      = errors.New("not a JSON object")
	errType           = errors.New("annotationType must be one of 3, 9, 13, 15, 16")
	errPageIndex      = errors.New("pageIndex must be an integer >= 0")
	errRect           = errors.New("rect must be an array of 4 numbers")
	errHighlightColor = errors.New("highlight color must be an array of 3 numbers")
	errOpacity        = errors.New("highlight opacity must be a number in [0,1]")
)

// Validate checks one decoded element against the interchange schema and
// returns it as an Annotation. Only Highlight carries type-specific rules.
func Validate(v any) (Annotation, error) {
	var a Annotation
	switch obj := v.(type) {
	case map[string]any:
		a = obj
	case Annotation:
		a = obj
	default:
		return nil, errNotObject
	}

	n, ok := integer(a["annotationType"])
	if !ok || !Type(n).Supported() {
		return nil, fmt.Errorf("%w (got %v)", errType, a["annotationType"])
	}
	if p, ok := integer(a["pageIndex"]); !ok || p < 0 {
		return nil, fmt.Errorf("%w (got %v)", errPageIndex, a["pageIndex"])
	}
	if _, ok := a.Rect(); !ok {
		return nil, errRect
	}

	if Type(n) == Highlight {
		if _, ok := a.Color(); !ok {
			return nil, errHighlightColor
		}
		op, ok := number(a["opacity"])
		if !ok || op < 0 || op > 1 {
			return nil, errOpacity
		}
	}
	return a, nil
}
