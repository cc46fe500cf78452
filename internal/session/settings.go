package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// HighlightSettings configure the highlight editor.
type HighlightSettings struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

// TextBoxSettings configure the free-text editor.
type TextBoxSettings struct {
	FontColor  string `json:"font_color"`
	FontSizePt int    `json:"font_size_pt"`
}

// Settings hold the per-mode configuration. They outlive mode toggles.
type Settings struct {
	Highlight HighlightSettings `json:"highlight"`
	TextBox   TextBoxSettings   `json:"text_box"`
}

// Field names a single setting.
type Field string

const (
	FieldColor     Field = "color"
	FieldOpacity   Field = "opacity"
	FieldFontColor Field = "fontColor"
	FieldFontSize  Field = "fontSize"
)

// Toolbar palettes.
var (
	HighlightPalette = []string{"#FFFF98", "#53FFBC", "#80EBFF", "#FFCBE6", "#FF4F5F"}
	TextPalette      = []string{"#000000", "#FF0000", "#0000FF", "#008000", "#FFA500"}
	FontSizes        = []int{10, 12, 14, 16, 18, 20, 24, 28, 32}
)

const (
	minFontSize = 10
	maxFontSize = 32
)

func DefaultSettings() Settings {
	return Settings{
		Highlight: HighlightSettings{Color: "#FFFF98", Opacity: 0.5},
		TextBox:   TextBoxSettings{FontColor: "#000000", FontSizePt: 16},
	}
}

var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate reports the first invalid field.
func (s Settings) Validate() error {
	if !hexColorRe.MatchString(s.Highlight.Color) {
		return fmt.Errorf("%w: highlight color %q", ErrInvalidSetting, s.Highlight.Color)
	}
	if s.Highlight.Opacity < 0 || s.Highlight.Opacity > 1 {
		return fmt.Errorf("%w: highlight opacity %v", ErrInvalidSetting, s.Highlight.Opacity)
	}
	if !hexColorRe.MatchString(s.TextBox.FontColor) {
		return fmt.Errorf("%w: font color %q", ErrInvalidSetting, s.TextBox.FontColor)
	}
	if !validFontSize(s.TextBox.FontSizePt) {
		return fmt.Errorf("%w: font size %d", ErrInvalidSetting, s.TextBox.FontSizePt)
	}
	return nil
}

// validFontSize accepts even sizes from 10 to 32 points.
func validFontSize(pt int) bool {
	return pt >= minFontSize && pt <= maxFontSize && pt%2 == 0
}

// apply returns s with one field of mode m set from its string form.
func (s Settings) apply(m Mode, field Field, value string) (Settings, error) {
	value = strings.TrimSpace(value)
	switch {
	case m == ModeHighlight && field == FieldColor:
		if !hexColorRe.MatchString(value) {
			return s, fmt.Errorf("%w: color %q is not #RRGGBB", ErrInvalidSetting, value)
		}
		s.Highlight.Color = strings.ToUpper(value)
	case m == ModeHighlight && field == FieldOpacity:
		op, err := strconv.ParseFloat(value, 64)
		if err != nil || op < 0 || op > 1 {
			return s, fmt.Errorf("%w: opacity %q is not in [0,1]", ErrInvalidSetting, value)
		}
		s.Highlight.Opacity = op
	case m == ModeTextBox && field == FieldFontColor:
		if !hexColorRe.MatchString(value) {
			return s, fmt.Errorf("%w: font color %q is not #RRGGBB", ErrInvalidSetting, value)
		}
		s.TextBox.FontColor = strings.ToUpper(value)
	case m == ModeTextBox && field == FieldFontSize:
		pt, err := strconv.Atoi(value)
		if err != nil || !validFontSize(pt) {
			return s, fmt.Errorf("%w: font size %q", ErrInvalidSetting, value)
		}
		s.TextBox.FontSizePt = pt
	default:
		return s, fmt.Errorf("%w: %s has no field %q", ErrInvalidSetting, m, field)
	}
	return s, nil
}
