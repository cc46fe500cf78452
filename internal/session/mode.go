package session

import (
	"fmt"
	"strings"

	"github.com/dgallion1/markview/internal/viewer"
)

// Mode is the annotation-editing mode. Exactly one value is active at a time.
type Mode int

const (
	ModeNone Mode = iota
	ModeHighlight
	ModeTextBox
	ModeHand
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeHighlight:
		return "highlight"
	case ModeTextBox:
		return "textbox"
	case ModeHand:
		return "hand"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText renders the mode by name for JSON snapshots.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode accepts the names produced by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ModeNone, nil
	case "highlight":
		return ModeHighlight, nil
	case "textbox", "text-box", "text_box", "freetext":
		return ModeTextBox, nil
	case "hand", "pan":
		return ModeHand, nil
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

// editorMode maps a mode to the viewer's native editor code. Hand is a
// cursor tool, not an editor, so it leaves the editor idle.
func (m Mode) editorMode() viewer.EditorMode {
	switch m {
	case ModeHighlight:
		return viewer.EditorHighlight
	case ModeTextBox:
		return viewer.EditorFreeText
	}
	return viewer.EditorNone
}
