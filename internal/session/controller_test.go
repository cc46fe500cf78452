package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgallion1/markview/internal/viewer"
	"github.com/dgallion1/markview/internal/viewer/viewertest"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newController(f *viewertest.Fake) *ModeController {
	return NewModeController(f, NewState(), DefaultSettings(), quietLog())
}

func lastEditorMode(t *testing.T, f *viewertest.Fake) viewer.EditorMode {
	t.Helper()
	calls := f.CallsTo("SetEditorMode")
	if len(calls) == 0 {
		t.Fatal("expected at least one SetEditorMode call")
	}
	return calls[len(calls)-1].Arg.(viewer.EditorMode)
}

func TestActivate_EnterEachMode(t *testing.T) {
	tests := []struct {
		mode   Mode
		editor viewer.EditorMode
		hand   bool
	}{
		{ModeHighlight, viewer.EditorHighlight, false},
		{ModeTextBox, viewer.EditorFreeText, false},
		{ModeHand, viewer.EditorNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f := viewertest.New(3)
			c := newController(f)

			got, err := c.Activate(context.Background(), tt.mode)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.mode || c.Active() != tt.mode {
				t.Fatalf("expected active=%s, got returned=%s active=%s", tt.mode, got, c.Active())
			}
			if m := lastEditorMode(t, f); m != tt.editor {
				t.Errorf("expected editor mode %d, got %d", tt.editor, m)
			}
			if f.HandTool != tt.hand {
				t.Errorf("expected hand tool=%v, got %v", tt.hand, f.HandTool)
			}
		})
	}
}

func TestActivate_ToggleTwiceReturnsToNone(t *testing.T) {
	for _, mode := range []Mode{ModeHighlight, ModeTextBox, ModeHand} {
		t.Run(mode.String(), func(t *testing.T) {
			f := viewertest.New(3)
			c := newController(f)
			ctx := context.Background()

			if _, err := c.Activate(ctx, mode); err != nil {
				t.Fatalf("first toggle: %v", err)
			}
			got, err := c.Activate(ctx, mode)
			if err != nil {
				t.Fatalf("second toggle: %v", err)
			}
			if got != ModeNone || c.Active() != ModeNone {
				t.Errorf("expected none after double toggle, got %s", c.Active())
			}
			if m := lastEditorMode(t, f); m != viewer.EditorNone {
				t.Errorf("expected editor mode 0, got %d", m)
			}
			if f.HandTool {
				t.Error("expected hand tool off")
			}
		})
	}
}

func TestActivate_SwitchingDeactivatesPrevious(t *testing.T) {
	f := viewertest.New(3)
	c := newController(f)
	ctx := context.Background()

	if _, err := c.Activate(ctx, ModeHand); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Activate(ctx, ModeHighlight); err != nil {
		t.Fatal(err)
	}
	if c.Active() != ModeHighlight {
		t.Fatalf("expected highlight, got %s", c.Active())
	}
	if f.HandTool {
		t.Error("expected hand tool disabled when switching to highlight")
	}
	if m := lastEditorMode(t, f); m != viewer.EditorHighlight {
		t.Errorf("expected editor mode 9, got %d", m)
	}
}

func TestActivate_PushesModeSettings(t *testing.T) {
	f := viewertest.New(3)
	c := newController(f)

	if _, err := c.Activate(context.Background(), ModeHighlight); err != nil {
		t.Fatal(err)
	}
	if calls := f.CallsTo("SetHighlightColor"); len(calls) != 1 || calls[0].Arg != "#FFFF98" {
		t.Errorf("expected highlight color #FFFF98 pushed once, got %v", calls)
	}
	if calls := f.CallsTo("SetHighlightOpacity"); len(calls) != 1 || calls[0].Arg != 0.5 {
		t.Errorf("expected opacity 0.5 pushed once, got %v", calls)
	}
	if calls := f.CallsTo("SetTextFontColor"); len(calls) != 0 {
		t.Errorf("expected no text settings pushed, got %v", calls)
	}
}

func TestActivate_RejectedPushLeavesNone(t *testing.T) {
	f := viewertest.New(3)
	f.FailSettings = true
	c := newController(f)

	got, err := c.Activate(context.Background(), ModeTextBox)
	if err == nil {
		t.Fatal("expected error when viewer rejects settings")
	}
	if got != ModeNone || c.Active() != ModeNone {
		t.Errorf("expected none after failed activation, got %s", c.Active())
	}
}

func TestActivate_UnknownMode(t *testing.T) {
	c := newController(viewertest.New(1))
	if _, err := c.Activate(context.Background(), Mode(42)); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestActivate_ConcurrentTogglesStayExclusive(t *testing.T) {
	f := viewertest.New(3)
	c := newController(f)
	modes := []Mode{ModeHighlight, ModeTextBox, ModeHand, ModeNone}

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Activate(context.Background(), modes[i%len(modes)])
		}()
	}
	wg.Wait()

	active := c.Active()
	want := viewer.EditorNone
	if active == ModeHighlight || active == ModeTextBox {
		want = active.editorMode()
	}
	if m := lastEditorMode(t, f); m != want {
		t.Errorf("active %s but viewer left in editor mode %d", active, m)
	}
	if f.HandTool != (active == ModeHand) {
		t.Errorf("active %s but hand tool=%v", active, f.HandTool)
	}
}

func TestSetSetting_PushesOnlyWhenActive(t *testing.T) {
	f := viewertest.New(3)
	c := newController(f)
	ctx := context.Background()

	if _, err := c.SetSetting(ctx, ModeHighlight, FieldColor, "#53ffbc"); err != nil {
		t.Fatal(err)
	}
	if calls := f.CallsTo("SetHighlightColor"); len(calls) != 0 {
		t.Fatalf("expected no push while inactive, got %v", calls)
	}

	if _, err := c.Activate(ctx, ModeHighlight); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetSetting(ctx, ModeHighlight, FieldOpacity, "0.25"); err != nil {
		t.Fatal(err)
	}
	if calls := f.CallsTo("SetHighlightOpacity"); calls[len(calls)-1].Arg != 0.25 {
		t.Errorf("expected opacity 0.25 pushed, got %v", calls)
	}
	if calls := f.CallsTo("SetHighlightColor"); calls[len(calls)-1].Arg != "#53FFBC" {
		t.Errorf("expected stored color #53FFBC pushed, got %v", calls)
	}
}

func TestSetSetting_RejectedPushKeepsPrevious(t *testing.T) {
	f := viewertest.New(3)
	c := newController(f)
	ctx := context.Background()

	if _, err := c.Activate(ctx, ModeHighlight); err != nil {
		t.Fatal(err)
	}
	before := c.Settings()
	f.FailSettings = true

	got, err := c.SetSetting(ctx, ModeHighlight, FieldOpacity, "0.25")
	if err == nil {
		t.Fatal("expected push error")
	}
	if errors.Is(err, ErrInvalidSetting) {
		t.Errorf("expected viewer error, got %v", err)
	}
	if got != before || c.Settings() != before {
		t.Errorf("expected settings unchanged %+v, got %+v / %+v", before, got, c.Settings())
	}

	f.FailSettings = false
	_, _ = c.Activate(ctx, ModeHighlight)
	_, _ = c.Activate(ctx, ModeHighlight)
	calls := f.CallsTo("SetHighlightOpacity")
	if last := calls[len(calls)-1].Arg; last != before.Highlight.Opacity {
		t.Errorf("expected reactivation to push opacity %v, got %v", before.Highlight.Opacity, last)
	}
}

func TestSetSetting_SurvivesToggle(t *testing.T) {
	c := newController(viewertest.New(3))
	ctx := context.Background()

	if _, err := c.SetSetting(ctx, ModeTextBox, FieldFontSize, "24"); err != nil {
		t.Fatal(err)
	}
	_, _ = c.Activate(ctx, ModeTextBox)
	_, _ = c.Activate(ctx, ModeTextBox)
	if got := c.Settings().TextBox.FontSizePt; got != 24 {
		t.Errorf("expected font size 24 after toggling, got %d", got)
	}
}

func TestSetSetting_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		field Field
		value string
	}{
		{"bad color", ModeHighlight, FieldColor, "yellow"},
		{"short color", ModeHighlight, FieldColor, "#FFF"},
		{"opacity above one", ModeHighlight, FieldOpacity, "1.5"},
		{"opacity negative", ModeHighlight, FieldOpacity, "-0.1"},
		{"opacity text", ModeHighlight, FieldOpacity, "half"},
		{"odd font size", ModeTextBox, FieldFontSize, "13"},
		{"font size too big", ModeTextBox, FieldFontSize, "40"},
		{"font color", ModeTextBox, FieldFontColor, "#GGGGGG"},
		{"field of other mode", ModeTextBox, FieldOpacity, "0.5"},
		{"hand has no settings", ModeHand, FieldColor, "#000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(viewertest.New(1))
			before := c.Settings()
			_, err := c.SetSetting(context.Background(), tt.mode, tt.field, tt.value)
			if !errors.Is(err, ErrInvalidSetting) {
				t.Fatalf("expected ErrInvalidSetting, got %v", err)
			}
			if c.Settings() != before {
				t.Errorf("expected settings unchanged, got %+v", c.Settings())
			}
		})
	}
}

func TestNewModeController_InvalidSettingsFallBack(t *testing.T) {
	bad := DefaultSettings()
	bad.TextBox.FontSizePt = 7
	c := NewModeController(viewertest.New(1), NewState(), bad, quietLog())
	if c.Settings() != DefaultSettings() {
		t.Errorf("expected defaults, got %+v", c.Settings())
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"highlight", ModeHighlight, false},
		{"TextBox", ModeTextBox, false},
		{"hand", ModeHand, false},
		{"none", ModeNone, false},
		{"", ModeNone, false},
		{"laser", ModeNone, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseMode(%q): expected err=%v, got %v", tt.in, tt.err, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
