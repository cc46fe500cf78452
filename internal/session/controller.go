package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/markview/internal/viewer"
)

// ModeController keeps exactly one editing mode active and pushes the
// matching settings to the viewer.
type ModeController struct {
	v     viewer.Viewer
	state *State
	log   *slog.Logger

	mu       sync.Mutex
	settings Settings
}

func NewModeController(v viewer.Viewer, state *State, settings Settings, log *slog.Logger) *ModeController {
	if err := settings.Validate(); err != nil {
		log.Warn("discarding invalid settings", "error", err)
		settings = DefaultSettings()
	}
	return &ModeController{v: v, state: state, settings: settings, log: log}
}

// Activate toggles mode. Requesting the active mode, or ModeNone, turns
// every mode off. Otherwise all modes are deactivated first and the
// requested one is entered with its settings. It returns the resulting mode.
func (c *ModeController) Activate(ctx context.Context, mode Mode) (Mode, error) {
	switch mode {
	case ModeNone, ModeHighlight, ModeTextBox, ModeHand:
	default:
		return c.state.mode(), fmt.Errorf("activate: unknown mode %d", int(mode))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.state.mode()
	if err := c.deactivateLocked(ctx, current); err != nil {
		return ModeNone, err
	}
	if mode == ModeNone || mode == current {
		c.log.Debug("mode deactivated", "previous", current.String())
		return ModeNone, nil
	}

	if err := c.enterLocked(ctx, mode); err != nil {
		// The push may have partially applied; leave the viewer idle.
		if resetErr := c.deactivateLocked(ctx, mode); resetErr != nil {
			c.log.Warn("reset after failed activation", "mode", mode.String(), "error", resetErr)
		}
		return ModeNone, fmt.Errorf("activate %s: %w", mode, err)
	}
	c.state.setMode(mode)
	c.log.Debug("mode activated", "mode", mode.String())
	return mode, nil
}

// deactivateLocked returns the viewer to idle and records ModeNone.
func (c *ModeController) deactivateLocked(ctx context.Context, previous Mode) error {
	c.state.setMode(ModeNone)
	if previous == ModeHand {
		if ht, ok := c.v.(viewer.HandTool); ok {
			if err := ht.SetHandTool(ctx, false); err != nil {
				return fmt.Errorf("disable hand tool: %w", err)
			}
		}
	}
	if err := c.v.SetEditorMode(ctx, viewer.EditorNone); err != nil {
		return fmt.Errorf("reset editor mode: %w", err)
	}
	return nil
}

func (c *ModeController) enterLocked(ctx context.Context, mode Mode) error {
	if err := c.pushLocked(ctx, mode); err != nil {
		return err
	}
	if mode == ModeHand {
		if ht, ok := c.v.(viewer.HandTool); ok {
			if err := ht.SetHandTool(ctx, true); err != nil {
				return fmt.Errorf("enable hand tool: %w", err)
			}
		}
		return nil
	}
	return c.v.SetEditorMode(ctx, mode.editorMode())
}

// pushLocked sends the settings that belong to mode.
func (c *ModeController) pushLocked(ctx context.Context, mode Mode) error {
	switch mode {
	case ModeHighlight:
		if err := c.v.SetHighlightColor(ctx, c.settings.Highlight.Color); err != nil {
			return fmt.Errorf("push highlight color: %w", err)
		}
		if err := c.v.SetHighlightOpacity(ctx, c.settings.Highlight.Opacity); err != nil {
			return fmt.Errorf("push highlight opacity: %w", err)
		}
	case ModeTextBox:
		if err := c.v.SetTextFontColor(ctx, c.settings.TextBox.FontColor); err != nil {
			return fmt.Errorf("push font color: %w", err)
		}
		if err := c.v.SetTextFontSize(ctx, c.settings.TextBox.FontSizePt); err != nil {
			return fmt.Errorf("push font size: %w", err)
		}
	}
	return nil
}

// SetSetting updates one field of mode's settings. When mode is active the
// new value reaches the viewer immediately; if the viewer rejects it the
// previous settings are kept and pushed back.
func (c *ModeController) SetSetting(ctx context.Context, mode Mode, field Field, value string) (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.settings.apply(mode, field, value)
	if err != nil {
		return c.settings, err
	}
	prev := c.settings
	c.settings = next

	if c.state.mode() == mode {
		if err := c.pushLocked(ctx, mode); err != nil {
			c.settings = prev
			if restoreErr := c.pushLocked(ctx, mode); restoreErr != nil {
				c.log.Warn("restore settings after failed push", "mode", mode.String(), "error", restoreErr)
			}
			return c.settings, err
		}
	}
	return c.settings, nil
}

// Settings returns a copy of the current settings.
func (c *ModeController) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Active reports the active mode.
func (c *ModeController) Active() Mode {
	return c.state.mode()
}
