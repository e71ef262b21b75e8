package stage

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrOverrideActive is returned when automatic or quick mood changes are
	// attempted while manual override is on.
	ErrOverrideActive = errors.New("manual override is active")
	// ErrOverrideOff is returned when manual output levels are set without
	// override.
	ErrOverrideOff = errors.New("manual override is off")
	// ErrInvalidControl is returned for out-of-range levels or unknown cues,
	// layers and colors.
	ErrInvalidControl = errors.New("invalid control value")
)

// Output names for manual control.
const (
	OutputQLab     = "qlab"
	OutputResolume = "resolume"
	OutputLighting = "lighting"
)

// Cue and layer choices offered by the manual panel.
var (
	QLabCues       = []string{"Ambient_01", "Energetic_02", "Peaceful_03", "STOP"}
	ResolumeLayers = []string{"Background", "Particles", "Overlay", "Safe"}
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// QLabControl is the audio output's manual state.
type QLabControl struct {
	Volume float64 `json:"volume"`
	Cue    string  `json:"current_cue"`
}

// ResolumeControl is the video output's manual state.
type ResolumeControl struct {
	Opacity float64 `json:"opacity"`
	Layer   string  `json:"layer"`
}

// LightingControl is the lighting desk's manual state.
type LightingControl struct {
	Brightness float64 `json:"brightness"`
	Color      string  `json:"color"`
}

// Controls are the per-output manual levels.
type Controls struct {
	QLab     QLabControl     `json:"qlab"`
	Resolume ResolumeControl `json:"resolume"`
	Lighting LightingControl `json:"lighting"`
}

// DefaultControls returns the levels restored by reset.
func DefaultControls() Controls {
	return Controls{
		QLab:     QLabControl{Volume: 0.7, Cue: "Ambient_01"},
		Resolume: ResolumeControl{Opacity: 0.8, Layer: "Background"},
		Lighting: LightingControl{Brightness: 0.6, Color: "#8B5CF6"},
	}
}

// SafeControls returns the levels an emergency stop drives every output to.
func SafeControls() Controls {
	return Controls{
		QLab:     QLabControl{Volume: 0, Cue: "STOP"},
		Resolume: ResolumeControl{Opacity: 0, Layer: "Safe"},
		Lighting: LightingControl{Brightness: 0.3, Color: "#FFFFFF"},
	}
}

// ControlsPatch is a partial manual update; nil fields are left unchanged.
type ControlsPatch struct {
	Volume     *float64 `json:"volume,omitempty"`
	Cue        *string  `json:"current_cue,omitempty"`
	Opacity    *float64 `json:"opacity,omitempty"`
	Layer      *string  `json:"layer,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	Color      *string  `json:"color,omitempty"`
}

// apply returns c with p applied.
func (p ControlsPatch) apply(c Controls) Controls {
	if p.Volume != nil {
		c.QLab.Volume = *p.Volume
	}
	if p.Cue != nil {
		c.QLab.Cue = *p.Cue
	}
	if p.Opacity != nil {
		c.Resolume.Opacity = *p.Opacity
	}
	if p.Layer != nil {
		c.Resolume.Layer = *p.Layer
	}
	if p.Brightness != nil {
		c.Lighting.Brightness = *p.Brightness
	}
	if p.Color != nil {
		c.Lighting.Color = *p.Color
	}
	return c
}

// Validate checks levels are in [0,1] and choices are known.
func (c Controls) Validate() error {
	levels := []struct {
		name string
		v    float64
	}{
		{"qlab volume", c.QLab.Volume},
		{"resolume opacity", c.Resolume.Opacity},
		{"lighting brightness", c.Lighting.Brightness},
	}
	for _, l := range levels {
		if l.v < 0 || l.v > 1 {
			return fmt.Errorf("%w: %s %.2f outside [0,1]", ErrInvalidControl, l.name, l.v)
		}
	}
	if !contains(QLabCues, c.QLab.Cue) {
		return fmt.Errorf("%w: unknown cue %q", ErrInvalidControl, c.QLab.Cue)
	}
	if !contains(ResolumeLayers, c.Resolume.Layer) {
		return fmt.Errorf("%w: unknown layer %q", ErrInvalidControl, c.Resolume.Layer)
	}
	if !hexColor.MatchString(c.Lighting.Color) {
		return fmt.Errorf("%w: color %q is not #RRGGBB", ErrInvalidControl, c.Lighting.Color)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
