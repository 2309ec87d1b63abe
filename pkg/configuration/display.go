package configuration

import "strings"

// Display describes a physical display. Zero fields take defaults: 160dpi,
// a font scale of 1, en-US and the normal UI mode.
type Display struct {
	Width     int
	Height    int
	Density   int
	Rotation  Rotation
	UIMode    int
	FontScale float64
	Locale    string
}

// Configuration returns the fullscreen configuration of d stamped with seq.
func (d Display) Configuration(seq int) Configuration {
	b := NewRect(d.Width, d.Height)
	c := Configuration{
		Seq:       seq,
		FontScale: d.FontScale,
		Locale:    d.Locale,
		UIMode:    d.UIMode,
	}
	if c.FontScale == 0 {
		c.FontScale = 1
	}
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.UIMode&UIModeTypeMask == 0 {
		c.UIMode |= UIModeTypeNormal
	}
	if c.UIMode&UIModeNightMask == 0 {
		c.UIMode |= UIModeNightNo
	}
	c.Window.Rotation = d.Rotation
	if !d.Rotation.Valid() {
		c.Window.Rotation = Rotation0
	}
	c.Window.WindowingMode = WindowingModeFullscreen
	c.Window.MaxBounds = b
	return ComputeScreenOverrides(c, b, b, d.Density)
}

// ParseUIModeType maps a UI mode name to its type bits. Unknown names are
// the normal mode.
func ParseUIModeType(s string) int {
	switch strings.ToLower(s) {
	case "desk":
		return UIModeTypeDesk
	case "car":
		return UIModeTypeCar
	case "television", "tv":
		return UIModeTypeTelevision
	case "watch":
		return UIModeTypeWatch
	default:
		return UIModeTypeNormal
	}
}
