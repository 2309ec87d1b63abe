package configuration

import "fmt"

// DensityDefault is the baseline density at which one dp equals one pixel.
const DensityDefault = 160

// WindowingMode describes how a container is laid out on its display.
type WindowingMode int

const (
	WindowingModeUndefined WindowingMode = iota
	WindowingModeFullscreen
	WindowingModeMultiWindow
	WindowingModeFreeform
	WindowingModePinned
)

func (m WindowingMode) String() string {
	switch m {
	case WindowingModeFullscreen:
		return "fullscreen"
	case WindowingModeMultiWindow:
		return "multi-window"
	case WindowingModeFreeform:
		return "freeform"
	case WindowingModePinned:
		return "pinned"
	default:
		return "undefined"
	}
}

// Floating reports whether containers in this mode are free-floating windows.
func (m WindowingMode) Floating() bool {
	return m == WindowingModeFreeform || m == WindowingModePinned
}

// ActivityType tags what kind of activity a container hosts.
type ActivityType int

const (
	ActivityTypeUndefined ActivityType = iota
	ActivityTypeStandard
	ActivityTypeHome
	ActivityTypeRecents
	ActivityTypeAssistant
)

func (t ActivityType) String() string {
	switch t {
	case ActivityTypeStandard:
		return "standard"
	case ActivityTypeHome:
		return "home"
	case ActivityTypeRecents:
		return "recents"
	case ActivityTypeAssistant:
		return "assistant"
	default:
		return "undefined"
	}
}

// UI mode bits.
const (
	UIModeTypeMask       = 0x0f
	UIModeTypeNormal     = 0x01
	UIModeTypeDesk       = 0x02
	UIModeTypeCar        = 0x03
	UIModeTypeTelevision = 0x04
	UIModeTypeWatch      = 0x06

	UIModeNightMask = 0x30
	UIModeNightNo   = 0x10
	UIModeNightYes  = 0x20
)

// Screen layout bits.
const (
	ScreenLayoutSizeMask   = 0x0f
	ScreenLayoutSizeSmall  = 0x01
	ScreenLayoutSizeNormal = 0x02
	ScreenLayoutSizeLarge  = 0x03
	ScreenLayoutSizeXLarge = 0x04

	ScreenLayoutLongMask = 0x30
	ScreenLayoutLongNo   = 0x10
	ScreenLayoutLongYes  = 0x20
)

// WindowConfiguration is the window-level part of a Configuration. Changes to
// it alone are reported to clients but never force a relaunch.
type WindowConfiguration struct {
	Bounds        Rect          `json:"bounds" toml:"bounds"`
	AppBounds     Rect          `json:"appBounds" toml:"app_bounds"`
	MaxBounds     Rect          `json:"maxBounds" toml:"max_bounds"`
	Rotation      Rotation      `json:"rotation" toml:"rotation"`
	WindowingMode WindowingMode `json:"windowingMode" toml:"windowing_mode"`
	ActivityType  ActivityType  `json:"activityType" toml:"activity_type"`
}

// Merge applies every defined field of o on top of w.
func (w WindowConfiguration) Merge(o WindowConfiguration) WindowConfiguration {
	if !o.Bounds.Empty() {
		w.Bounds = o.Bounds
	}
	if !o.AppBounds.Empty() {
		w.AppBounds = o.AppBounds
	}
	if !o.MaxBounds.Empty() {
		w.MaxBounds = o.MaxBounds
	}
	if o.Rotation != RotationUndefined {
		w.Rotation = o.Rotation
	}
	if o.WindowingMode != WindowingModeUndefined {
		w.WindowingMode = o.WindowingMode
	}
	if o.ActivityType != ActivityTypeUndefined {
		w.ActivityType = o.ActivityType
	}
	return w
}

// Configuration is an immutable-by-convention snapshot of the attributes an
// activity's resources depend on. Zero values mean "undefined" so a
// Configuration doubles as an override delta.
type Configuration struct {
	Seq int `json:"seq" toml:"seq"`

	FontScale             float64     `json:"fontScale,omitempty" toml:"font_scale"`
	Locale                string      `json:"locale,omitempty" toml:"locale"`
	Touchscreen           int         `json:"touchscreen,omitempty" toml:"touchscreen"`
	Keyboard              int         `json:"keyboard,omitempty" toml:"keyboard"`
	KeyboardHidden        int         `json:"keyboardHidden,omitempty" toml:"keyboard_hidden"`
	Navigation            int         `json:"navigation,omitempty" toml:"navigation"`
	Orientation           Orientation `json:"orientation,omitempty" toml:"orientation"`
	ScreenLayout          int         `json:"screenLayout,omitempty" toml:"screen_layout"`
	UIMode                int         `json:"uiMode,omitempty" toml:"ui_mode"`
	ScreenWidthDp         int         `json:"screenWidthDp,omitempty" toml:"screen_width_dp"`
	ScreenHeightDp        int         `json:"screenHeightDp,omitempty" toml:"screen_height_dp"`
	SmallestScreenWidthDp int         `json:"smallestScreenWidthDp,omitempty" toml:"smallest_screen_width_dp"`
	DensityDPI            int         `json:"densityDpi,omitempty" toml:"density_dpi"`
	ColorMode             int         `json:"colorMode,omitempty" toml:"color_mode"`
	FontWeightAdjustment  int         `json:"fontWeightAdjustment,omitempty" toml:"font_weight_adjustment"`
	AssetsSeq             int         `json:"assetsSeq,omitempty" toml:"assets_seq"`

	Window WindowConfiguration `json:"window" toml:"window"`
}

// Unset returns an empty override carrying only the given activity type.
func Unset(activityType ActivityType) Configuration {
	return Configuration{Window: WindowConfiguration{ActivityType: activityType}}
}

// IsUnset reports whether no field other than the activity type is defined.
func (c Configuration) IsUnset() bool {
	return c == Unset(c.Window.ActivityType)
}

// Merge returns c with every defined field of o applied on top.
func (c Configuration) Merge(o Configuration) Configuration {
	if o.Seq != 0 {
		c.Seq = o.Seq
	}
	if o.FontScale > 0 {
		c.FontScale = o.FontScale
	}
	if o.Locale != "" {
		c.Locale = o.Locale
	}
	if o.Touchscreen != 0 {
		c.Touchscreen = o.Touchscreen
	}
	if o.Keyboard != 0 {
		c.Keyboard = o.Keyboard
	}
	if o.KeyboardHidden != 0 {
		c.KeyboardHidden = o.KeyboardHidden
	}
	if o.Navigation != 0 {
		c.Navigation = o.Navigation
	}
	if o.Orientation != OrientationUndefined {
		c.Orientation = o.Orientation
	}
	if o.ScreenLayout != 0 {
		c.ScreenLayout = o.ScreenLayout
	}
	if o.UIMode != 0 {
		c.UIMode = o.UIMode
	}
	if o.ScreenWidthDp != 0 {
		c.ScreenWidthDp = o.ScreenWidthDp
	}
	if o.ScreenHeightDp != 0 {
		c.ScreenHeightDp = o.ScreenHeightDp
	}
	if o.SmallestScreenWidthDp != 0 {
		c.SmallestScreenWidthDp = o.SmallestScreenWidthDp
	}
	if o.DensityDPI != 0 {
		c.DensityDPI = o.DensityDPI
	}
	if o.ColorMode != 0 {
		c.ColorMode = o.ColorMode
	}
	if o.FontWeightAdjustment != 0 {
		c.FontWeightAdjustment = o.FontWeightAdjustment
	}
	if o.AssetsSeq != 0 {
		c.AssetsSeq = o.AssetsSeq
	}
	c.Window = c.Window.Merge(o.Window)
	return c
}

// Diff returns the set of axes on which next differs from c. Fields left
// undefined in next are ignored.
func (c Configuration) Diff(next Configuration) Change {
	var changed Change
	if next.FontScale > 0 && c.FontScale != next.FontScale {
		changed |= ChangeFontScale
	}
	if next.Locale != "" && c.Locale != next.Locale {
		changed |= ChangeLocale
	}
	if next.Touchscreen != 0 && c.Touchscreen != next.Touchscreen {
		changed |= ChangeTouchscreen
	}
	if next.Keyboard != 0 && c.Keyboard != next.Keyboard {
		changed |= ChangeKeyboard
	}
	if next.KeyboardHidden != 0 && c.KeyboardHidden != next.KeyboardHidden {
		changed |= ChangeKeyboardHidden
	}
	if next.Navigation != 0 && c.Navigation != next.Navigation {
		changed |= ChangeNavigation
	}
	if next.Orientation != OrientationUndefined && c.Orientation != next.Orientation {
		changed |= ChangeOrientation
	}
	if next.ScreenLayout != 0 && c.ScreenLayout != next.ScreenLayout {
		changed |= ChangeScreenLayout
	}
	if next.UIMode != 0 && c.UIMode != next.UIMode {
		changed |= ChangeUIMode
	}
	if (next.ScreenWidthDp != 0 && c.ScreenWidthDp != next.ScreenWidthDp) ||
		(next.ScreenHeightDp != 0 && c.ScreenHeightDp != next.ScreenHeightDp) {
		changed |= ChangeScreenSize
	}
	if next.SmallestScreenWidthDp != 0 && c.SmallestScreenWidthDp != next.SmallestScreenWidthDp {
		changed |= ChangeSmallestScreenSize
	}
	if next.DensityDPI != 0 && c.DensityDPI != next.DensityDPI {
		changed |= ChangeDensity
	}
	if next.ColorMode != 0 && c.ColorMode != next.ColorMode {
		changed |= ChangeColorMode
	}
	if next.FontWeightAdjustment != 0 && c.FontWeightAdjustment != next.FontWeightAdjustment {
		changed |= ChangeFontWeightAdjustment
	}
	if next.AssetsSeq != 0 && c.AssetsSeq != next.AssetsSeq {
		changed |= ChangeAssetsPaths
	}
	if c.Window.Merge(next.Window) != c.Window {
		changed |= ChangeWindowConfiguration
	}
	return changed
}

// Equal reports whether both snapshots carry the same values, ignoring Seq.
func (c Configuration) Equal(o Configuration) bool {
	c.Seq, o.Seq = 0, 0
	return c == o
}

// IsOtherSeqNewer reports whether other carries a newer sequence number,
// tolerating wrap-around.
func (c Configuration) IsOtherSeqNewer(other Configuration) bool {
	if other.Seq == 0 || c.Seq == 0 {
		return true
	}
	diff := other.Seq - c.Seq
	if diff > 0x10000000 || diff < -0x10000000 {
		return diff < 0
	}
	return diff > 0
}

// InDeskUIMode reports whether the UI mode type is desk.
func (c Configuration) InDeskUIMode() bool {
	return c.UIMode&UIModeTypeMask == UIModeTypeDesk
}

func (c Configuration) String() string {
	return fmt.Sprintf("{seq=%d %ddpi %s w%ddp h%ddp sw%ddp uimode=%#x %s rot=%s bounds=%s app=%s}",
		c.Seq, c.DensityDPI, c.Orientation, c.ScreenWidthDp, c.ScreenHeightDp,
		c.SmallestScreenWidthDp, c.UIMode, c.Window.WindowingMode, c.Window.Rotation,
		c.Window.Bounds, c.Window.AppBounds)
}

// ComputeScreenOverrides fills the dp-based fields of c from appBounds and
// density, the way a container derives its configuration from its bounds.
func ComputeScreenOverrides(c Configuration, bounds, appBounds Rect, density int) Configuration {
	if density <= 0 {
		density = DensityDefault
	}
	c.Window.Bounds = bounds
	c.Window.AppBounds = appBounds
	c.DensityDPI = density
	c.ScreenWidthDp = appBounds.Width() * DensityDefault / density
	c.ScreenHeightDp = appBounds.Height() * DensityDefault / density
	c.SmallestScreenWidthDp = min(c.ScreenWidthDp, c.ScreenHeightDp)
	c.Orientation = OrientationOf(appBounds)
	c.ScreenLayout = ComputeScreenLayout(c.ScreenLayout, c.ScreenWidthDp, c.ScreenHeightDp)
	return c
}

// ComputeScreenLayout replaces the size and long bits of base using the
// given dp dimensions.
func ComputeScreenLayout(base, widthDp, heightDp int) int {
	longSize := max(widthDp, heightDp)
	shortSize := min(widthDp, heightDp)
	var size, long int
	if longSize < 470 {
		size = ScreenLayoutSizeSmall
		long = ScreenLayoutLongNo
	} else {
		switch {
		case longSize >= 960 && shortSize >= 720:
			size = ScreenLayoutSizeXLarge
		case longSize >= 640 && shortSize >= 480:
			size = ScreenLayoutSizeLarge
		default:
			size = ScreenLayoutSizeNormal
		}
		if (longSize*3)/5 >= shortSize-1 {
			long = ScreenLayoutLongYes
		} else {
			long = ScreenLayoutLongNo
		}
	}
	return (base &^ (ScreenLayoutSizeMask | ScreenLayoutLongMask)) | size | long
}
