package configuration

import (
	"fmt"
	"strings"
)

// Change is a bit mask of configuration axes.
type Change uint32

const (
	ChangeLocale               Change = 0x0004
	ChangeTouchscreen          Change = 0x0008
	ChangeKeyboard             Change = 0x0010
	ChangeKeyboardHidden       Change = 0x0020
	ChangeNavigation           Change = 0x0040
	ChangeOrientation          Change = 0x0080
	ChangeScreenLayout         Change = 0x0100
	ChangeUIMode               Change = 0x0200
	ChangeScreenSize           Change = 0x0400
	ChangeSmallestScreenSize   Change = 0x0800
	ChangeDensity              Change = 0x1000
	ChangeColorMode            Change = 0x4000
	ChangeFontWeightAdjustment Change = 0x10000000
	ChangeWindowConfiguration  Change = 0x20000000
	ChangeFontScale            Change = 0x40000000
	ChangeAssetsPaths          Change = 0x80000000
)

// ResizeChanges are the axes touched by a pure bounds change.
const ResizeChanges = ChangeScreenSize | ChangeSmallestScreenSize | ChangeOrientation | ChangeScreenLayout

var changeNames = []struct {
	bit  Change
	name string
}{
	{ChangeLocale, "locale"},
	{ChangeTouchscreen, "touchscreen"},
	{ChangeKeyboard, "keyboard"},
	{ChangeKeyboardHidden, "keyboardHidden"},
	{ChangeNavigation, "navigation"},
	{ChangeOrientation, "orientation"},
	{ChangeScreenLayout, "screenLayout"},
	{ChangeUIMode, "uiMode"},
	{ChangeScreenSize, "screenSize"},
	{ChangeSmallestScreenSize, "smallestScreenSize"},
	{ChangeDensity, "density"},
	{ChangeColorMode, "colorMode"},
	{ChangeFontWeightAdjustment, "fontWeightAdjustment"},
	{ChangeWindowConfiguration, "windowConfiguration"},
	{ChangeFontScale, "fontScale"},
	{ChangeAssetsPaths, "assetsPaths"},
}

// Has reports whether every bit of o is set in c.
func (c Change) Has(o Change) bool { return c&o == o }

// Without clears the bits of o.
func (c Change) Without(o Change) Change { return c &^ o }

// ResizeOnly reports whether c contains nothing but resize axes.
func (c Change) ResizeOnly() bool { return c&^ResizeChanges == 0 }

// HasResize reports whether c touches any resize axis.
func (c Change) HasResize() bool { return c&ResizeChanges != 0 }

func (c Change) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	rest := c
	for _, n := range changeNames {
		if c&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseChanges parses a list of axis names separated by '|', ',' or spaces,
// e.g. "orientation|screenSize".
func ParseChanges(s string) (Change, error) {
	var out Change
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})
	for _, f := range fields {
		found := false
		for _, n := range changeNames {
			if strings.EqualFold(n.name, f) {
				out |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown configuration change %q", f)
		}
	}
	return out, nil
}

// MustParseChanges is ParseChanges for static declarations.
func MustParseChanges(s string) Change {
	c, err := ParseChanges(s)
	if err != nil {
		panic(err)
	}
	return c
}

// SizeBuckets are the dp thresholds an activity's resources switch on.
// Size diffs that don't cross a threshold are not treated as changes.
type SizeBuckets struct {
	Horizontal       []int `json:"horizontal,omitempty" toml:"horizontal"`
	Vertical         []int `json:"vertical,omitempty" toml:"vertical"`
	Smallest         []int `json:"smallest,omitempty" toml:"smallest"`
	ScreenLayoutSize bool  `json:"screenLayoutSize,omitempty" toml:"screen_layout_size"`
	ScreenLayoutLong bool  `json:"screenLayoutLong,omitempty" toml:"screen_layout_long"`
}

// FilterDiff drops size-related bits of diff that stay within one bucket.
// A nil receiver leaves diff untouched.
func (b *SizeBuckets) FilterDiff(diff Change, prev, next Configuration) Change {
	if b == nil {
		return diff
	}
	if diff&ChangeScreenSize != 0 {
		if !crossesThreshold(b.Horizontal, prev.ScreenWidthDp, next.ScreenWidthDp) &&
			!crossesThreshold(b.Vertical, prev.ScreenHeightDp, next.ScreenHeightDp) {
			diff &^= ChangeScreenSize
		}
	}
	if diff&ChangeSmallestScreenSize != 0 {
		if !crossesThreshold(b.Smallest, prev.SmallestScreenWidthDp, next.SmallestScreenWidthDp) {
			diff &^= ChangeSmallestScreenSize
		}
	}
	nonSizeUnchanged := prev.ScreenLayout&^(ScreenLayoutSizeMask|ScreenLayoutLongMask) ==
		next.ScreenLayout&^(ScreenLayoutSizeMask|ScreenLayoutLongMask)
	if diff&ChangeScreenLayout != 0 && nonSizeUnchanged {
		sizeCrossed := b.ScreenLayoutSize &&
			prev.ScreenLayout&ScreenLayoutSizeMask != next.ScreenLayout&ScreenLayoutSizeMask
		longCrossed := b.ScreenLayoutLong &&
			prev.ScreenLayout&ScreenLayoutLongMask != next.ScreenLayout&ScreenLayoutLongMask
		if !sizeCrossed && !longCrossed {
			diff &^= ChangeScreenLayout
		}
	}
	return diff
}

func crossesThreshold(thresholds []int, prev, next int) bool {
	for _, t := range thresholds {
		if (prev < t && next >= t) || (prev >= t && next < t) {
			return true
		}
	}
	return false
}
