package configuration

import (
	"encoding/json"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func portrait() Configuration {
	return ComputeScreenOverrides(Configuration{FontScale: 1, Locale: "en-US", UIMode: UIModeTypeNormal | UIModeNightNo},
		NewRect(1080, 1920), NewRect(1080, 1920), 480)
}

func TestDiffIgnoresUndefinedFields(t *testing.T) {
	base := portrait()
	assert.Equal(t, Change(0), base.Diff(Configuration{}))
	assert.Equal(t, Change(0), base.Diff(base))
}

func TestDiffReportsRotation(t *testing.T) {
	base := portrait()
	rotated := ComputeScreenOverrides(base, NewRect(1920, 1080), NewRect(1920, 1080), 480)

	got := base.Diff(rotated)
	assert.True(t, got.Has(ChangeOrientation))
	assert.True(t, got.Has(ChangeScreenSize))
	assert.True(t, got.Has(ChangeWindowConfiguration))
	assert.False(t, got.Has(ChangeSmallestScreenSize))
	assert.True(t, got.Without(ChangeWindowConfiguration).ResizeOnly())
}

func TestDiffUIModeAndDensity(t *testing.T) {
	base := portrait()
	next := base
	next.UIMode = UIModeTypeDesk | UIModeNightNo
	next.DensityDPI = 320

	got := base.Diff(next)
	assert.Equal(t, ChangeUIMode|ChangeDensity, got)
	assert.True(t, next.InDeskUIMode())
	assert.False(t, got.ResizeOnly())
}

func TestMergeKeepsUndefined(t *testing.T) {
	base := portrait()
	merged := base.Merge(Configuration{Locale: "fr-FR"})
	assert.Equal(t, "fr-FR", merged.Locale)
	assert.Equal(t, base.ScreenWidthDp, merged.ScreenWidthDp)
	assert.Equal(t, base.Window, merged.Window)
}

func TestUnset(t *testing.T) {
	u := Unset(ActivityTypeStandard)
	assert.True(t, u.IsUnset())
	assert.Equal(t, ActivityTypeStandard, u.Window.ActivityType)

	u.ScreenWidthDp = 10
	assert.False(t, u.IsUnset())
}

func TestEqualIgnoresSeq(t *testing.T) {
	a := portrait()
	b := a
	a.Seq, b.Seq = 3, 9
	assert.True(t, a.Equal(b))
	assert.True(t, a.IsOtherSeqNewer(b))
	assert.False(t, b.IsOtherSeqNewer(a))
}

func TestComputeScreenOverrides(t *testing.T) {
	c := portrait()
	assert.Equal(t, 360, c.ScreenWidthDp)
	assert.Equal(t, 640, c.ScreenHeightDp)
	assert.Equal(t, 360, c.SmallestScreenWidthDp)
	assert.Equal(t, OrientationPortrait, c.Orientation)
	assert.Equal(t, ScreenLayoutSizeNormal, c.ScreenLayout&ScreenLayoutSizeMask)
	assert.Equal(t, ScreenLayoutLongYes, c.ScreenLayout&ScreenLayoutLongMask)
}

func TestChangeStringAndParse(t *testing.T) {
	c, err := ParseChanges("orientation|screenSize, uiMode")
	require.NoError(t, err)
	assert.Equal(t, ChangeOrientation|ChangeScreenSize|ChangeUIMode, c)
	assert.Equal(t, "orientation|uiMode|screenSize", c.String())
	assert.Equal(t, "none", Change(0).String())

	_, err = ParseChanges("bogus")
	assert.Error(t, err)
	assert.Panics(t, func() { MustParseChanges("bogus") })
}

func TestSizeBucketsFilterDiff(t *testing.T) {
	buckets := &SizeBuckets{Horizontal: []int{600}, Smallest: []int{600}}
	prev := Configuration{ScreenWidthDp: 400, ScreenHeightDp: 700, SmallestScreenWidthDp: 400}

	within := prev
	within.ScreenWidthDp = 500
	within.SmallestScreenWidthDp = 500
	diff := prev.Diff(within)
	assert.Equal(t, ChangeScreenSize|ChangeSmallestScreenSize, diff)
	assert.Equal(t, Change(0), buckets.FilterDiff(diff, prev, within))

	crossing := prev
	crossing.ScreenWidthDp = 650
	crossing.SmallestScreenWidthDp = 650
	diff = prev.Diff(crossing)
	assert.Equal(t, diff, buckets.FilterDiff(diff, prev, crossing))

	var none *SizeBuckets
	assert.Equal(t, diff, none.FilterDiff(diff, prev, crossing))
}

func TestSizeBucketsScreenLayout(t *testing.T) {
	prev := Configuration{ScreenLayout: ScreenLayoutSizeNormal | ScreenLayoutLongNo}
	next := Configuration{ScreenLayout: ScreenLayoutSizeLarge | ScreenLayoutLongNo}
	diff := prev.Diff(next)
	require.Equal(t, ChangeScreenLayout, diff)

	assert.Equal(t, Change(0), (&SizeBuckets{}).FilterDiff(diff, prev, next))
	assert.Equal(t, ChangeScreenLayout, (&SizeBuckets{ScreenLayoutSize: true}).FilterDiff(diff, prev, next))
}

func TestRectOps(t *testing.T) {
	r := NewRect(1000, 1800)
	assert.Equal(t, Rect{Right: 500, Bottom: 900}, r.Scale(0.5))
	assert.Equal(t, Rect{Left: 10, Top: 20, Right: 1010, Bottom: 1820}, r.Offset(10, 20))
	assert.Equal(t, Rect{Left: 5, Top: 5, Right: 1005, Bottom: 1805}, r.Offset(10, 20).OffsetTo(5, 5))
	assert.Equal(t, Rect{Top: 50, Right: 1000, Bottom: 1700}, r.Inset(Insets{Top: 50, Bottom: 100}))
	assert.True(t, r.Intersect(Rect{Left: 2000, Right: 3000, Bottom: 10}).Empty())
	assert.Equal(t, OrientationPortrait, OrientationOf(r))
}

func TestRotationText(t *testing.T) {
	var r Rotation
	require.NoError(t, r.UnmarshalText([]byte("270")))
	assert.Equal(t, Rotation270, r)
	require.NoError(t, r.UnmarshalText([]byte("ROTATION_90")))
	assert.Equal(t, Rotation90, r)
	require.NoError(t, r.UnmarshalText(nil))
	assert.Equal(t, RotationUndefined, r)
	assert.Error(t, r.UnmarshalText([]byte("45")))

	assert.Equal(t, 1, Rotation90.Index())
	assert.Equal(t, -1, RotationUndefined.Index())
	assert.True(t, Rotation270.Quarter())
}

func TestConfigurationRoundTripsThroughTOMLAndJSON(t *testing.T) {
	c := portrait()
	c.Window.Rotation = Rotation90

	raw, err := toml.Marshal(c)
	require.NoError(t, err)
	var fromTOML Configuration
	require.NoError(t, toml.Unmarshal(raw, &fromTOML))
	assert.Equal(t, c, fromTOML)

	js, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"rotation":"90"`)
	var fromJSON Configuration
	require.NoError(t, json.Unmarshal(js, &fromJSON))
	assert.Equal(t, c, fromJSON)
}

func TestDisplayConfiguration(t *testing.T) {
	got := Display{Width: 1080, Height: 1920, Density: 480}.Configuration(3)
	assert.Equal(t, Change(0), portrait().Diff(got).Without(ChangeWindowConfiguration))
	assert.Equal(t, 3, got.Seq)
	assert.Equal(t, Rotation0, got.Window.Rotation)
	assert.Equal(t, WindowingModeFullscreen, got.Window.WindowingMode)
	assert.Equal(t, NewRect(1080, 1920), got.Window.MaxBounds)
	assert.Equal(t, 360, got.ScreenWidthDp)

	desk := Display{Width: 1920, Height: 1080, Rotation: Rotation90, UIMode: ParseUIModeType("Desk")}.Configuration(1)
	assert.True(t, desk.InDeskUIMode())
	assert.Equal(t, Rotation90, desk.Window.Rotation)
	assert.Equal(t, DensityDefault, desk.DensityDPI)
	assert.Equal(t, OrientationLandscape, desk.Orientation)
}

func TestParseUIModeType(t *testing.T) {
	assert.Equal(t, UIModeTypeCar, ParseUIModeType("car"))
	assert.Equal(t, UIModeTypeTelevision, ParseUIModeType("tv"))
	assert.Equal(t, UIModeTypeNormal, ParseUIModeType("bogus"))
}
