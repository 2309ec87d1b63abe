package sizecompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/actlife/pkg/configuration"
)

func fullConfig(w, h, density int, rot configuration.Rotation) configuration.Configuration {
	c := configuration.ComputeScreenOverrides(configuration.Configuration{}, configuration.NewRect(w, h), configuration.NewRect(w, h), density)
	c.Window.Rotation = rot
	c.Window.WindowingMode = configuration.WindowingModeFullscreen
	return c
}

func frozen(t *testing.T, w, h int, traits Traits) *DisplayInsets {
	t.Helper()
	geo := StaticGeometry{0: {Width: w, Height: h}}
	d, err := NewDisplayInsets(geo, 0, fullConfig(w, h, 320, configuration.Rotation0), traits)
	require.NoError(t, err)
	return d
}

var portraitOnly = Traits{Orientation: configuration.OrientationPortrait}

func TestShouldCreate(t *testing.T) {
	tests := []struct {
		name      string
		traits    Traits
		universal bool
		want      bool
	}{
		{"fixed orientation", portraitOnly, false, true},
		{"fixed aspect ratio", Traits{MaxAspectRatio: 1.86}, false, true},
		{"nothing fixed", Traits{}, false, false},
		{"resizeable", Traits{Resizeable: true, Orientation: configuration.OrientationPortrait}, false, false},
		{"supports size changes", Traits{SupportsSizeChanges: true, Orientation: configuration.OrientationPortrait}, false, false},
		{"universally resizeable", portraitOnly, true, false},
		{"home activity", Traits{Orientation: configuration.OrientationPortrait, ActivityType: configuration.ActivityTypeHome}, false, false},
		{"standard activity", Traits{Orientation: configuration.OrientationPortrait, ActivityType: configuration.ActivityTypeStandard}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldCreate(tt.traits, tt.universal))
		})
	}
}

func TestResolveScalesIntoSmallerContainer(t *testing.T) {
	d := frozen(t, 1000, 1800, portraitOnly)

	parent := fullConfig(500, 950, 320, configuration.Rotation0)
	parent.Window.AppBounds = configuration.Rect{Top: 50, Right: 500, Bottom: 950}

	res := Resolve(d, Request{Parent: parent, Traits: portraitOnly})

	assert.Equal(t, 0.5, res.Scale)
	require.NotNil(t, res.CompatBounds)
	assert.Equal(t, int(0.5*1800)+50, res.CompatBounds.Height())
	assert.Equal(t, 500, res.CompatBounds.Width())
	assert.True(t, res.InSizeCompatModeForBounds)
	assert.Equal(t, configuration.NewRect(1000, 1800), res.Override.Window.AppBounds)
	assert.Equal(t, 500, res.Override.ScreenWidthDp)
	assert.Equal(t, 900, res.Override.ScreenHeightDp)
	assert.Equal(t, 320, res.Override.DensityDPI)
}

func TestResolveIsIdempotent(t *testing.T) {
	d := frozen(t, 1000, 1800, portraitOnly)
	parent := fullConfig(700, 1300, 320, configuration.Rotation0)
	parent.Window.AppBounds = configuration.Rect{Top: 24, Right: 700, Bottom: 1300}
	req := Request{Parent: parent, Traits: portraitOnly}

	first := Resolve(d, req)
	second := Resolve(d, req)
	assert.Equal(t, first, second)
	require.NotNil(t, first.CompatBounds)
	assert.Equal(t, *first.CompatBounds, *second.CompatBounds)
}

func TestComputeScaleNeverUpscalesByDefault(t *testing.T) {
	for cw := 100; cw <= 1000; cw += 150 {
		for ch := 100; ch <= 1000; ch += 150 {
			for _, extra := range []int{0, 1, 37, 500} {
				vw, vh := cw+extra, ch+extra*2
				assert.Equal(t, 1.0, computeScale(cw, ch, vw, vh, false), "content %dx%d view %dx%d", cw, ch, vw, vh)
			}
		}
	}
	assert.Equal(t, 2.0, computeScale(500, 900, 1000, 1800, true))
	assert.Equal(t, 1.0, computeScale(0, 900, 1000, 1800, true))
}

func TestResolveInLargerContainerKeepsScale(t *testing.T) {
	d := frozen(t, 500, 900, portraitOnly)
	parent := fullConfig(1000, 1800, 320, configuration.Rotation0)

	res := Resolve(d, Request{Parent: parent, Traits: portraitOnly})
	assert.Equal(t, 1.0, res.Scale)
	assert.Nil(t, res.CompatBounds)
	// Centred horizontally in the parent.
	assert.Equal(t, configuration.Rect{Left: 250, Right: 750, Bottom: 900}, res.Override.Window.Bounds)
	assert.True(t, res.InSizeCompatModeForBounds)
}

func TestResolveMatchingContainerIsNotCompat(t *testing.T) {
	d := frozen(t, 1000, 1800, portraitOnly)
	res := Resolve(d, Request{Parent: fullConfig(1000, 1800, 320, configuration.Rotation0), Traits: portraitOnly})

	assert.Equal(t, 1.0, res.Scale)
	assert.Nil(t, res.CompatBounds)
	assert.False(t, res.InSizeCompatModeForBounds)
	assert.False(t, res.InSizeCompatMode(d, 320))
	assert.True(t, res.InSizeCompatMode(d, 480))
}

func TestResolveAppliesMaxAspectRatio(t *testing.T) {
	traits := Traits{Orientation: configuration.OrientationPortrait, MaxAspectRatio: 1.5}
	d := frozen(t, 1000, 1800, traits)

	res := Resolve(d, Request{Parent: fullConfig(1000, 1800, 320, configuration.Rotation0), Traits: traits})
	assert.Equal(t, configuration.NewRect(1000, 1500), res.Override.Window.AppBounds)
	assert.Equal(t, 1.0, res.Scale)
	assert.False(t, res.InSizeCompatModeForBounds)
}

func TestContainerBoundsFixedUserRotation(t *testing.T) {
	d := frozen(t, 1000, 1800, portraitOnly)

	bounds, app := d.ContainerBounds(configuration.Rotation90, configuration.OrientationPortrait, true, true)
	assert.Equal(t, 555, bounds.Width())
	assert.Equal(t, 1000, bounds.Height())
	assert.Equal(t, 223, bounds.Left)
	assert.Equal(t, bounds, app)
}

func TestContainerBoundsClipsInsets(t *testing.T) {
	geo := StaticGeometry{0: {
		Width:  1000,
		Height: 2000,
		NonDecor: [4]configuration.Insets{
			{Top: 80, Bottom: 120},
			{Left: 80, Right: 120},
			{Bottom: 80, Top: 120},
			{Right: 80, Left: 120},
		},
	}}
	d, err := NewDisplayInsets(geo, 0, fullConfig(1000, 2000, 320, configuration.Rotation0), portraitOnly)
	require.NoError(t, err)

	bounds, app := d.ContainerBounds(configuration.Rotation0, configuration.OrientationPortrait, true, false)
	assert.Equal(t, configuration.NewRect(1000, 2000), bounds)
	assert.Equal(t, configuration.Rect{Top: 80, Right: 1000, Bottom: 1880}, app)

	// Mismatched orientation offsets by the rotation's insets instead of clipping.
	bounds, app = d.ContainerBounds(configuration.Rotation90, configuration.OrientationPortrait, true, false)
	assert.Equal(t, configuration.Rect{Left: 80, Right: 1080, Bottom: 2000}, bounds)
	assert.Equal(t, bounds, app)
}

func TestInSizeCompatModeForBounds(t *testing.T) {
	container := configuration.NewRect(1000, 1800)
	assert.False(t, InSizeCompatModeForBounds(container, container, Traits{}))
	assert.True(t, InSizeCompatModeForBounds(configuration.NewRect(500, 900), container, Traits{}))
	assert.True(t, InSizeCompatModeForBounds(configuration.NewRect(1200, 1800), container, Traits{}))

	shorter := configuration.NewRect(1000, 1500)
	assert.True(t, InSizeCompatModeForBounds(shorter, container, Traits{}))
	assert.False(t, InSizeCompatModeForBounds(shorter, container, Traits{MaxAspectRatio: 1.5}))

	squareish := configuration.NewRect(1000, 1200)
	assert.False(t, InSizeCompatModeForBounds(configuration.NewRect(800, 1200), squareish, Traits{MinAspectRatio: 1.5}))
}

func TestStaticGeometry(t *testing.T) {
	geo := StaticGeometry{3: {Width: 1080, Height: 2400, NonDecor: [4]configuration.Insets{1: {Left: 90}}}}

	g, err := geo.ResolveContainerGeometry(3, configuration.Rotation90)
	require.NoError(t, err)
	assert.Equal(t, configuration.NewRect(2400, 1080), g.Bounds)
	assert.Equal(t, configuration.Insets{Left: 90}, g.NonDecorInsets)
	assert.Equal(t, g.NonDecorInsets, g.StableInsets)

	_, err = geo.ResolveContainerGeometry(9, configuration.Rotation0)
	assert.ErrorIs(t, err, ErrUnknownDisplay)
	_, err = geo.ResolveContainerGeometry(3, configuration.RotationUndefined)
	assert.ErrorIs(t, err, ErrInvalidRotation)
}

func TestFloatingFreezesOwnBounds(t *testing.T) {
	current := fullConfig(600, 800, 320, configuration.Rotation0)
	current.Window.WindowingMode = configuration.WindowingModeFreeform
	d, err := NewDisplayInsets(StaticGeometry{}, 0, current, portraitOnly)
	require.NoError(t, err)
	assert.True(t, d.Floating)
	assert.Equal(t, 600, d.Width)
	assert.Equal(t, 800, d.Height)
	assert.False(t, Result{}.InSizeCompatMode(d, 480))
}
