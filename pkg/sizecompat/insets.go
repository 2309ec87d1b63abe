package sizecompat

import (
	"errors"
	"fmt"

	"github.com/bft-labs/actlife/pkg/configuration"
)

// Errors returned by geometry providers.
var (
	ErrUnknownDisplay  = errors.New("actlife: unknown display")
	ErrInvalidRotation = errors.New("actlife: invalid rotation")
)

// ContainerGeometry is the raw geometry of a display at one rotation.
type ContainerGeometry struct {
	Bounds         configuration.Rect
	NonDecorInsets configuration.Insets
	StableInsets   configuration.Insets
}

// Geometry resolves raw container geometry for a display and rotation.
type Geometry interface {
	ResolveContainerGeometry(displayID int, rot configuration.Rotation) (ContainerGeometry, error)
}

// Display describes one display in its natural (ROTATION_0) orientation.
// Insets are indexed by Rotation.Index. Stable insets default to the
// non-decor insets when left empty.
type Display struct {
	Width    int                     `toml:"width"`
	Height   int                     `toml:"height"`
	NonDecor [4]configuration.Insets `toml:"non_decor"`
	Stable   [4]configuration.Insets `toml:"stable"`
}

// StaticGeometry is a fixed table of displays keyed by display id.
type StaticGeometry map[int]Display

// ResolveContainerGeometry implements Geometry.
func (g StaticGeometry) ResolveContainerGeometry(displayID int, rot configuration.Rotation) (ContainerGeometry, error) {
	d, ok := g[displayID]
	if !ok {
		return ContainerGeometry{}, fmt.Errorf("display %d: %w", displayID, ErrUnknownDisplay)
	}
	if !rot.Valid() {
		return ContainerGeometry{}, fmt.Errorf("display %d %s: %w", displayID, rot, ErrInvalidRotation)
	}
	w, h := d.Width, d.Height
	if rot.Quarter() {
		w, h = h, w
	}
	idx := rot.Index()
	stable := d.Stable[idx]
	if stable == (configuration.Insets{}) {
		stable = d.NonDecor[idx]
	}
	return ContainerGeometry{
		Bounds:         configuration.NewRect(w, h),
		NonDecorInsets: d.NonDecor[idx],
		StableInsets:   stable,
	}, nil
}

// DisplayInsets is the geometry an activity in size-compat mode is frozen
// against. Width and Height are in the natural display orientation.
type DisplayInsets struct {
	Width               int
	Height              int
	OriginalRotation    configuration.Rotation
	OriginalOrientation configuration.Orientation
	// LockedRotation is set for fixed-orientation activities; resolution
	// then ignores the parent's rotation.
	LockedRotation configuration.Rotation
	Floating       bool
	NonDecorInsets [4]configuration.Insets
	StableInsets   [4]configuration.Insets

	Density               int
	SmallestScreenWidthDp int
	ScreenLayout          int
	ColorMode             int
}

// NewDisplayInsets freezes the current display geometry for an activity
// whose current full configuration is current. Floating containers freeze
// their own bounds and carry no insets.
func NewDisplayInsets(geo Geometry, displayID int, current configuration.Configuration, traits Traits) (*DisplayInsets, error) {
	d := &DisplayInsets{
		OriginalRotation:      current.Window.Rotation,
		OriginalOrientation:   traits.Orientation,
		Floating:              current.Window.WindowingMode.Floating(),
		Density:               current.DensityDPI,
		SmallestScreenWidthDp: current.SmallestScreenWidthDp,
		ScreenLayout:          current.ScreenLayout & (configuration.ScreenLayoutSizeMask | configuration.ScreenLayoutLongMask),
		ColorMode:             current.ColorMode,
	}
	if traits.Orientation != configuration.OrientationUndefined {
		d.LockedRotation = current.Window.Rotation
	}
	if d.Floating {
		d.Width = current.Window.Bounds.Width()
		d.Height = current.Window.Bounds.Height()
		return d, nil
	}
	natural, err := geo.ResolveContainerGeometry(displayID, configuration.Rotation0)
	if err != nil {
		return nil, err
	}
	d.Width, d.Height = natural.Bounds.Width(), natural.Bounds.Height()
	for i, rot := range configuration.Rotations {
		g, err := geo.ResolveContainerGeometry(displayID, rot)
		if err != nil {
			return nil, err
		}
		d.NonDecorInsets[i] = g.NonDecorInsets
		d.StableInsets[i] = g.StableInsets
	}
	return d, nil
}

// FrameByOrientation returns the frozen display frame laid out in o.
func (d *DisplayInsets) FrameByOrientation(o configuration.Orientation) configuration.Rect {
	long, short := max(d.Width, d.Height), min(d.Width, d.Height)
	if o == configuration.OrientationLandscape {
		return configuration.NewRect(long, short)
	}
	return configuration.NewRect(short, long)
}

// BoundsByRotation returns the frozen display bounds at rot.
func (d *DisplayInsets) BoundsByRotation(rot configuration.Rotation) configuration.Rect {
	if rot.Quarter() {
		return configuration.NewRect(d.Height, d.Width)
	}
	return configuration.NewRect(d.Width, d.Height)
}

func (d *DisplayInsets) nonDecor(rot configuration.Rotation) configuration.Insets {
	if !rot.Valid() || d.Floating {
		return configuration.Insets{}
	}
	return d.NonDecorInsets[rot.Index()]
}

// ContainerBounds computes the frozen container bounds and app bounds for
// the given rotation and orientation. When the display cannot rotate to a
// requested orientation the frame is fitted to the short side and centred.
func (d *DisplayInsets) ContainerBounds(rot configuration.Rotation, o configuration.Orientation, orientationRequested, fixedToUserRotation bool) (bounds, appBounds configuration.Rect) {
	bounds = d.FrameByOrientation(o)
	if d.Floating {
		return bounds, bounds
	}
	byRot := d.BoundsByRotation(rot)
	dw, dh := byRot.Width(), byRot.Height()
	mismatched := bounds.Landscape() != byRot.Landscape()
	if mismatched && fixedToUserRotation && orientationRequested && dw > 0 && dh > 0 {
		if o == configuration.OrientationLandscape {
			bounds = configuration.NewRect(dw, int(float64(dw)*float64(dw)/float64(dh)))
		} else {
			bounds = configuration.NewRect(int(float64(dh)*float64(dh)/float64(dw)), dh)
		}
		bounds = bounds.Offset(centerOffset(d.Width, bounds.Width()), 0)
	}
	appBounds = bounds
	in := d.nonDecor(rot)
	switch {
	case mismatched:
		bounds = bounds.Offset(in.Left, in.Top)
		appBounds = appBounds.Offset(in.Left, in.Top)
	case rot.Valid():
		appBounds = intersectWithInsetsIfFits(appBounds, bounds, in)
	}
	return bounds, appBounds
}

// intersectWithInsetsIfFits clips each edge of r by the insets of window,
// but only for edges that lie inside window.
func intersectWithInsetsIfFits(r, window configuration.Rect, in configuration.Insets) configuration.Rect {
	if r.Right <= window.Right {
		r.Right = min(window.Right-in.Right, r.Right)
	}
	if r.Bottom <= window.Bottom {
		r.Bottom = min(window.Bottom-in.Bottom, r.Bottom)
	}
	if r.Left >= window.Left {
		r.Left = max(window.Left+in.Left, r.Left)
	}
	if r.Top >= window.Top {
		r.Top = max(window.Top+in.Top, r.Top)
	}
	return r
}

func centerOffset(outer, inner int) int {
	return int(float64(outer-inner+1) * 0.5)
}
