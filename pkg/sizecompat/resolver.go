package sizecompat

import (
	"math"

	"github.com/bft-labs/actlife/pkg/configuration"
)

// aspectRatioTolerance absorbs rounding when comparing aspect ratios.
const aspectRatioTolerance = 0.005

// Traits are the declared resizing capabilities of an activity.
type Traits struct {
	Resizeable          bool                       `toml:"resizeable" json:"resizeable"`
	SupportsSizeChanges bool                       `toml:"supports_size_changes" json:"supportsSizeChanges"`
	Orientation         configuration.Orientation  `toml:"orientation" json:"orientation"`
	MinAspectRatio      float64                    `toml:"min_aspect_ratio" json:"minAspectRatio"`
	MaxAspectRatio      float64                    `toml:"max_aspect_ratio" json:"maxAspectRatio"`
	ActivityType        configuration.ActivityType `toml:"activity_type" json:"activityType"`
}

// FixedAspectRatio reports whether either aspect-ratio limit is declared.
func (t Traits) FixedAspectRatio() bool {
	return t.MinAspectRatio > 0 || t.MaxAspectRatio > 0
}

// ShouldCreate reports whether an activity with these traits must be frozen
// into size-compat mode instead of being resized freely.
func ShouldCreate(t Traits, universallyResizeable bool) bool {
	if universallyResizeable || t.Resizeable || t.SupportsSizeChanges {
		return false
	}
	if t.ActivityType != configuration.ActivityTypeStandard && t.ActivityType != configuration.ActivityTypeUndefined {
		return false
	}
	return t.Orientation != configuration.OrientationUndefined || t.FixedAspectRatio()
}

// Request is the input of one resolution pass.
type Request struct {
	// Parent is the full configuration of the parent container.
	Parent configuration.Configuration
	Traits Traits
	// RequestedOrientation overrides Traits.Orientation when set.
	RequestedOrientation configuration.Orientation
	AllowUpscaling       bool
	FixedToUserRotation  bool
}

// Result is the resolved override configuration of a size-compat activity.
type Result struct {
	Override configuration.Configuration
	// Scale is applied uniformly to the activity's content.
	Scale float64
	// CompatBounds is the on-screen rectangle of the scaled content, nil
	// when no scaling or realignment is needed.
	CompatBounds *configuration.Rect
	// InSizeCompatModeForBounds is false when the resolved app bounds fill
	// the container or the mismatch is explained by aspect-ratio limits.
	InSizeCompatModeForBounds bool
}

// InSizeCompatMode reports whether the activity is visibly running in
// size-compat mode inside a parent of the given density.
func (r Result) InSizeCompatMode(d *DisplayInsets, parentDensity int) bool {
	if r.InSizeCompatModeForBounds {
		return true
	}
	if d == nil || d.Floating || parentDensity == 0 {
		return false
	}
	return parentDensity != d.Density
}

// Resolve computes the override configuration of an activity frozen
// against d, placed inside req.Parent.
func Resolve(d *DisplayInsets, req Request) Result {
	parent := req.Parent
	out := configuration.Configuration{
		DensityDPI:            d.Density,
		SmallestScreenWidthDp: d.SmallestScreenWidthDp,
		ColorMode:             d.ColorMode,
	}

	requested := req.RequestedOrientation
	if requested == configuration.OrientationUndefined {
		requested = req.Traits.Orientation
	}
	orientationRequested := requested != configuration.OrientationUndefined
	orientation := requested
	if !orientationRequested {
		orientation = d.OriginalOrientation
	}
	if orientation == configuration.OrientationUndefined {
		orientation = parent.Orientation
	}

	rotation := parent.Window.Rotation
	if (req.FixedToUserRotation || d.Floating) && d.LockedRotation != configuration.RotationUndefined {
		rotation = d.LockedRotation
	}
	out.Window.Rotation = rotation

	containerBounds, containerAppBounds := d.ContainerBounds(rotation, orientation, orientationRequested, req.FixedToUserRotation)
	resolvedBounds := containerBounds
	if !d.Floating {
		if b, ok := applyAspectRatio(containerAppBounds, containerBounds, req.Traits, requested); ok {
			resolvedBounds = b
		}
	}

	appBounds := resolvedBounds
	if rotation.Valid() && !d.Floating {
		appBounds = intersectWithInsetsIfFits(appBounds, d.BoundsByRotation(rotation), d.nonDecor(rotation))
	}
	density := d.Density
	if density <= 0 {
		density = configuration.DensityDefault
	}
	out = configuration.ComputeScreenOverrides(out, resolvedBounds, appBounds, density)
	if d.SmallestScreenWidthDp > 0 {
		out.SmallestScreenWidthDp = d.SmallestScreenWidthDp
	}
	out.ScreenLayout = configuration.ComputeScreenLayout(d.ScreenLayout, out.ScreenWidthDp, out.ScreenHeightDp)
	if out.ScreenWidthDp == out.ScreenHeightDp {
		out.Orientation = parent.Orientation
	}

	parentBounds := parent.Window.Bounds
	parentAppBounds := parent.Window.AppBounds
	if parentAppBounds.Empty() {
		parentAppBounds = parentBounds
	}

	contentW, contentH := appBounds.Width(), appBounds.Height()
	viewW, viewH := parentAppBounds.Width(), parentAppBounds.Height()
	scale := computeScale(contentW, contentH, viewW, viewH, req.AllowUpscaling)

	containerTopInset := parentAppBounds.Top - parentBounds.Top
	topNotAligned := containerTopInset != appBounds.Top-resolvedBounds.Top
	var compat *configuration.Rect
	if scale != 1 || topNotAligned {
		r := appBounds.OffsetTo(0, 0).Scale(scale)
		r.Bottom += containerTopInset
		compat = &r
	}

	scaledW := int(math.Floor(float64(contentW)*scale + 0.5))
	screenX := parentAppBounds.Left + centerOffset(viewW, scaledW)
	screenY := parentBounds.Top
	if screenX != 0 || screenY != 0 {
		if compat != nil {
			*compat = compat.Offset(screenX, screenY)
		}
		dx, dy := screenX-resolvedBounds.Left, screenY-resolvedBounds.Top
		out.Window.Bounds = out.Window.Bounds.Offset(dx, dy)
		out.Window.AppBounds = out.Window.AppBounds.Offset(dx, dy)
	}

	return Result{
		Override:                  out,
		Scale:                     scale,
		CompatBounds:              compat,
		InSizeCompatModeForBounds: InSizeCompatModeForBounds(appBounds, parentAppBounds, req.Traits),
	}
}

func computeScale(contentW, contentH, viewW, viewH int, allowUpscaling bool) float64 {
	if contentW <= 0 || contentH <= 0 || viewW <= 0 || viewH <= 0 {
		return 1
	}
	if contentW <= viewW && contentH <= viewH && !allowUpscaling {
		return 1
	}
	return math.Min(float64(viewW)/float64(contentW), float64(viewH)/float64(contentH))
}

// InSizeCompatModeForBounds reports whether app bounds that differ from the
// container app bounds are a compatibility shim rather than the result of
// the activity's own aspect-ratio limits.
func InSizeCompatModeForBounds(app, container configuration.Rect, t Traits) bool {
	appW, appH := app.Width(), app.Height()
	cw, ch := container.Width(), container.Height()
	if cw == appW && ch == appH {
		return false
	}
	if cw > appW && ch > appH {
		return true
	}
	if cw < appW || ch < appH {
		return true
	}
	// Only one side is smaller than the container.
	if t.MaxAspectRatio > 0 && min(appW, appH) > 0 {
		ratio := (0.5 + float64(max(appW, appH))) / float64(min(appW, appH))
		if ratio >= t.MaxAspectRatio {
			return false
		}
	}
	if t.MinAspectRatio > 0 && min(cw, ch) > 0 {
		ratio := (0.5 + float64(max(cw, ch))) / float64(min(cw, ch))
		if ratio <= t.MinAspectRatio {
			return false
		}
	}
	return true
}

// applyAspectRatio limits the container app bounds to the declared aspect
// ratio range. It reports false when the container already satisfies it.
func applyAspectRatio(containerApp, container configuration.Rect, t Traits, requested configuration.Orientation) (configuration.Rect, bool) {
	if t.MaxAspectRatio < 1 && t.MinAspectRatio < 1 {
		return configuration.Rect{}, false
	}
	cw, ch := containerApp.Width(), containerApp.Height()
	if cw <= 0 || ch <= 0 {
		return configuration.Rect{}, false
	}
	containerRatio := float64(max(cw, ch)) / float64(min(cw, ch))
	desired := containerRatio
	if t.MaxAspectRatio >= 1 && desired > t.MaxAspectRatio {
		desired = t.MaxAspectRatio
	} else if t.MinAspectRatio >= 1 && desired < t.MinAspectRatio {
		desired = t.MinAspectRatio
	}

	w, h := cw, ch
	switch {
	case containerRatio-desired > aspectRatioTolerance:
		if cw < ch {
			h = int(float64(w)*desired + 0.5)
		} else {
			w = int(float64(h)*desired + 0.5)
		}
	case desired-containerRatio > aspectRatioTolerance:
		adjustWidth := cw < ch
		switch requested {
		case configuration.OrientationLandscape:
			adjustWidth = false
		case configuration.OrientationPortrait:
			adjustWidth = true
		}
		if adjustWidth {
			w = int(float64(h)/desired + 0.5)
		} else {
			h = int(float64(w)/desired + 0.5)
		}
	}
	if cw <= w && ch <= h {
		return configuration.Rect{}, false
	}

	right := containerApp.Left + w
	if right >= containerApp.Right {
		right += container.Right - containerApp.Right
	}
	bottom := containerApp.Top + h
	if bottom >= containerApp.Bottom {
		bottom += container.Bottom - containerApp.Bottom
	}
	return configuration.Rect{Left: container.Left, Top: container.Top, Right: right, Bottom: bottom}, true
}
