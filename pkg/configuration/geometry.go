package configuration

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rect is an axis-aligned rectangle in pixels; Right and Bottom are exclusive.
type Rect struct {
	Left   int `json:"left" toml:"left"`
	Top    int `json:"top" toml:"top"`
	Right  int `json:"right" toml:"right"`
	Bottom int `json:"bottom" toml:"bottom"`
}

// NewRect builds a rectangle of the given size at the origin.
func NewRect(width, height int) Rect {
	return Rect{Right: width, Bottom: height}
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// SameSize reports whether both rectangles have equal dimensions.
func (r Rect) SameSize(o Rect) bool {
	return r.Width() == o.Width() && r.Height() == o.Height()
}

// Offset translates the rectangle by dx, dy.
func (r Rect) Offset(dx, dy int) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// OffsetTo moves the rectangle so its top-left corner is at x, y.
func (r Rect) OffsetTo(x, y int) Rect {
	return r.Offset(x-r.Left, y-r.Top)
}

// Scale multiplies every edge by s, rounding to the nearest pixel.
func (r Rect) Scale(s float64) Rect {
	if s == 1 {
		return r
	}
	return Rect{
		Left:   int(math.Floor(float64(r.Left)*s + 0.5)),
		Top:    int(math.Floor(float64(r.Top)*s + 0.5)),
		Right:  int(math.Floor(float64(r.Right)*s + 0.5)),
		Bottom: int(math.Floor(float64(r.Bottom)*s + 0.5)),
	}
}

// Inset shrinks the rectangle by the given insets.
func (r Rect) Inset(in Insets) Rect {
	return Rect{Left: r.Left + in.Left, Top: r.Top + in.Top, Right: r.Right - in.Right, Bottom: r.Bottom - in.Bottom}
}

// Intersect returns the overlapping area of r and o, or an empty Rect.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Landscape reports whether the rectangle is wider than tall.
func (r Rect) Landscape() bool { return r.Width() > r.Height() }

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Insets describes per-edge decor insets (status bar, navigation bar, cutout).
type Insets struct {
	Left   int `json:"left" toml:"left"`
	Top    int `json:"top" toml:"top"`
	Right  int `json:"right" toml:"right"`
	Bottom int `json:"bottom" toml:"bottom"`
}

// Rotation is a display rotation in quarter turns. The zero value is
// undefined so that an unset override never pins a rotation.
type Rotation int

const (
	RotationUndefined Rotation = iota
	Rotation0
	Rotation90
	Rotation180
	Rotation270
)

// Rotations lists the four concrete rotations in order.
var Rotations = [4]Rotation{Rotation0, Rotation90, Rotation180, Rotation270}

// Index returns the 0..3 slot of a concrete rotation, or -1.
func (r Rotation) Index() int {
	if !r.Valid() {
		return -1
	}
	return int(r) - 1
}

// Quarter reports whether the rotation swaps width and height.
func (r Rotation) Quarter() bool { return r == Rotation90 || r == Rotation270 }

// Valid reports whether r is one of the four concrete rotations.
func (r Rotation) Valid() bool { return r >= Rotation0 && r <= Rotation270 }

func (r Rotation) String() string {
	switch r {
	case Rotation0:
		return "ROTATION_0"
	case Rotation90:
		return "ROTATION_90"
	case Rotation180:
		return "ROTATION_180"
	case Rotation270:
		return "ROTATION_270"
	default:
		return "ROTATION_UNDEFINED"
	}
}

// Orientation is a configuration orientation.
type Orientation int

const (
	OrientationUndefined Orientation = iota
	OrientationPortrait
	OrientationLandscape
)

func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationLandscape:
		return "landscape"
	default:
		return "undefined"
	}
}

// ParseOrientation maps "portrait"/"landscape" to an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "", "undefined", "unspecified":
		return OrientationUndefined, nil
	case "portrait":
		return OrientationPortrait, nil
	case "landscape":
		return OrientationLandscape, nil
	}
	return OrientationUndefined, fmt.Errorf("unknown orientation %q", s)
}

// OrientationOf returns the orientation implied by a rectangle's shape.
func OrientationOf(r Rect) Orientation {
	if r.Empty() {
		return OrientationUndefined
	}
	if r.Landscape() {
		return OrientationLandscape
	}
	return OrientationPortrait
}

// RotationFromDegrees converts 0/90/180/270 into a Rotation.
func RotationFromDegrees(deg int) (Rotation, error) {
	switch ((deg % 360) + 360) % 360 {
	case 0:
		return Rotation0, nil
	case 90:
		return Rotation90, nil
	case 180:
		return Rotation180, nil
	case 270:
		return Rotation270, nil
	}
	return RotationUndefined, fmt.Errorf("rotation must be a multiple of 90, got %d", deg)
}

// Degrees returns the rotation in degrees, or -1 when undefined.
func (r Rotation) Degrees() int {
	if !r.Valid() {
		return -1
	}
	return r.Index() * 90
}

// MarshalText encodes a concrete rotation as its degree count.
func (r Rotation) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return []byte{}, nil
	}
	return []byte(strconv.Itoa(r.Degrees())), nil
}

// UnmarshalText accepts "", a degree count, or a ROTATION_n name.
func (r *Rotation) UnmarshalText(b []byte) error {
	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(string(b))), "ROTATION_")
	if s == "" || s == "UNDEFINED" {
		*r = RotationUndefined
		return nil
	}
	deg, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid rotation %q", string(b))
	}
	rot, err := RotationFromDegrees(deg)
	if err != nil {
		return err
	}
	*r = rot
	return nil
}

func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Orientation) UnmarshalText(b []byte) error {
	v, err := ParseOrientation(strings.ToLower(strings.TrimSpace(string(b))))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
