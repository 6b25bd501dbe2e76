// Package geometry holds the value types shared by the capture session and
// the rasterizer, and the single conversion between the overlay's view-local
// coordinate space (origin bottom-left, y-up, logical units) and the capture
// backend's space (origin top-left, y-down, scaled by the surface's backing
// resolution). The conversion lives here and nowhere else.
package geometry

// Point is a position in some coordinate space.
type Point struct {
	X int
	Y int
}

// Rect is an axis-aligned rectangle with non-negative size.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Surface is an immutable snapshot of one logical screen.
type Surface struct {
	// ID is a stable identifier for the display.
	ID string
	// Bounds is the surface's rectangle in global capture space
	// (top-left origin, logical units).
	Bounds Rect
	// BackingScale is the pixels-per-logical-unit factor (1 on standard
	// displays, 2 on Retina-class displays).
	BackingScale int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Intersect returns the overlap of r and o, or an empty Rect.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// RectFromCorners returns the normalized rectangle spanned by two points,
// typically a drag anchor and the current pointer position.
func RectFromCorners(a, b Point) Rect {
	x := min(a.X, b.X)
	y := min(a.Y, b.Y)
	return Rect{X: x, Y: y, Width: abs(a.X - b.X), Height: abs(a.Y - b.Y)}
}

// ToCaptureSpace converts a view-local rectangle (bottom-left origin, y-up)
// into the capture backend's space for the given surface: top-left origin,
// y-down, scaled by the surface's backing resolution. The y flip is
// captureY = surfaceHeight - viewY - viewHeight.
func ToCaptureSpace(view Rect, s Surface) Rect {
	scale := s.BackingScale
	if scale < 1 {
		scale = 1
	}
	return Rect{
		X:      view.X * scale,
		Y:      (s.Bounds.Height - view.Y - view.Height) * scale,
		Width:  view.Width * scale,
		Height: view.Height * scale,
	}
}

// FromCaptureSpace is the exact inverse of ToCaptureSpace.
func FromCaptureSpace(capture Rect, s Surface) Rect {
	scale := s.BackingScale
	if scale < 1 {
		scale = 1
	}
	return Rect{
		X:      capture.X / scale,
		Y:      s.Bounds.Height - capture.Y/scale - capture.Height/scale,
		Width:  capture.Width / scale,
		Height: capture.Height / scale,
	}
}

// GlobalToViewLocal converts a rectangle in global capture space (top-left
// origin, logical units) into the view-local space of the given surface.
// Used for hit-testing window bounds against view-local pointer input; no
// backing scale is involved.
func GlobalToViewLocal(global Rect, s Surface) Rect {
	return Rect{
		X:      global.X - s.Bounds.X,
		Y:      s.Bounds.Height - (global.Y - s.Bounds.Y) - global.Height,
		Width:  global.Width,
		Height: global.Height,
	}
}

// SurfaceUnder returns the surface whose bounds contain p (global space).
// Returns false if no surface contains the point.
func SurfaceUnder(p Point, surfaces []Surface) (Surface, bool) {
	for _, s := range surfaces {
		if s.Bounds.Contains(p) {
			return s, true
		}
	}
	return Surface{}, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
