package geometry

import "testing"

func TestRectFromCorners(t *testing.T) {
	r := RectFromCorners(Point{X: 300, Y: 400}, Point{X: 100, Y: 500})
	want := Rect{X: 100, Y: 400, Width: 200, Height: 100}
	if r != want {
		t.Errorf("RectFromCorners = %+v, want %+v", r, want)
	}

	if r := RectFromCorners(Point{X: 5, Y: 5}, Point{X: 5, Y: 5}); !r.Empty() {
		t.Errorf("degenerate corners should make an empty rect, got %+v", r)
	}
}

func TestToCaptureSpaceFlipsY(t *testing.T) {
	surface := Surface{ID: "display-0", Bounds: Rect{X: 0, Y: 0, Width: 1440, Height: 900}, BackingScale: 1}

	// Drag from (100,500) to (300,400): the converted top edge must be
	// H - max(y1,y2) = 900 - 500 = 400.
	view := RectFromCorners(Point{X: 100, Y: 500}, Point{X: 300, Y: 400})
	got := ToCaptureSpace(view, surface)
	want := Rect{X: 100, Y: 400, Width: 200, Height: 100}
	if got != want {
		t.Errorf("ToCaptureSpace = %+v, want %+v", got, want)
	}
}

func TestToCaptureSpaceAppliesBackingScale(t *testing.T) {
	surface := Surface{Bounds: Rect{Width: 1440, Height: 900}, BackingScale: 2}
	got := ToCaptureSpace(Rect{X: 10, Y: 20, Width: 30, Height: 40}, surface)
	want := Rect{X: 20, Y: (900 - 20 - 40) * 2, Width: 60, Height: 80}
	if got != want {
		t.Errorf("ToCaptureSpace = %+v, want %+v", got, want)
	}
}

func TestCaptureSpaceRoundTrip(t *testing.T) {
	surfaces := []Surface{
		{Bounds: Rect{Width: 1440, Height: 900}, BackingScale: 1},
		{Bounds: Rect{X: 1440, Y: 0, Width: 2560, Height: 1440}, BackingScale: 2},
	}
	rects := []Rect{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 100, Y: 400, Width: 200, Height: 100},
		{X: 7, Y: 893, Width: 11, Height: 7},
		{X: 1430, Y: 0, Width: 10, Height: 900},
	}
	for _, s := range surfaces {
		for _, r := range rects {
			back := FromCaptureSpace(ToCaptureSpace(r, s), s)
			if back != r {
				t.Errorf("round trip on %+v: %+v -> %+v", s, r, back)
			}
		}
	}
}

func TestGlobalToViewLocal(t *testing.T) {
	s := Surface{Bounds: Rect{X: 1440, Y: 100, Width: 1000, Height: 800}, BackingScale: 1}
	// A window occupying the top-left quarter of the surface.
	global := Rect{X: 1440, Y: 100, Width: 500, Height: 400}
	got := GlobalToViewLocal(global, s)
	want := Rect{X: 0, Y: 400, Width: 500, Height: 400}
	if got != want {
		t.Errorf("GlobalToViewLocal = %+v, want %+v", got, want)
	}
}

func TestRectContainsAndIntersect(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 20}
	if !r.Contains(Point{X: 10, Y: 10}) {
		t.Error("rect should contain its origin")
	}
	if r.Contains(Point{X: 30, Y: 30}) {
		t.Error("rect max corner is exclusive")
	}

	if got := r.Intersect(Rect{X: 20, Y: 20, Width: 20, Height: 20}); got != (Rect{X: 20, Y: 20, Width: 10, Height: 10}) {
		t.Errorf("Intersect = %+v", got)
	}
	if got := r.Intersect(Rect{X: 100, Y: 100, Width: 5, Height: 5}); !got.Empty() {
		t.Errorf("disjoint rects should not intersect, got %+v", got)
	}
}

func TestSurfaceUnder(t *testing.T) {
	surfaces := []Surface{
		{ID: "a", Bounds: Rect{Width: 1440, Height: 900}},
		{ID: "b", Bounds: Rect{X: 1440, Width: 2560, Height: 1440}},
	}
	if s, ok := SurfaceUnder(Point{X: 2000, Y: 500}, surfaces); !ok || s.ID != "b" {
		t.Errorf("SurfaceUnder = %v/%v, want b", s.ID, ok)
	}
	if _, ok := SurfaceUnder(Point{X: -5, Y: 0}, surfaces); ok {
		t.Error("point off every surface should not match")
	}
}
