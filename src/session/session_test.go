package session

import (
	"errors"
	"strings"
	"testing"

	"snapdeck/src/geometry"
)

var testSurface = geometry.Surface{
	ID:           "display-0",
	Bounds:       geometry.Rect{Width: 1440, Height: 900},
	BackingScale: 1,
}

type recordingOverlay struct {
	highlights []geometry.Rect
	labels     [][2]int
	cleared    int
}

func (o *recordingOverlay) SetHighlight(r geometry.Rect) { o.highlights = append(o.highlights, r) }
func (o *recordingOverlay) SetDimensionLabel(w, h int)   { o.labels = append(o.labels, [2]int{w, h}) }
func (o *recordingOverlay) Clear()                       { o.cleared++ }

type staticWindows struct {
	windows []WindowCandidate
	err     error
}

func (s staticWindows) Enumerate() ([]WindowCandidate, error) { return s.windows, s.err }

func startRegion(t *testing.T, onResolve func(Target), onCancel func()) *Session {
	t.Helper()
	s, err := Start(Config{
		Mode:      ModeRegion,
		Surface:   testSurface,
		OnResolve: onResolve,
		OnCancel:  onCancel,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return s
}

func TestRegionDragResolvesInCaptureSpace(t *testing.T) {
	var resolved []Target
	s := startRegion(t, func(tg Target) { resolved = append(resolved, tg) }, func() {
		t.Fatal("unexpected cancel")
	})

	s.PointerDown(geometry.Point{X: 100, Y: 500})
	if s.State() != StateDragging {
		t.Fatalf("state after down = %v, want dragging", s.State())
	}
	s.PointerMove(geometry.Point{X: 200, Y: 450})
	s.PointerUp(geometry.Point{X: 300, Y: 400})

	if len(resolved) != 1 {
		t.Fatalf("resolved %d times, want 1", len(resolved))
	}
	want := geometry.Rect{X: 100, Y: 400, Width: 200, Height: 100}
	if resolved[0].Rect != want {
		t.Errorf("target rect = %+v, want %+v", resolved[0].Rect, want)
	}
	if resolved[0].Mode != ModeRegion {
		t.Errorf("target mode = %v", resolved[0].Mode)
	}
	if s.State() != StateResolved || !s.Done() {
		t.Errorf("state = %v, want resolved", s.State())
	}
}

func TestRegionBelowMinimumCancels(t *testing.T) {
	cases := []struct {
		name string
		up   geometry.Point
	}{
		{"too narrow", geometry.Point{X: 105, Y: 400}},
		{"too short", geometry.Point{X: 300, Y: 495}},
		{"click", geometry.Point{X: 100, Y: 500}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cancels := 0
			s := startRegion(t, func(Target) { t.Fatal("unexpected resolve") }, func() { cancels++ })
			s.PointerDown(geometry.Point{X: 100, Y: 500})
			s.PointerUp(tc.up)
			if cancels != 1 {
				t.Errorf("cancel fired %d times, want 1", cancels)
			}
			if s.State() != StateCancelled {
				t.Errorf("state = %v, want cancelled", s.State())
			}
		})
	}
}

func TestRegionExactMinimumResolves(t *testing.T) {
	resolves := 0
	s := startRegion(t, func(Target) { resolves++ }, func() { t.Fatal("unexpected cancel") })
	s.PointerDown(geometry.Point{X: 0, Y: 100})
	s.PointerUp(geometry.Point{X: MinSelectionSize, Y: 100 + MinSelectionSize})
	if resolves != 1 {
		t.Errorf("resolve fired %d times, want 1", resolves)
	}
}

func TestEscapeCancelsFromAnyState(t *testing.T) {
	cancels := 0
	s := startRegion(t, func(Target) { t.Fatal("unexpected resolve") }, func() { cancels++ })

	s.PointerDown(geometry.Point{X: 10, Y: 10})
	s.Cancel()
	if cancels != 1 {
		t.Fatalf("cancel fired %d times, want 1", cancels)
	}

	// Terminal: further input and cancels are ignored.
	s.Cancel()
	s.PointerDown(geometry.Point{X: 0, Y: 0})
	s.PointerUp(geometry.Point{X: 500, Y: 500})
	if cancels != 1 {
		t.Errorf("cancel fired %d times after terminal state, want 1", cancels)
	}
}

func TestDragOverlayShowsLiveDimensions(t *testing.T) {
	ov := &recordingOverlay{}
	s, err := Start(Config{Mode: ModeRegion, Surface: testSurface, Overlay: ov})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.PointerDown(geometry.Point{X: 100, Y: 500})
	s.PointerMove(geometry.Point{X: 250, Y: 420})

	if len(ov.labels) == 0 {
		t.Fatal("no dimension labels pushed")
	}
	last := ov.labels[len(ov.labels)-1]
	if last != [2]int{150, 80} {
		t.Errorf("last label = %v, want [150 80]", last)
	}
}

func windowFixture() []WindowCandidate {
	return []WindowCandidate{
		// Global space, surface is 1440x900 at origin. This window spans
		// x 100-500, y 100-400 (top-left), i.e. view-local y 500-800.
		{WindowID: 11, Bounds: geometry.Rect{X: 100, Y: 100, Width: 400, Height: 300}, OwnerName: "Safari", Title: "Apple"},
		{WindowID: 12, Bounds: geometry.Rect{X: 600, Y: 500, Width: 200, Height: 200}, OwnerName: "Notes"},
		{WindowID: 13, Bounds: geometry.Rect{Width: 1440, Height: 900}, OwnerName: "Dock"},
		{WindowID: 14, Bounds: geometry.Rect{X: 10, Y: 10, Width: 50, Height: 50}, OwnerName: "Overlay Inc", Layer: 25},
	}
}

func startWindow(t *testing.T, onResolve func(Target), onCancel func()) *Session {
	t.Helper()
	s, err := Start(Config{
		Mode:      ModeWindow,
		Surface:   testSurface,
		Windows:   staticWindows{windows: windowFixture()},
		OnResolve: onResolve,
		OnCancel:  onCancel,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return s
}

func TestWindowHoverAndResolve(t *testing.T) {
	var resolved []Target
	s := startWindow(t, func(tg Target) { resolved = append(resolved, tg) }, func() {
		t.Fatal("unexpected cancel")
	})

	// View-local (200, 600) falls inside the Safari window.
	s.PointerMove(geometry.Point{X: 200, Y: 600})
	if s.State() != StateHovering {
		t.Fatalf("state = %v, want hovering", s.State())
	}
	s.PointerUp(geometry.Point{X: 200, Y: 600})

	if len(resolved) != 1 {
		t.Fatalf("resolved %d times, want 1", len(resolved))
	}
	if resolved[0].WindowID != 11 || resolved[0].OwnerName != "Safari" {
		t.Errorf("resolved %+v, want window 11 owned by Safari", resolved[0])
	}
}

func TestWindowReleaseOverNothingCancels(t *testing.T) {
	cancels := 0
	s := startWindow(t, func(Target) { t.Fatal("unexpected resolve") }, func() { cancels++ })
	s.PointerUp(geometry.Point{X: 1400, Y: 10})
	if cancels != 1 {
		t.Errorf("cancel fired %d times, want 1", cancels)
	}
}

func TestWindowFilterExcludesShellAndNonZeroLayers(t *testing.T) {
	s := startWindow(t, nil, nil)
	if len(s.candidates) != 2 {
		t.Fatalf("candidate count = %d, want 2 (Dock and layered window excluded)", len(s.candidates))
	}
	for _, c := range s.candidates {
		if c.window.OwnerName == "Dock" || c.window.Layer != 0 {
			t.Errorf("filter kept %+v", c.window)
		}
	}
}

func TestWindowEnumerationFailurePropagates(t *testing.T) {
	cancels := 0
	s, err := Start(Config{
		Mode:     ModeWindow,
		Surface:  testSurface,
		Windows:  staticWindows{err: errors.New("no window server")},
		OnCancel: func() { cancels++ },
	})
	if err == nil {
		t.Fatal("expected an error when enumeration fails")
	}
	if s != nil {
		t.Errorf("s = %v, want no session on enumeration failure", s)
	}
	if cancels != 0 {
		t.Errorf("cancels = %d, want no callback when arming never happened", cancels)
	}
	if !strings.Contains(err.Error(), "no window server") {
		t.Errorf("err = %v, want the enumerator's cause preserved", err)
	}
}

func TestDefaultWindowFilterExcludesSelf(t *testing.T) {
	f := DefaultWindowFilter("snapdeck", "Screenshot")
	if f(WindowCandidate{WindowID: 1, Bounds: geometry.Rect{Width: 10, Height: 10}, OwnerName: "snapdeck"}) {
		t.Error("filter must exclude the invoking app's own windows")
	}
	if f(WindowCandidate{WindowID: 2, Bounds: geometry.Rect{Width: 10, Height: 10}, OwnerName: "Screenshot"}) {
		t.Error("filter must honor extra exclusions")
	}
	if !f(WindowCandidate{WindowID: 3, Bounds: geometry.Rect{Width: 10, Height: 10}, OwnerName: "Safari"}) {
		t.Error("filter must keep ordinary app windows")
	}
}
