// Package session implements the interactive capture state machine. A
// session turns pointer input into either a resolved capture target or a
// cancellation; it never blocks, never renders, and is destroyed on resolve
// or cancel.
//
// All pointer input arrives in view-local coordinates: origin bottom-left,
// y-up, logical units, relative to the bound surface. The conversion to the
// capture backend's space happens exactly once, at resolve, via
// geometry.ToCaptureSpace.
package session

import (
	"fmt"

	"snapdeck/src/geometry"
)

// Mode selects which session variant runs.
type Mode int

const (
	ModeRegion Mode = iota
	ModeWindow
)

func (m Mode) String() string {
	switch m {
	case ModeRegion:
		return "region"
	case ModeWindow:
		return "window"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// State is the session lifecycle:
// Idle -> Armed -> (Dragging | Hovering) -> Resolved | Cancelled.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateDragging
	StateHovering
	StateResolved
	StateCancelled
)

// MinSelectionSize is the smallest region width/height (logical units) that
// resolves to a capture; anything smaller is treated as a cancellation so a
// stray click never produces a zero-area artifact.
const MinSelectionSize = 10

// Target is the resolved selection handed to the rasterizer.
type Target struct {
	Mode Mode
	// Rect is the selection in capture space (Region mode only).
	Rect geometry.Rect
	// WindowID identifies the selected window (Window mode only).
	WindowID int
	// OwnerName is the selected window's owning process (Window mode only).
	OwnerName string
}

// OverlayView is the rendering collaborator the session drives. The session
// only pushes state into it; drawing is entirely out of scope here.
type OverlayView interface {
	SetHighlight(r geometry.Rect)
	SetDimensionLabel(width, height int)
	Clear()
}

// nopOverlay lets headless callers omit the overlay.
type nopOverlay struct{}

func (nopOverlay) SetHighlight(geometry.Rect) {}
func (nopOverlay) SetDimensionLabel(int, int) {}
func (nopOverlay) Clear()                     {}

// Config wires a session's collaborators.
type Config struct {
	Mode    Mode
	Surface geometry.Surface
	// Windows enumerates window candidates; required in Window mode,
	// queried exactly once on arming.
	Windows WindowEnumerator
	// Filter excludes desktop/system-shell windows and the invoking
	// overlay. Defaults to DefaultWindowFilter("").
	Filter  WindowFilter
	Overlay OverlayView
	// OnResolve fires exactly once with the final target.
	OnResolve func(Target)
	// OnCancel fires exactly once when the session ends without a target.
	OnCancel func()
	// MinSelection overrides MinSelectionSize; zero means the default.
	MinSelection int
}

// Session is the in-flight state machine instance. It is not safe for
// concurrent use; drive it from the thread that owns input delivery.
type Session struct {
	cfg        Config
	state      State
	minSize    int
	overlay    OverlayView
	anchor     geometry.Point
	extent     geometry.Point
	candidates []candidate
	hovered    int
}

// candidate pairs a window with its bounds converted to view-local space
// once, at arm time, so hit-testing never mixes coordinate spaces.
type candidate struct {
	window     WindowCandidate
	viewBounds geometry.Rect
}

// Start arms a new session. In Window mode the candidate list is enumerated
// here, once; an enumeration failure is returned to the caller and no
// session is armed.
func Start(cfg Config) (*Session, error) {
	s := &Session{
		cfg:     cfg,
		state:   StateArmed,
		minSize: cfg.MinSelection,
		overlay: cfg.Overlay,
		hovered: -1,
	}
	if s.minSize <= 0 {
		s.minSize = MinSelectionSize
	}
	if s.overlay == nil {
		s.overlay = nopOverlay{}
	}

	if cfg.Mode == ModeWindow {
		if cfg.Windows == nil {
			return nil, fmt.Errorf("window mode requires a window enumerator")
		}
		filter := cfg.Filter
		if filter == nil {
			filter = DefaultWindowFilter("")
		}
		wins, err := cfg.Windows.Enumerate()
		if err != nil {
			return nil, fmt.Errorf("enumerate windows: %w", err)
		}
		for _, w := range wins {
			if !filter(w) {
				continue
			}
			s.candidates = append(s.candidates, candidate{
				window:     w,
				viewBounds: geometry.GlobalToViewLocal(w.Bounds, cfg.Surface),
			})
		}
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Surface returns the surface the session is bound to.
func (s *Session) Surface() geometry.Surface { return s.cfg.Surface }

// Done reports whether the session has reached a terminal state.
func (s *Session) Done() bool {
	return s.state == StateResolved || s.state == StateCancelled
}

// PointerDown records the drag anchor in Region mode. Ignored in Window
// mode and in terminal states.
func (s *Session) PointerDown(p geometry.Point) {
	if s.cfg.Mode != ModeRegion {
		return
	}
	if s.state != StateArmed && s.state != StateDragging {
		return
	}
	s.state = StateDragging
	s.anchor = p
	s.extent = p
	s.pushDragOverlay()
}

// PointerMove updates the live drag extent (Region) or the hovered window
// (Window).
func (s *Session) PointerMove(p geometry.Point) {
	switch s.cfg.Mode {
	case ModeRegion:
		if s.state != StateDragging {
			return
		}
		s.extent = p
		s.pushDragOverlay()
	case ModeWindow:
		if s.state != StateArmed && s.state != StateHovering {
			return
		}
		s.state = StateHovering
		s.hovered = s.hitTest(p)
		if s.hovered >= 0 {
			s.overlay.SetHighlight(s.candidates[s.hovered].viewBounds)
		} else {
			s.overlay.Clear()
		}
	}
}

// PointerUp attempts to resolve the session. A region below the minimum
// size, or a release over no window, cancels instead.
func (s *Session) PointerUp(p geometry.Point) {
	switch s.cfg.Mode {
	case ModeRegion:
		if s.state != StateDragging {
			return
		}
		s.extent = p
		rect := geometry.RectFromCorners(s.anchor, s.extent)
		if rect.Width < s.minSize || rect.Height < s.minSize {
			s.cancel()
			return
		}
		s.resolve(Target{
			Mode: ModeRegion,
			Rect: geometry.ToCaptureSpace(rect, s.cfg.Surface),
		})
	case ModeWindow:
		if s.state != StateArmed && s.state != StateHovering {
			return
		}
		if i := s.hitTest(p); i >= 0 {
			w := s.candidates[i].window
			s.resolve(Target{Mode: ModeWindow, WindowID: w.WindowID, OwnerName: w.OwnerName})
			return
		}
		s.cancel()
	}
}

// Cancel ends the session without a target. Reachable from any non-terminal
// state; safe to call repeatedly.
func (s *Session) Cancel() {
	if s.Done() || s.state == StateIdle {
		return
	}
	s.cancel()
}

func (s *Session) resolve(t Target) {
	s.state = StateResolved
	s.overlay.Clear()
	if s.cfg.OnResolve != nil {
		s.cfg.OnResolve(t)
	}
}

func (s *Session) cancel() {
	s.state = StateCancelled
	s.overlay.Clear()
	if s.cfg.OnCancel != nil {
		s.cfg.OnCancel()
	}
}

func (s *Session) pushDragOverlay() {
	rect := geometry.RectFromCorners(s.anchor, s.extent)
	s.overlay.SetHighlight(rect)
	s.overlay.SetDimensionLabel(rect.Width, rect.Height)
}

// hitTest returns the topmost candidate containing p, or -1. Candidates are
// assumed front-to-back in enumeration order.
func (s *Session) hitTest(p geometry.Point) int {
	for i, c := range s.candidates {
		if c.viewBounds.Contains(p) {
			return i
		}
	}
	return -1
}
