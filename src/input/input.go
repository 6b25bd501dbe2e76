// Package input adapts the global mouse/keyboard hook into session events.
// Pointer positions arrive from the hook in global top-left coordinates and
// leave here in the bound surface's view-local space (bottom-left origin,
// y-up); the session never sees raw hook coordinates.
package input

import (
	"log"
	"sync"

	gohook "github.com/robotn/gohook"

	"snapdeck/src/geometry"
)

// escapeRawcodes are the raw key codes treated as the cancel signal.
// 53 is Escape on macOS keyboards; 27 covers hooks that report the ASCII
// code instead.
var escapeRawcodes = map[uint16]bool{53: true, 27: true}

// Sink receives translated pointer events. *session.Session satisfies it.
type Sink interface {
	PointerDown(p geometry.Point)
	PointerMove(p geometry.Point)
	PointerUp(p geometry.Point)
	Cancel()
}

// Source pumps global input events into a Sink until stopped.
type Source struct {
	surface geometry.Surface
	sink    Sink
	done    chan struct{}
	once    sync.Once
}

// Start begins listening. The hook runs in its own goroutine; Stop ends it.
func Start(surface geometry.Surface, sink Sink) *Source {
	s := &Source{
		surface: surface,
		sink:    sink,
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// Stop ends the hook. Safe to call more than once.
func (s *Source) Stop() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *Source) loop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("input: panic in hook goroutine: %v", r)
		}
	}()

	evChan := gohook.Start()
	if evChan == nil {
		log.Printf("input: hook start returned nil channel")
		return
	}
	defer gohook.End()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-evChan:
			if !ok {
				return
			}
			s.dispatch(ev)
		}
	}
}

func (s *Source) dispatch(ev gohook.Event) {
	switch ev.Kind {
	case gohook.MouseDown:
		s.sink.PointerDown(s.toViewLocal(ev))
	case gohook.MouseMove, gohook.MouseDrag:
		s.sink.PointerMove(s.toViewLocal(ev))
	case gohook.MouseUp:
		s.sink.PointerUp(s.toViewLocal(ev))
	case gohook.KeyDown:
		if escapeRawcodes[ev.Rawcode] {
			s.sink.Cancel()
		}
	}
}

// toViewLocal converts a hook event's global top-left position into the
// surface's bottom-left view space.
func (s *Source) toViewLocal(ev gohook.Event) geometry.Point {
	localX := int(ev.X) - s.surface.Bounds.X
	localY := int(ev.Y) - s.surface.Bounds.Y
	return geometry.Point{
		X: localX,
		Y: s.surface.Bounds.Height - localY,
	}
}
