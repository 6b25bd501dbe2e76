// Package coordinator orchestrates one capture end to end: session ->
// rasterizer -> store -> (optionally) recognition pipeline. It is the façade
// the rest of the application calls; every collaborator is injected at
// construction so tests can substitute doubles.
package coordinator

import (
	"fmt"
	"image"
	"sync"

	"golang.design/x/clipboard"

	"snapdeck/src/artifact"
	"snapdeck/src/errs"
	"snapdeck/src/geometry"
	"snapdeck/src/rasterizer"
	"snapdeck/src/recognition"
	"snapdeck/src/session"
	"snapdeck/src/store"
)

// Callbacks reports the outcome of one capture. Exactly one of OnComplete,
// OnCancel, or OnError fires per capture.
type Callbacks struct {
	OnComplete func(artifact.Artifact)
	OnCancel   func()
	OnError    func(error)
}

// Deps are the coordinator's collaborators.
type Deps struct {
	Store      *store.Store
	Pipeline   *recognition.Pipeline
	Rasterizer *rasterizer.Rasterizer
	// Surfaces snapshots the current displays.
	Surfaces func() ([]geometry.Surface, error)
	// Pointer returns the current global pointer location; when nil the
	// first surface is used for session binding.
	Pointer func() geometry.Point
	Windows session.WindowEnumerator
	Filter  session.WindowFilter
	Overlay session.OverlayView
}

// Coordinator owns one store and one pipeline instance for its lifetime.
type Coordinator struct {
	deps Deps

	clipOnce sync.Once
	clipErr  error
}

// New wires the coordinator and installs the store's auto-recognition hook.
func New(deps Deps) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("coordinator requires a store")
	}
	if deps.Rasterizer == nil {
		return nil, fmt.Errorf("coordinator requires a rasterizer")
	}
	if deps.Surfaces == nil {
		return nil, fmt.Errorf("coordinator requires a surface provider")
	}
	c := &Coordinator{deps: deps}
	if deps.Pipeline != nil {
		deps.Store.SetRecognizer(func(a artifact.Artifact) {
			deps.Pipeline.Enqueue(a)
		})
	}
	return c, nil
}

// StartCapture arms a session bound to the surface under the pointer and
// returns it so the input source can feed it events. The rasterize/persist
// step runs inline on resolve; session-level invalid selections surface as
// OnCancel, rasterizer and store errors as OnError.
func (c *Coordinator) StartCapture(mode session.Mode, cb Callbacks) (*session.Session, error) {
	surfaces, err := c.deps.Surfaces()
	if err != nil {
		return nil, err
	}
	if len(surfaces) == 0 {
		return nil, errs.New(errs.CodeCaptureFailed, "no capture surfaces available")
	}
	surface := surfaces[0]
	if c.deps.Pointer != nil {
		if s, ok := geometry.SurfaceUnder(c.deps.Pointer(), surfaces); ok {
			surface = s
		}
	}

	return session.Start(session.Config{
		Mode:    mode,
		Surface: surface,
		Windows: c.deps.Windows,
		Filter:  c.deps.Filter,
		Overlay: c.deps.Overlay,
		OnResolve: func(t session.Target) {
			c.finish(surface, t, cb)
		},
		OnCancel: func() {
			if cb.OnCancel != nil {
				cb.OnCancel()
			}
		},
	})
}

func (c *Coordinator) finish(surface geometry.Surface, t session.Target, cb Callbacks) {
	var (
		img *image.RGBA
		err error
	)
	switch t.Mode {
	case session.ModeRegion:
		img, err = c.deps.Rasterizer.CaptureRegion(surface, t.Rect)
	case session.ModeWindow:
		img, err = c.deps.Rasterizer.CaptureWindow(t.WindowID)
	default:
		err = errs.Newf(errs.CodeCaptureFailed, "unknown capture mode %v", t.Mode)
	}
	if err != nil {
		c.fail(cb, err)
		return
	}

	a, err := c.deps.Store.Create(img, artifact.Source{
		Mode:      t.Mode.String(),
		OwnerName: t.OwnerName,
	})
	if err != nil {
		c.fail(cb, err)
		return
	}
	if cb.OnComplete != nil {
		cb.OnComplete(a)
	}
}

func (c *Coordinator) fail(cb Callbacks, err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

// RecognizeArtifact manually (re-)runs recognition for an artifact; valid
// from pending or either terminal status. A request for an artifact that is
// already in flight coalesces.
func (c *Coordinator) RecognizeArtifact(id string) error {
	if c.deps.Pipeline == nil {
		return errs.New(errs.CodeRecognitionFailed, "no recognition pipeline configured")
	}
	a, ok := c.deps.Store.Get(id)
	if !ok {
		return errs.NewNotFound(id)
	}
	c.deps.Pipeline.Enqueue(a)
	return nil
}

// CancelRecognition aborts an in-flight recognition.
func (c *Coordinator) CancelRecognition(id string) bool {
	if c.deps.Pipeline == nil {
		return false
	}
	return c.deps.Pipeline.Cancel(id)
}

// CopyText places an artifact's recognized text on the system clipboard.
func (c *Coordinator) CopyText(id string) error {
	a, ok := c.deps.Store.Get(id)
	if !ok {
		return errs.NewNotFound(id)
	}
	if a.RecognizedText == "" {
		return fmt.Errorf("artifact %s has no recognized text", id)
	}
	c.clipOnce.Do(func() {
		c.clipErr = clipboard.Init()
	})
	if c.clipErr != nil {
		return fmt.Errorf("clipboard unavailable: %w", c.clipErr)
	}
	clipboard.Write(clipboard.FmtText, []byte(a.RecognizedText))
	return nil
}
