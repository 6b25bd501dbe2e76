// Package rasterizer turns a resolved selection into pixel bytes via an OS
// capture primitive. Region captures grab the full surface frame and crop
// afterwards: the capture primitive cannot take an arbitrary sub-rectangle
// across window layering, so post-hoc cropping is the only approach that
// works everywhere.
package rasterizer

import (
	"image"
	"image/draw"

	"snapdeck/src/errs"
	"snapdeck/src/geometry"
)

// Backend is the OS capture primitive. Implementations must return a
// PERMISSION_DENIED error (errs package) when the OS refuses screen access.
type Backend interface {
	// CaptureSurface captures the full frame of one surface at its backing
	// resolution. The returned image's bounds start at (0,0).
	CaptureSurface(s geometry.Surface) (*image.RGBA, error)
	// CaptureWindow captures a single window by identifier, including
	// occluded portions when the backend supports it.
	CaptureWindow(windowID int) (*image.RGBA, error)
}

// Rasterizer crops and validates what the backend produces.
type Rasterizer struct {
	backend Backend
}

// New creates a Rasterizer over the given backend.
func New(backend Backend) *Rasterizer {
	return &Rasterizer{backend: backend}
}

// CaptureRegion captures the surface and crops losslessly to rect, which is
// already in capture space (top-left origin, backing pixels). A rectangle
// falling fully outside the frame is a CAPTURE_FAILED error.
func (r *Rasterizer) CaptureRegion(s geometry.Surface, rect geometry.Rect) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, errs.Newf(errs.CodeCaptureFailed, "empty capture rectangle %dx%d", rect.Width, rect.Height)
	}
	frame, err := r.backend.CaptureSurface(s)
	if err != nil {
		return nil, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, errs.New(errs.CodeCaptureFailed, "backend returned an empty frame")
	}

	fb := frame.Bounds()
	frameRect := geometry.Rect{X: fb.Min.X, Y: fb.Min.Y, Width: fb.Dx(), Height: fb.Dy()}
	crop := rect.Intersect(frameRect)
	if crop.Empty() {
		return nil, errs.Newf(errs.CodeCaptureFailed,
			"capture rectangle %v lies outside the %dx%d frame", rect, fb.Dx(), fb.Dy())
	}

	out := image.NewRGBA(image.Rect(0, 0, crop.Width, crop.Height))
	draw.Draw(out, out.Bounds(), frame, image.Pt(crop.X, crop.Y), draw.Src)
	return out, nil
}

// CaptureWindow captures a single window's content.
func (r *Rasterizer) CaptureWindow(windowID int) (*image.RGBA, error) {
	img, err := r.backend.CaptureWindow(windowID)
	if err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errs.Newf(errs.CodeCaptureFailed, "window %d produced an empty frame", windowID)
	}
	return img, nil
}
