package rasterizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kbinani/screenshot"

	"snapdeck/src/errs"
	"snapdeck/src/geometry"
)

const windowCaptureTimeout = 10 * time.Second

// OSBackend captures displays through the screenshot library and windows by
// shelling out to the system screencapture utility.
type OSBackend struct{}

// Surfaces snapshots the active displays as capture surfaces. The screenshot
// library reports bounds in backing pixels, so BackingScale is 1 here.
func (OSBackend) Surfaces() ([]geometry.Surface, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, errs.New(errs.CodeCaptureFailed, "no active displays found")
	}
	surfaces := make([]geometry.Surface, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		surfaces = append(surfaces, geometry.Surface{
			ID:           fmt.Sprintf("display-%d", i),
			Bounds:       geometry.Rect{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()},
			BackingScale: 1,
		})
	}
	return surfaces, nil
}

// CaptureSurface captures one display's full frame.
func (OSBackend) CaptureSurface(s geometry.Surface) (*image.RGBA, error) {
	bounds := image.Rect(s.Bounds.X, s.Bounds.Y, s.Bounds.X+s.Bounds.Width, s.Bounds.Y+s.Bounds.Height)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		if isPermissionError(err.Error()) {
			return nil, errs.NewPermissionDenied("display capture")
		}
		return nil, errs.Wrap(errs.CodeCaptureFailed, "capture display", err)
	}
	// Normalize bounds to a (0,0) origin so crop math is frame-relative.
	if img.Bounds().Min != (image.Point{}) {
		out := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
		return out, nil
	}
	return img, nil
}

// CaptureWindow captures a single window via `screencapture -l`, which
// includes occluded content and never includes our own overlay (the overlay
// is excluded from enumeration before a window id ever reaches here).
func (OSBackend) CaptureWindow(windowID int) (*image.RGBA, error) {
	if _, err := exec.LookPath("screencapture"); err != nil {
		return nil, errs.Wrap(errs.CodeCaptureFailed, "screencapture utility unavailable", err)
	}

	tmp, err := os.CreateTemp("", "snapdeck-window-*.png")
	if err != nil {
		return nil, errs.Wrap(errs.CodeCaptureFailed, "create temp file", err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	ctx, cancel := context.WithTimeout(context.Background(), windowCaptureTimeout)
	defer cancel()

	// -x: no sound, -o: no window shadow.
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-o", fmt.Sprintf("-l%d", windowID), path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if isPermissionError(stderr.String()) {
			return nil, errs.NewPermissionDenied("window capture")
		}
		return nil, errs.Wrap(errs.CodeCaptureFailed,
			fmt.Sprintf("screencapture failed (stderr: %s)", strings.TrimSpace(stderr.String())), err)
	}

	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil, errs.Newf(errs.CodeCaptureFailed, "window %d produced no image data", windowID)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.CodeCaptureFailed, "decode window capture", err)
	}
	out := image.NewRGBA(image.Rect(0, 0, decoded.Bounds().Dx(), decoded.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	return out, nil
}

// isPermissionError spots the OS screen-recording refusal so it can surface
// as the distinct, user-actionable PERMISSION_DENIED condition instead of a
// generic capture failure.
func isPermissionError(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "permission") ||
		strings.Contains(m, "not authorized") ||
		strings.Contains(m, "declined") ||
		strings.Contains(m, "cgerror 1002")
}

var _ Backend = OSBackend{}
