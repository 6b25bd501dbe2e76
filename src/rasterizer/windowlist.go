package rasterizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"snapdeck/src/errs"
	"snapdeck/src/geometry"
	"snapdeck/src/session"
)

const windowListTimeout = 5 * time.Second

// windowListScript dumps the on-screen window list as JSON through the
// JavaScript-for-Automation bridge to CGWindowListCopyWindowInfo. The window
// numbers it reports are the identifiers screencapture -l accepts, so an
// enumerated candidate can be captured directly.
const windowListScript = `ObjC.import('CoreGraphics');
var info = $.CGWindowListCopyWindowInfo(
    $.kCGWindowListOptionOnScreenOnly | $.kCGWindowListExcludeDesktopElements,
    $.kCGNullWindowID);
JSON.stringify(ObjC.deepUnwrap(info));`

// cgWindow mirrors one CGWindowListCopyWindowInfo dictionary. Bounds are in
// global top-left coordinates, matching WindowCandidate's contract.
type cgWindow struct {
	Number    int    `json:"kCGWindowNumber"`
	OwnerName string `json:"kCGWindowOwnerName"`
	Name      string `json:"kCGWindowName"`
	Layer     int    `json:"kCGWindowLayer"`
	Bounds    struct {
		X      float64 `json:"X"`
		Y      float64 `json:"Y"`
		Width  float64 `json:"Width"`
		Height float64 `json:"Height"`
	} `json:"kCGWindowBounds"`
}

// Enumerate lists the on-screen windows front to back by shelling out to
// osascript. Screen-recording permission gates window titles and, on refusal,
// the whole query.
func (OSBackend) Enumerate() ([]session.WindowCandidate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), windowListTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "osascript", "-l", "JavaScript", "-e", windowListScript)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if isPermissionError(msg) {
			return nil, errs.NewPermissionDenied("window list")
		}
		return nil, fmt.Errorf("osascript window list: %w (stderr: %s)", err, msg)
	}
	return parseWindowList(stdout.Bytes())
}

func parseWindowList(data []byte) ([]session.WindowCandidate, error) {
	var raw []cgWindow
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, fmt.Errorf("parse window list: %w", err)
	}
	out := make([]session.WindowCandidate, 0, len(raw))
	for _, w := range raw {
		out = append(out, session.WindowCandidate{
			WindowID:  w.Number,
			OwnerName: w.OwnerName,
			Title:     w.Name,
			Layer:     w.Layer,
			Bounds: geometry.Rect{
				X:      int(w.Bounds.X),
				Y:      int(w.Bounds.Y),
				Width:  int(w.Bounds.Width),
				Height: int(w.Bounds.Height),
			},
		})
	}
	return out, nil
}

var _ session.WindowEnumerator = OSBackend{}
