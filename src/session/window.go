package session

import "snapdeck/src/geometry"

// WindowCandidate is one on-screen window enumerated when a Window-mode
// session arms. The list is session-scoped and never persisted.
type WindowCandidate struct {
	WindowID  int
	Bounds    geometry.Rect // global capture space
	OwnerName string
	Title     string
	// Layer is the window server layer; 0 is the normal application layer.
	Layer int
}

// WindowEnumerator lists the current on-screen windows, front to back. It is
// an external collaborator; the OS binding lives outside this package.
type WindowEnumerator interface {
	Enumerate() ([]WindowCandidate, error)
}

// WindowFilter decides whether a candidate is selectable.
type WindowFilter func(WindowCandidate) bool

// systemShellOwners are window owners that present desktop furniture rather
// than capturable application content.
var systemShellOwners = map[string]bool{
	"Dock":          true,
	"Window Server": true,
	"Wallpaper":     true,
}

// DefaultWindowFilter excludes desktop/system-shell windows, windows outside
// the normal application layer, unowned windows, and the invoking
// application's own overlay (selfOwner). Extra owner names extend the
// exclusion set.
func DefaultWindowFilter(selfOwner string, exclude ...string) WindowFilter {
	extra := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		extra[name] = true
	}
	return func(w WindowCandidate) bool {
		if w.Layer != 0 {
			return false
		}
		if w.OwnerName == "" {
			return false
		}
		if selfOwner != "" && w.OwnerName == selfOwner {
			return false
		}
		if systemShellOwners[w.OwnerName] || extra[w.OwnerName] {
			return false
		}
		return !w.Bounds.Empty()
	}
}
