// Package artifact defines the durable unit produced by a capture: the
// persisted image plus its metadata sidecar schema.
package artifact

import "time"

// CurrentSchemaVersion identifies the persisted sidecar schema version.
const CurrentSchemaVersion = 1

// Status is the recognition state of one artifact. Transitions are monotonic
// per invocation (pending -> running -> done|failed); a manual re-run moves a
// terminal status back to running.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status is an end state for one invocation.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Source records how an artifact was captured.
type Source struct {
	// Mode is "region" or "window".
	Mode string `json:"mode"`
	// OwnerName is the owning process of the captured window, if any.
	OwnerName string `json:"ownerName,omitempty"`
}

// Artifact is one persisted capture. ID, ImagePath, CreatedAt and Source are
// immutable once written; the remaining fields are mutable through the store.
type Artifact struct {
	SchemaVersion     int       `json:"schemaVersion"`
	ID                string    `json:"id"`
	ImagePath         string    `json:"imageLocation"`
	Title             string    `json:"title"`
	CreatedAt         time.Time `json:"createdAt"`
	Favorite          bool      `json:"favorite"`
	Tags              []string  `json:"tags,omitempty"`
	Source            Source    `json:"source"`
	RecognitionStatus Status    `json:"recognitionStatus"`
	RecognizedText    string    `json:"recognizedText,omitempty"`
}

// Clone returns a deep copy; Tags is the only reference field.
func (a Artifact) Clone() Artifact {
	if a.Tags != nil {
		a.Tags = append([]string(nil), a.Tags...)
	}
	return a
}

// HasTag reports whether the artifact carries the given tag.
func (a Artifact) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
