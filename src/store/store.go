// Package store owns the durable artifact collection: image files on disk,
// one JSON sidecar per artifact under Metadata/, and the in-memory index.
// The store is the sole writer of sidecar files; the recognition pipeline
// hands results back through Update rather than touching disk itself.
//
// Existence invariant: an artifact is in the index iff both its sidecar and
// its image file exist on disk. Load prunes anything that violates this.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"snapdeck/src/artifact"
	"snapdeck/src/errs"
)

// MetadataDirName is the sidecar subdirectory inside the storage root.
const MetadataDirName = "Metadata"

const imageTimeLayout = "2006-01-02 at 15.04.05"

// EventKind discriminates change notifications.
type EventKind int

const (
	EventCreated EventKind = iota
	EventUpdated
	EventDeleted
)

// Event is delivered to subscribers after a mutation has been persisted.
type Event struct {
	Kind     EventKind
	Artifact artifact.Artifact
}

// Options configures a Store.
type Options struct {
	// AutoRecognize enqueues every newly created artifact into the
	// recognition hook exactly once.
	AutoRecognize bool
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store is safe for concurrent use; every mutation goes through one mutex so
// a pipeline completion and a UI edit can never interleave partial writes.
type Store struct {
	dir     string
	metaDir string
	opts    Options

	mu        sync.Mutex
	artifacts map[string]artifact.Artifact
	subs      []func(Event)
	recognize func(artifact.Artifact)
}

// Open creates directories as needed and loads the existing collection.
func Open(dir string, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		dir:       dir,
		metaDir:   filepath.Join(dir, MetadataDirName),
		opts:      opts,
		artifacts: make(map[string]artifact.Artifact),
	}
	if err := os.MkdirAll(s.metaDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.CodePersistenceFailed, "create storage directories", err)
	}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the storage root.
func (s *Store) Dir() string { return s.dir }

// Subscribe registers a change-notification callback. Callbacks run after
// the mutation is persisted, outside the store lock.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// SetRecognizer installs the hook Create uses when auto-recognition is
// enabled. Wired by the coordinator to the pipeline's Enqueue.
func (s *Store) SetRecognizer(fn func(artifact.Artifact)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recognize = fn
}

// Create persists the image and a new sidecar, inserts the artifact into the
// index, and hands it to the recognition hook when auto-recognition is on.
// Either both files and the index entry exist afterwards, or none do.
func (s *Store) Create(img image.Image, src artifact.Source) (artifact.Artifact, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return artifact.Artifact{}, errs.Wrap(errs.CodePersistenceFailed, "encode capture", err)
	}

	s.mu.Lock()
	now := s.opts.Now()
	imagePath, err := s.writeImage(buf.Bytes(), now)
	if err != nil {
		s.mu.Unlock()
		return artifact.Artifact{}, err
	}

	a := artifact.Artifact{
		SchemaVersion:     artifact.CurrentSchemaVersion,
		ID:                ulid.Make().String(),
		ImagePath:         imagePath,
		Title:             strings.TrimSuffix(filepath.Base(imagePath), ".png"),
		CreatedAt:         now,
		Source:            src,
		RecognitionStatus: artifact.StatusPending,
	}
	if err := s.writeSidecar(a); err != nil {
		_ = os.Remove(imagePath)
		s.mu.Unlock()
		return artifact.Artifact{}, err
	}
	s.artifacts[a.ID] = a
	auto := s.opts.AutoRecognize
	hook := s.recognize
	s.mu.Unlock()

	s.notify(Event{Kind: EventCreated, Artifact: a.Clone()})
	if auto && hook != nil {
		hook(a.Clone())
	}
	return a.Clone(), nil
}

// Update replaces the in-memory entry and rewrites only the sidecar. The
// immutable fields (image location, creation time, source) are kept from the
// existing entry regardless of what the caller passes. Updating an id that
// is no longer in the index is a no-op, so a recognition completion racing a
// delete cannot resurrect the artifact.
func (s *Store) Update(a artifact.Artifact) error {
	s.mu.Lock()
	cur, ok := s.artifacts[a.ID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	a.SchemaVersion = artifact.CurrentSchemaVersion
	a.ImagePath = cur.ImagePath
	a.CreatedAt = cur.CreatedAt
	a.Source = cur.Source
	if err := s.writeSidecar(a); err != nil {
		s.mu.Unlock()
		return err
	}
	s.artifacts[a.ID] = a.Clone()
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, Artifact: a.Clone()})
	return nil
}

// Delete removes the image file, the sidecar, and the index entry. Deleting
// an unknown id is a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	a, ok := s.artifacts[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if err := removeIfExists(a.ImagePath); err != nil {
		s.mu.Unlock()
		return errs.Wrap(errs.CodePersistenceFailed, "remove image", err)
	}
	if err := removeIfExists(s.sidecarPath(id)); err != nil {
		s.mu.Unlock()
		return errs.Wrap(errs.CodePersistenceFailed, "remove sidecar", err)
	}
	delete(s.artifacts, id)
	s.mu.Unlock()

	s.notify(Event{Kind: EventDeleted, Artifact: a.Clone()})
	return nil
}

// DeleteMany deletes each id independently; a failure on one does not roll
// back the others.
func (s *Store) DeleteMany(ids []string) error {
	var errsAll []error
	for _, id := range ids {
		if err := s.Delete(id); err != nil {
			errsAll = append(errsAll, err)
		}
	}
	return errors.Join(errsAll...)
}

// ToggleFavorite flips the favorite flag.
func (s *Store) ToggleFavorite(id string) (artifact.Artifact, error) {
	return s.mutate(id, func(a *artifact.Artifact) {
		a.Favorite = !a.Favorite
	})
}

// SetTags replaces the tag set.
func (s *Store) SetTags(id string, tags []string) (artifact.Artifact, error) {
	return s.mutate(id, func(a *artifact.Artifact) {
		a.Tags = append([]string(nil), tags...)
	})
}

// Rename sets the title.
func (s *Store) Rename(id, title string) (artifact.Artifact, error) {
	return s.mutate(id, func(a *artifact.Artifact) {
		a.Title = title
	})
}

// Get returns a copy of the artifact with the given id.
func (s *Store) Get(id string) (artifact.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return artifact.Artifact{}, false
	}
	return a.Clone(), true
}

// Len returns the number of artifacts in the index.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}

// Sorted returns a copy of the collection ordered favorites first (stable),
// then by creation time descending within each partition. This is the only
// ordering consumers ever see.
func (s *Store) Sorted() []artifact.Artifact {
	s.mu.Lock()
	out := make([]artifact.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, a.Clone())
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Favorite != out[j].Favorite {
			return out[i].Favorite
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Load rebuilds the index from disk. Sidecars whose image file is missing
// are pruned along with the dangling sidecar, self-healing a store that was
// interrupted mid-write. A persisted "running" status is demoted to
// "pending": the process that was running it is gone, and pending is
// re-runnable. Returns the number of pruned sidecars.
func (s *Store) Load() (int, error) {
	entries, err := os.ReadDir(s.metaDir)
	if err != nil {
		return 0, errs.Wrap(errs.CodePersistenceFailed, "read metadata directory", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = make(map[string]artifact.Artifact, len(entries))
	pruned := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.metaDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("store: skipping unreadable sidecar %s: %v", e.Name(), err)
			continue
		}
		var a artifact.Artifact
		if err := json.Unmarshal(data, &a); err != nil || a.ID == "" {
			log.Printf("store: pruning malformed sidecar %s", e.Name())
			_ = os.Remove(path)
			pruned++
			continue
		}
		if _, err := os.Stat(a.ImagePath); err != nil {
			log.Printf("store: pruning orphaned sidecar %s (image missing)", e.Name())
			_ = os.Remove(path)
			pruned++
			continue
		}
		if !a.RecognitionStatus.Valid() {
			a.RecognitionStatus = artifact.StatusPending
		}
		if a.RecognitionStatus == artifact.StatusRunning {
			a.RecognitionStatus = artifact.StatusPending
			if err := s.writeSidecar(a); err != nil {
				log.Printf("store: could not demote running status for %s: %v", a.ID, err)
			}
		}
		s.artifacts[a.ID] = a
	}
	return pruned, nil
}

func (s *Store) mutate(id string, fn func(*artifact.Artifact)) (artifact.Artifact, error) {
	s.mu.Lock()
	cur, ok := s.artifacts[id]
	if !ok {
		s.mu.Unlock()
		return artifact.Artifact{}, errs.NewNotFound(id)
	}
	next := cur.Clone()
	fn(&next)
	if err := s.writeSidecar(next); err != nil {
		s.mu.Unlock()
		return artifact.Artifact{}, err
	}
	s.artifacts[id] = next
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, Artifact: next.Clone()})
	return next.Clone(), nil
}

// writeImage writes the PNG bytes under a time-based name, suffixing with
// " (n)" on collision. Caller holds the lock.
func (s *Store) writeImage(data []byte, now time.Time) (string, error) {
	base := "Capture " + now.Format(imageTimeLayout)
	name := base + ".png"
	for n := 2; ; n++ {
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				name = fmt.Sprintf("%s (%d).png", base, n)
				continue
			}
			return "", errs.Wrap(errs.CodePersistenceFailed, "create image file", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", errs.Wrap(errs.CodePersistenceFailed, "write image file", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", errs.Wrap(errs.CodePersistenceFailed, "close image file", err)
		}
		return path, nil
	}
}

// writeSidecar writes the sidecar atomically: temp file, then rename. A
// failed write never leaves a truncated sidecar behind. Caller holds the
// lock.
func (s *Store) writeSidecar(a artifact.Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errs.Wrap(errs.CodePersistenceFailed, "encode sidecar", err)
	}
	path := s.sidecarPath(a.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.CodePersistenceFailed, "write sidecar", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errs.Wrap(errs.CodePersistenceFailed, "rename sidecar", err)
	}
	return nil
}

func (s *Store) sidecarPath(id string) string {
	return filepath.Join(s.metaDir, id+".json")
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	subs := append(([]func(Event))(nil), s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
