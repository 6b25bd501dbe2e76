package coordinator

import (
	"context"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapdeck/src/artifact"
	"snapdeck/src/errs"
	"snapdeck/src/geometry"
	"snapdeck/src/rasterizer"
	"snapdeck/src/recognition"
	"snapdeck/src/session"
	"snapdeck/src/store"
)

var testSurface = geometry.Surface{
	ID:           "display-0",
	Bounds:       geometry.Rect{Width: 1440, Height: 900},
	BackingScale: 1,
}

// fakeBackend serves a synthetic full frame so region crops exercise the real
// rasterizer path.
type fakeBackend struct {
	err error
}

func (b fakeBackend) CaptureSurface(s geometry.Surface) (*image.RGBA, error) {
	if b.err != nil {
		return nil, b.err
	}
	return image.NewRGBA(image.Rect(0, 0, s.Bounds.Width, s.Bounds.Height)), nil
}

func (b fakeBackend) CaptureWindow(int) (*image.RGBA, error) {
	if b.err != nil {
		return nil, b.err
	}
	return image.NewRGBA(image.Rect(0, 0, 400, 300)), nil
}

type staticWindows struct {
	windows []session.WindowCandidate
}

func (s staticWindows) Enumerate() ([]session.WindowCandidate, error) {
	return s.windows, nil
}

func newTestCoordinator(t *testing.T, deps Deps) (*Coordinator, *store.Store) {
	t.Helper()
	if deps.Store == nil {
		st, err := store.Open(t.TempDir(), store.Options{AutoRecognize: false})
		require.NoError(t, err)
		deps.Store = st
	}
	if deps.Rasterizer == nil {
		deps.Rasterizer = rasterizer.New(fakeBackend{})
	}
	if deps.Surfaces == nil {
		deps.Surfaces = func() ([]geometry.Surface, error) {
			return []geometry.Surface{testSurface}, nil
		}
	}
	c, err := New(deps)
	require.NoError(t, err)
	return c, deps.Store
}

func TestRegionCaptureCreatesPendingArtifact(t *testing.T) {
	c, st := newTestCoordinator(t, Deps{})

	var got artifact.Artifact
	var completed bool
	sess, err := c.StartCapture(session.ModeRegion, Callbacks{
		OnComplete: func(a artifact.Artifact) { got, completed = a, true },
		OnCancel:   func() { t.Error("unexpected cancel") },
		OnError:    func(err error) { t.Errorf("unexpected error: %v", err) },
	})
	require.NoError(t, err)

	sess.PointerDown(geometry.Point{X: 100, Y: 500})
	sess.PointerMove(geometry.Point{X: 300, Y: 400})
	sess.PointerUp(geometry.Point{X: 300, Y: 400})

	require.True(t, completed)
	assert.Equal(t, artifact.StatusPending, got.RecognitionStatus)
	assert.Equal(t, "region", got.Source.Mode)

	stored, err := os.Open(got.ImagePath)
	require.NoError(t, err)
	defer stored.Close()
	cfg, _, err := image.DecodeConfig(stored)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 100, cfg.Height)

	assert.Equal(t, 1, st.Len())
}

func TestRegionBelowMinimumCancelsWithoutArtifact(t *testing.T) {
	c, st := newTestCoordinator(t, Deps{})

	var cancelled bool
	sess, err := c.StartCapture(session.ModeRegion, Callbacks{
		OnComplete: func(artifact.Artifact) { t.Error("unexpected completion") },
		OnCancel:   func() { cancelled = true },
	})
	require.NoError(t, err)

	sess.PointerDown(geometry.Point{X: 100, Y: 100})
	sess.PointerUp(geometry.Point{X: 105, Y: 160})

	assert.True(t, cancelled)
	assert.Zero(t, st.Len())
}

func TestWindowCaptureRecordsOwner(t *testing.T) {
	c, st := newTestCoordinator(t, Deps{
		Windows: staticWindows{windows: []session.WindowCandidate{
			{WindowID: 11, Bounds: geometry.Rect{X: 100, Y: 100, Width: 400, Height: 300}, OwnerName: "Safari"},
		}},
	})

	var got artifact.Artifact
	var completed bool
	sess, err := c.StartCapture(session.ModeWindow, Callbacks{
		OnComplete: func(a artifact.Artifact) { got, completed = a, true },
		OnError:    func(err error) { t.Errorf("unexpected error: %v", err) },
	})
	require.NoError(t, err)

	// Global {100,100,400,300} on a 900-high surface is view-local {100,500}.
	sess.PointerMove(geometry.Point{X: 200, Y: 600})
	sess.PointerUp(geometry.Point{X: 200, Y: 600})

	require.True(t, completed)
	assert.Equal(t, "window", got.Source.Mode)
	assert.Equal(t, "Safari", got.Source.OwnerName)
	assert.Equal(t, 1, st.Len())
}

func TestBackendPermissionErrorSurfacesDistinctly(t *testing.T) {
	c, st := newTestCoordinator(t, Deps{
		Rasterizer: rasterizer.New(fakeBackend{err: errs.NewPermissionDenied("screen recording")}),
	})

	var capErr error
	sess, err := c.StartCapture(session.ModeRegion, Callbacks{
		OnComplete: func(artifact.Artifact) { t.Error("unexpected completion") },
		OnError:    func(err error) { capErr = err },
	})
	require.NoError(t, err)

	sess.PointerDown(geometry.Point{X: 0, Y: 0})
	sess.PointerUp(geometry.Point{X: 100, Y: 100})

	require.Error(t, capErr)
	assert.True(t, errs.Is(capErr, errs.CodePermissionDenied))
	assert.Zero(t, st.Len())
}

func TestNoSurfacesFailsToArm(t *testing.T) {
	c, _ := newTestCoordinator(t, Deps{
		Surfaces: func() ([]geometry.Surface, error) { return nil, nil },
	})
	_, err := c.StartCapture(session.ModeRegion, Callbacks{})
	assert.True(t, errs.Is(err, errs.CodeCaptureFailed))
}

func TestDeleteWhileRunningMakesCompletionNoOp(t *testing.T) {
	st, err := store.Open(t.TempDir(), store.Options{AutoRecognize: true})
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan string, 1)
	engine := engineFunc(func(ctx context.Context, imagePath string, _ []string) (string, error) {
		started <- imagePath
		select {
		case <-release:
			return "late text", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	p := recognition.New(engine, st, recognition.Options{Workers: 1})
	defer p.Close()

	c, _ := newTestCoordinator(t, Deps{Store: st, Pipeline: p})

	var got artifact.Artifact
	sess, err := c.StartCapture(session.ModeRegion, Callbacks{
		OnComplete: func(a artifact.Artifact) { got = a },
	})
	require.NoError(t, err)
	sess.PointerDown(geometry.Point{X: 0, Y: 0})
	sess.PointerUp(geometry.Point{X: 50, Y: 50})
	require.NotEmpty(t, got.ID)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("recognition never started")
	}

	require.NoError(t, st.Delete(got.ID))
	close(release)

	// The pipeline's completion write must not resurrect the artifact.
	require.Eventually(t, func() bool { return !p.InFlight(got.ID) }, 2*time.Second, 10*time.Millisecond)
	_, ok := st.Get(got.ID)
	assert.False(t, ok)
	assert.Zero(t, st.Len())
	_, err = os.Stat(filepath.Join(st.Dir(), store.MetadataDirName, got.ID+".json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecognizeArtifactUnknownID(t *testing.T) {
	st, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	p := recognition.New(engineFunc(func(context.Context, string, []string) (string, error) {
		return "", nil
	}), st, recognition.Options{Workers: 1})
	defer p.Close()

	c, _ := newTestCoordinator(t, Deps{Store: st, Pipeline: p})
	err = c.RecognizeArtifact("01ZZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

func TestCopyTextRequiresRecognizedText(t *testing.T) {
	c, st := newTestCoordinator(t, Deps{})

	a, err := st.Create(image.NewRGBA(image.Rect(0, 0, 20, 20)), artifact.Source{Mode: "region"})
	require.NoError(t, err)

	err = c.CopyText(a.ID)
	assert.Error(t, err)

	err = c.CopyText("missing")
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

type engineFunc func(ctx context.Context, imagePath string, languages []string) (string, error)

func (f engineFunc) Recognize(ctx context.Context, imagePath string, languages []string) (string, error) {
	return f(ctx, imagePath, languages)
}

func TestCancelRecognitionAbortsInFlight(t *testing.T) {
	st, err := store.Open(t.TempDir(), store.Options{AutoRecognize: false})
	require.NoError(t, err)

	started := make(chan struct{}, 1)
	engine := engineFunc(func(ctx context.Context, _ string, _ []string) (string, error) {
		started <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := recognition.New(engine, st, recognition.Options{Workers: 1})
	defer p.Close()

	c, _ := newTestCoordinator(t, Deps{Store: st, Pipeline: p})

	a, err := st.Create(image.NewRGBA(image.Rect(0, 0, 20, 20)), artifact.Source{Mode: "region"})
	require.NoError(t, err)

	assert.False(t, c.CancelRecognition(a.ID), "nothing in flight yet")

	require.NoError(t, c.RecognizeArtifact(a.ID))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("recognition never started")
	}

	assert.True(t, c.CancelRecognition(a.ID))
	require.Eventually(t, func() bool {
		cur, ok := st.Get(a.ID)
		return ok && cur.RecognitionStatus == artifact.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !p.InFlight(a.ID) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, c.CancelRecognition(a.ID), "cancel after completion")
}
