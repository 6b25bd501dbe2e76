// Package recognition runs text recognition over artifacts asynchronously.
// Each artifact is an independent unit of concurrency with a monotonic
// status transition per invocation: pending -> running -> done|failed. The
// pipeline never writes files; results go back through the store, which is
// the sole sidecar writer.
package recognition

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"

	"snapdeck/src/artifact"
)

// DefaultDeadline bounds a single recognition run; expiry transitions the
// artifact to failed rather than leaving it running forever.
const DefaultDeadline = 20 * time.Second

// Engine is the opaque external OCR boundary: an image file path and
// language hints in, recognized text or an error out. No latency or success
// contract.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, languages []string) (string, error)
}

// Updater is the slice of the artifact store the pipeline needs.
type Updater interface {
	Get(id string) (artifact.Artifact, bool)
	Update(a artifact.Artifact) error
}

// Options configures a Pipeline.
type Options struct {
	// Workers defaults to NumCPU when <= 0.
	Workers int
	// Deadline defaults to DefaultDeadline when <= 0.
	Deadline time.Duration
	// Languages are passed to the engine as recognition hints.
	Languages []string
}

// Pipeline is a fixed-size worker pool with per-artifact coalescing: a
// second request for an artifact that is already in flight is ignored, so
// the same artifact is never recognized twice concurrently.
type Pipeline struct {
	engine Engine
	store  Updater
	opts   Options

	jobs chan job
	wg   sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	closed   bool
}

type job struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and starts a pipeline.
func New(engine Engine, store Updater, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	p := &Pipeline{
		engine:   engine,
		store:    store,
		opts:     opts,
		jobs:     make(chan job, 64),
		inflight: make(map[string]context.CancelFunc),
	}
	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Enqueue requests recognition for the artifact. Returns false when the
// artifact is already in flight (the request coalesces), the queue is full,
// or the pipeline is closed. Valid from any status: a terminal artifact
// restarts at running.
func (p *Pipeline) Enqueue(a artifact.Artifact) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if _, busy := p.inflight[a.ID]; busy {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Deadline)
	// The send happens under the same mutex Close holds while closing the
	// channel, so it can never race a close. It must not block here: a
	// worker finishing a job needs the mutex to clear its inflight entry.
	select {
	case p.jobs <- job{id: a.ID, ctx: ctx, cancel: cancel}:
		p.inflight[a.ID] = cancel
		return true
	default:
		cancel()
		return false
	}
}

// Cancel aborts an in-flight recognition; the artifact transitions to
// failed. Returns false if the artifact is not in flight.
func (p *Pipeline) Cancel(id string) bool {
	p.mu.Lock()
	cancel, ok := p.inflight[id]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// InFlight reports whether the artifact is currently being recognized.
func (p *Pipeline) InFlight(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[id]
	return ok
}

// Close stops the pipeline after draining queued work.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pipeline) run(j job) {
	defer j.cancel()
	defer func() {
		p.mu.Lock()
		delete(p.inflight, j.id)
		p.mu.Unlock()
	}()

	// Mark running before the engine is invoked so observers see progress
	// promptly; a crash mid-recognition leaves a visible, resumable
	// "running" rather than an untouched-looking "pending".
	a, ok := p.store.Get(j.id)
	if !ok {
		return
	}
	a.RecognitionStatus = artifact.StatusRunning
	if err := p.store.Update(a); err != nil {
		log.Printf("recognition: could not mark %s running: %v", j.id, err)
		return
	}

	text, err := p.recognizeWithContext(j.ctx, a.ImagePath)

	// Reload: the artifact may have been renamed or deleted while the
	// engine ran. A completion for a deleted id is a no-op.
	cur, ok := p.store.Get(j.id)
	if !ok {
		return
	}
	if err != nil {
		log.Printf("recognition: %s failed: %v", j.id, err)
		cur.RecognitionStatus = artifact.StatusFailed
	} else {
		cur.RecognitionStatus = artifact.StatusDone
		cur.RecognizedText = text
	}
	if err := p.store.Update(cur); err != nil {
		// The artifact must not stay running. Downgrade to failed and try
		// the write once more; a done result without its text is a lie,
		// but a permanently running one blocks re-runs.
		log.Printf("recognition: could not store result for %s: %v", j.id, err)
		cur.RecognitionStatus = artifact.StatusFailed
		cur.RecognizedText = ""
		if err := p.store.Update(cur); err != nil {
			log.Printf("recognition: %s left running after two failed writes: %v", j.id, err)
		}
	}
}

// recognizeWithContext guards against engines that ignore ctx: the engine
// runs in a sub-goroutine and the deadline is enforced here regardless.
func (p *Pipeline) recognizeWithContext(ctx context.Context, imagePath string) (string, error) {
	type result struct {
		text string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		text, err := p.engine.Recognize(ctx, imagePath, p.opts.Languages)
		resCh <- result{text: text, err: err}
	}()
	select {
	case r := <-resCh:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
