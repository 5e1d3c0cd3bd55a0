// Package capture bounds voice-message recording and hands off exactly
// one artifact per session.
package capture

import (
	"bytes"
	"context"
	"sync"
	"time"

	"couplespace/internal/apperr"
)

// Default ceiling for one voice message.
const DefaultMaxDuration = 60 * time.Second

var (
	// ErrRecorderBusy rejects a start while a session is active.
	ErrRecorderBusy = apperr.Conflict("a recording is already in progress")
	// ErrCaptureUnsupported marks a platform without audio capture.
	ErrCaptureUnsupported = apperr.Permission("audio capture is not supported on this platform")
	// ErrCaptureDenied marks a rejected microphone permission.
	ErrCaptureDenied = apperr.Permission("microphone access was denied")
)

// Source abstracts the microphone. Start acquires the input stream and
// emits binary chunks until Stop; acquisition failures surface from
// Start with no partial state.
type Source interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop() error
}

// Result is the single artifact of a completed session.
type Result struct {
	Data     []byte
	Duration time.Duration
	MIMEType string
}

// Recorder runs at most one capture session at a time. When elapsed
// time reaches the ceiling the session stops itself through the same
// path as a manual Stop. Zero-duration or chunkless sessions are
// discarded silently.
type Recorder struct {
	source   Source
	maxSecs  int
	mimeType string
	onResult func(Result)
	ticks    func() (<-chan time.Time, func()) // injectable 1s ticker

	mu      sync.Mutex
	active  bool
	elapsed int
	buf     bytes.Buffer
	cancel  context.CancelFunc
	done    chan struct{}
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithMaxDuration overrides the auto-stop ceiling.
func WithMaxDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.maxSecs = int(d / time.Second) }
}

// WithTicker injects the elapsed-time ticker, returning a channel and a
// release func. Tests feed simulated seconds through it.
func WithTicker(ticks func() (<-chan time.Time, func())) RecorderOption {
	return func(r *Recorder) { r.ticks = ticks }
}

// WithMIMEType sets the mime type stamped onto results.
func WithMIMEType(mime string) RecorderOption {
	return func(r *Recorder) { r.mimeType = mime }
}

// NewRecorder builds a Recorder; onResult receives the artifact of every
// completed non-empty session, whether stopped manually or by the ceiling.
func NewRecorder(source Source, onResult func(Result), opts ...RecorderOption) *Recorder {
	r := &Recorder{
		source:   source,
		maxSecs:  int(DefaultMaxDuration / time.Second),
		mimeType: "audio/webm",
		onResult: onResult,
		ticks: func() (<-chan time.Time, func()) {
			t := time.NewTicker(time.Second)
			return t.C, t.Stop
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start acquires the microphone and begins accumulating chunks and
// elapsed seconds. It fails fast with no partial state when capture is
// unsupported or denied.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return ErrRecorderBusy
	}
	r.active = true
	r.elapsed = 0
	r.buf.Reset()
	r.mu.Unlock()

	chunks, err := r.source.Start(ctx)
	if err != nil {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go r.run(runCtx, chunks, done)
	return nil
}

// Stop finalizes the session, releases the microphone and delivers the
// artifact when the session captured anything. Calling Stop on an idle
// recorder is a no-op.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Elapsed returns the whole seconds captured so far.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.elapsed) * time.Second
}

func (r *Recorder) run(ctx context.Context, chunks <-chan []byte, done chan struct{}) {
	ticks, stopTicks := r.ticks()
	defer func() {
		stopTicks()
		r.finalize()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			r.mu.Lock()
			r.buf.Write(chunk)
			r.mu.Unlock()
		case <-ticks:
			r.mu.Lock()
			r.elapsed++
			reached := r.elapsed >= r.maxSecs
			r.mu.Unlock()
			if reached {
				return
			}
		}
	}
}

// finalize releases the stream and delivers the artifact exactly once.
// Cleanup is best-effort; secondary errors are swallowed.
func (r *Recorder) finalize() {
	_ = r.source.Stop()

	r.mu.Lock()
	data := make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())
	elapsed := r.elapsed
	r.active = false
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if elapsed == 0 || len(data) == 0 {
		return
	}
	if r.onResult != nil {
		r.onResult(Result{
			Data:     data,
			Duration: time.Duration(elapsed) * time.Second,
			MIMEType: r.mimeType,
		})
	}
}
