// Package poll drives periodic, visibility-aware refreshes.
package poll

import (
	"context"
	"log"
	"sync"
	"time"
)

// RefreshFunc performs one refresh cycle. Implementations are expected
// to coalesce concurrent calls themselves (in-flight guard).
type RefreshFunc func(ctx context.Context) error

// Poller invokes a refresh at a fixed interval while the page is
// visible. Visibility transitions start and stop the ticker goroutine
// instead of gating each tick, so a backgrounded client does no work at
// all. Regaining visibility fires an immediate refresh before the
// ticker resumes.
type Poller struct {
	interval time.Duration
	refresh  RefreshFunc

	mu      sync.Mutex
	visible bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller builds a stopped Poller; call SetVisible(true) to start it.
func NewPoller(interval time.Duration, refresh RefreshFunc) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{interval: interval, refresh: refresh}
}

// SetVisible reports a page visibility transition. Becoming visible
// starts the polling goroutine with an immediate refresh; becoming
// hidden stops it.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	if p.stopped || p.visible == visible {
		p.mu.Unlock()
		return
	}
	p.visible = visible

	if !visible {
		cancel, done := p.cancel, p.done
		p.cancel, p.done = nil, nil
		p.mu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	go p.run(ctx, done)
}

// Stop tears the poller down. Further SetVisible calls are no-ops.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.visible = false
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether the polling goroutine is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Returning to the app shows fresh state without waiting an interval.
	if err := p.refresh(ctx); err != nil {
		log.Printf("poll: refresh failed: %v", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.refresh(ctx); err != nil {
				log.Printf("poll: refresh failed: %v", err)
			}
		}
	}
}
