package service

import (
	"context"
	"log"
	"sync"
	"time"

	"challengetracker/internal/metrics"
	"challengetracker/internal/models"
)

// StateLoader loads a reconciled snapshot
type StateLoader interface {
	Load(ctx context.Context) (*models.AppState, error)
}

// Poller refreshes the public display snapshot on a fixed interval
type Poller struct {
	loader   StateLoader
	interval time.Duration

	mu       sync.RWMutex
	last     *models.AppState
	lastErr  error
	lastPoll time.Time
}

// NewPoller creates a poller for the public display snapshot
func NewPoller(loader StateLoader, interval time.Duration) *Poller {
	return &Poller{loader: loader, interval: interval}
}

// Run polls until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll loads one snapshot. On failure the last good snapshot is kept; if
// there is none yet the loader's fallback snapshot is used.
func (p *Poller) Poll(ctx context.Context) error {
	state, err := p.loader.Load(ctx)
	metrics.PublicPolls.WithLabelValues(metrics.Result(err)).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPoll = time.Now()
	p.lastErr = err
	if err != nil {
		log.Printf("Public poll failed: %v", err)
		if p.last == nil && state != nil {
			p.last = state
		}
		return err
	}
	p.last = state
	return nil
}

// Snapshot returns a copy of the last polled state with a display's overrides
// applied, polling first when nothing has been loaded yet. overrides may be nil.
func (p *Poller) Snapshot(ctx context.Context, overrides *OverrideRegister) *models.AppState {
	p.mu.RLock()
	last := p.last
	p.mu.RUnlock()

	if last == nil {
		p.Poll(ctx)
		p.mu.RLock()
		last = p.last
		p.mu.RUnlock()
	}
	if last == nil {
		return nil
	}

	state := last.Clone()
	if overrides != nil {
		overrides.Apply(state)
	}
	return state
}

// LastError returns the error of the most recent poll, if any
func (p *Poller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}
