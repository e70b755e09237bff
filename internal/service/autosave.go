package service

import (
	"context"
	"log"
	"sync"
	"time"

	"challengetracker/internal/metrics"
)

// Save status labels shown to the instructor
const (
	StatusSaving = "Saving changes..."
	StatusSaved  = "All changes saved"
	StatusError  = "Error saving"
)

// SaveStatus is a point-in-time view of the autosaver
type SaveStatus struct {
	Status    string    `json:"status"`
	Pending   bool      `json:"pending"`
	LastError string    `json:"lastError,omitempty"`
	LastSaved time.Time `json:"lastSaved,omitempty"`
}

// Autosaver debounces saves. Every Schedule cancels the pending timer and
// starts a new one; when the timer fires the save function runs and must
// derive its payload from current state at that moment. Saves never overlap.
type Autosaver struct {
	delay time.Duration
	save  func(ctx context.Context) error

	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	status    string
	lastErr   error
	lastSaved time.Time

	saveMu sync.Mutex
}

// NewAutosaver creates an autosaver that runs save delay after the last Schedule
func NewAutosaver(delay time.Duration, save func(ctx context.Context) error) *Autosaver {
	return &Autosaver{delay: delay, save: save, status: StatusSaved}
}

// Schedule (re)starts the debounce timer
func (a *Autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen) })
	metrics.PendingAutosave.Set(1)
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.timer == nil {
		// superseded by a later Schedule or Cancel
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()
	metrics.PendingAutosave.Set(0)

	if err := a.run(context.Background()); err != nil {
		log.Printf("Autosave failed: %v", err)
	}
}

// Flush cancels any pending timer and saves immediately. It is also the
// explicit retry after a failed save.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.Cancel()
	return a.run(ctx)
}

// Cancel drops a pending save without running it
func (a *Autosaver) Cancel() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	a.mu.Unlock()
	metrics.PendingAutosave.Set(0)
}

func (a *Autosaver) run(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.setStatus(StatusSaving, nil)
	err := a.save(ctx)
	if err != nil {
		a.setStatus(StatusError, err)
		return err
	}
	a.setStatus(StatusSaved, nil)
	return nil
}

func (a *Autosaver) setStatus(status string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
	a.lastErr = err
	if status == StatusSaved {
		a.lastSaved = time.Now()
	}
}

// Status returns the current save status
func (a *Autosaver) Status() SaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := SaveStatus{
		Status:    a.status,
		Pending:   a.timer != nil,
		LastSaved: a.lastSaved,
	}
	if a.lastErr != nil {
		s.LastError = a.lastErr.Error()
	}
	return s
}
