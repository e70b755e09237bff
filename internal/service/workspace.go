package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"challengetracker/internal/metrics"
	"challengetracker/internal/models"
)

// Workspace is the instructor console's snapshot. Dashboard and Admin share
// it; every mutation schedules a debounced save of the whole snapshot.
type Workspace struct {
	reconciler *Reconciler
	ledger     *HistoryLedger
	autosaver  *Autosaver
	now        func() time.Time

	mu    sync.RWMutex
	state *models.AppState
	// epoch changes whenever the snapshot is replaced wholesale
	epoch uint64
	// loaded stays false until a Reload succeeds; until then the snapshot is
	// the default and must neither be edited nor saved over the store
	loaded bool

	// ledgerMu orders progress changes and their ledger writes
	ledgerMu sync.Mutex
}

// NewWorkspace creates a workspace seeded with the default snapshot; call Reload to read the store
func NewWorkspace(reconciler *Reconciler, ledger *HistoryLedger, autosaveDelay time.Duration) *Workspace {
	w := &Workspace{
		reconciler: reconciler,
		ledger:     ledger,
		now:        time.Now,
		state:      models.DefaultAppState(reconciler.Slots()),
	}
	w.autosaver = NewAutosaver(autosaveDelay, w.save)
	return w
}

// Reload replaces the snapshot with a fresh load. When the store fails and a
// snapshot is already held, the held snapshot is kept.
func (w *Workspace) Reload(ctx context.Context) error {
	state, err := w.reconciler.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload workspace: %w", err)
	}
	w.mu.Lock()
	w.state = state
	w.epoch++
	w.loaded = true
	w.mu.Unlock()
	return nil
}

// Loaded reports whether a Reload has succeeded
func (w *Workspace) Loaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded
}

// Snapshot returns a deep copy of the current state
func (w *Workspace) Snapshot() *models.AppState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state.Clone()
}

// Slots returns the canonical class slots
func (w *Workspace) Slots() []models.ClassSlot {
	return w.reconciler.Slots()
}

// Mutate applies fn to a copy of the state. The copy replaces the state and
// a save is scheduled only when fn succeeds.
func (w *Workspace) Mutate(fn func(state *models.AppState) error) error {
	w.mu.Lock()
	if !w.loaded {
		w.mu.Unlock()
		return ErrStateNotLoaded
	}
	next := w.state.Clone()
	if err := fn(next); err != nil {
		w.mu.Unlock()
		return err
	}
	w.state = next
	w.mu.Unlock()

	w.autosaver.Schedule()
	return nil
}

// ToggleChallenge flips one challenge for a student of the current week
// theme, then records the resulting completion set in the history ledger.
// Toggles are serialized so the ledger is written in the same order as the
// progress map. A ledger failure is returned but does not undo the toggle.
func (w *Workspace) ToggleChallenge(ctx context.Context, classID, studentID string, index int) (*Toggle, *models.HistoryEntry, error) {
	w.ledgerMu.Lock()
	defer w.ledgerMu.Unlock()

	now := w.now()
	var toggle *Toggle
	err := w.Mutate(func(state *models.AppState) error {
		var err error
		toggle, err = ToggleChallenge(state, classID, studentID, index, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.ChallengeToggles.Inc()

	entry, err := w.ledger.AppendOrUpdate(ctx, toggle.Progress.StudentName, toggle.ClassName, toggle.ThemeName,
		toggle.ChallengeNames, toggle.AllAvailable, now)
	if err != nil {
		return toggle, nil, err
	}
	return toggle, entry, nil
}

// EditHistoryEntry overwrites one ledger row and, when its theme, class and
// student still exist in the snapshot, writes the edited challenge set back
// into the progress map. It reports whether progress was written back.
func (w *Workspace) EditHistoryEntry(ctx context.Context, entry models.HistoryEntry) (bool, error) {
	w.ledgerMu.Lock()
	defer w.ledgerMu.Unlock()

	if err := w.ledger.Update(ctx, entry); err != nil {
		return false, err
	}

	writtenBack := false
	err := w.Mutate(func(state *models.AppState) error {
		theme := state.ThemeByName(entry.WeekTheme)
		if theme == nil {
			return errNoWriteBack
		}
		class := theme.ClassByName(entry.ClassName)
		if class == nil {
			return errNoWriteBack
		}
		var student *models.Student
		for i := range class.Students {
			if class.Students[i].Name == entry.StudentName {
				student = &class.Students[i]
				break
			}
		}
		if student == nil {
			return errNoWriteBack
		}

		available := entry.AllAvailableChallenges
		if len(available) == 0 {
			available = theme.Challenges
		}
		SetCompleted(state, class.ID, student.ID, student.Name, theme.Name, NamesToSlots(entry.Challenges, available), w.now())
		writtenBack = true
		return nil
	})
	if errors.Is(err, errNoWriteBack) {
		log.Printf("History entry %s no longer matches a roster; progress left unchanged", entry.ID)
		return false, nil
	}
	return writtenBack, err
}

var errNoWriteBack = errors.New("history entry does not match the roster")

// Flush saves immediately, cancelling any pending debounced save
func (w *Workspace) Flush(ctx context.Context) error {
	return w.autosaver.Flush(ctx)
}

// Status returns the autosave status
func (w *Workspace) Status() SaveStatus {
	return w.autosaver.Status()
}

// Close cancels a pending debounced save
func (w *Workspace) Close() {
	w.autosaver.Cancel()
}

// save persists a copy of the state taken when the save runs, then copies
// newly assigned theme ids back
func (w *Workspace) save(ctx context.Context) error {
	snapshot, epoch, loaded := w.saveSnapshot()
	if !loaded {
		return ErrStateNotLoaded
	}
	err := w.reconciler.Save(ctx, snapshot)
	w.writeBackThemeIDs(snapshot, epoch)
	return err
}

func (w *Workspace) saveSnapshot() (*models.AppState, uint64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state.Clone(), w.epoch, w.loaded
}

// writeBackThemeIDs fills in ids the store assigned to themes that had none.
// Themes are only ever appended, so ids are matched by position, and nothing
// is written back when the snapshot was replaced while the save ran.
func (w *Workspace) writeBackThemeIDs(saved *models.AppState, epoch uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		return
	}
	for i, theme := range saved.Themes {
		if theme.ID == 0 || i >= len(w.state.Themes) {
			continue
		}
		if w.state.Themes[i].ID == 0 {
			w.state.Themes[i].ID = theme.ID
		}
	}
}
