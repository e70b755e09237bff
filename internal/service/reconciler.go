package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"challengetracker/internal/metrics"
	"challengetracker/internal/models"
	"challengetracker/internal/repository"
)

// Reconciler translates between the normalized entity store and the
// denormalized AppState snapshot
type Reconciler struct {
	store *repository.Store
	slots []models.ClassSlot
}

// NewReconciler creates a reconciler that scaffolds themes with the given class slots
func NewReconciler(store *repository.Store, slots []models.ClassSlot) *Reconciler {
	if len(slots) == 0 {
		slots = models.DefaultClassSlots
	}
	return &Reconciler{store: store, slots: slots}
}

// Slots returns the canonical class slot enumeration
func (r *Reconciler) Slots() []models.ClassSlot {
	return r.slots
}

// Load reads the entity store and assembles a fully scaffolded snapshot.
// The returned state is never nil: when the store cannot be read the default
// snapshot is returned together with the error.
func (r *Reconciler) Load(ctx context.Context) (*models.AppState, error) {
	rows, err := r.store.FetchAll(ctx)
	if err != nil {
		metrics.StateLoadFallbacks.Inc()
		log.Printf("Failed to load state, using defaults: %v", err)
		return models.DefaultAppState(r.slots), err
	}
	return r.Assemble(rows), nil
}

// Assemble builds the snapshot tree from raw store rows
func (r *Reconciler) Assemble(rows *repository.Rows) *models.AppState {
	if len(rows.Themes) == 0 {
		return models.DefaultAppState(r.slots)
	}

	classesByTheme := make(map[int64][]repository.ClassRow)
	for _, c := range rows.Classes {
		classesByTheme[c.ThemeID] = append(classesByTheme[c.ThemeID], c)
	}
	type rosterKey struct {
		themeID int64
		classID string
	}
	rosters := make(map[rosterKey][]models.Student)
	for _, m := range rows.Memberships {
		k := rosterKey{m.ThemeID, m.ClassID}
		rosters[k] = append(rosters[k], models.Student{ID: m.StudentID, Name: m.StudentName})
	}

	state := &models.AppState{
		Themes:   make([]models.Theme, 0, len(rows.Themes)),
		Progress: make(map[string]models.StudentProgress, len(rows.Progress)),
	}
	for _, theme := range rows.Themes {
		classRows := classesByTheme[theme.ID]
		sort.SliceStable(classRows, func(i, j int) bool { return classRows[i].Position < classRows[j].Position })

		theme.Classes = make([]models.ClassSession, 0, len(classRows))
		for _, c := range classRows {
			students := rosters[rosterKey{theme.ID, c.ID}]
			if students == nil {
				students = []models.Student{}
			}
			theme.Classes = append(theme.Classes, models.ClassSession{ID: c.ID, Name: c.Name, Students: students})
		}
		state.Themes = append(state.Themes, theme)
	}

	for _, p := range rows.Progress {
		state.Progress[p.Key()] = p.StudentProgress
	}

	state.CurrentWeekTheme = rows.Settings[models.SettingCurrentWeekTheme]
	state.PublicThemeName = rows.Settings[models.SettingPublicThemeName]
	state.PublicClassID = rows.Settings[models.SettingPublicClassID]
	state.SelectedClassID = rows.Settings[models.SettingSelectedClassID]

	r.Scaffold(state)
	return state
}

// Scaffold repairs a snapshot in place so every structural invariant holds:
// at least one theme, unique theme names, five challenges per theme, exactly
// the canonical class slots in canonical order, each student in at most one
// class per theme, normalized progress slot sets and resolvable settings.
func (r *Reconciler) Scaffold(state *models.AppState) {
	if state.Progress == nil {
		state.Progress = make(map[string]models.StudentProgress)
	}

	seenThemes := make(map[string]bool, len(state.Themes))
	themes := state.Themes[:0]
	for _, theme := range state.Themes {
		if theme.Name == "" || seenThemes[theme.Name] {
			log.Printf("Dropping duplicate or unnamed theme %q", theme.Name)
			continue
		}
		seenThemes[theme.Name] = true
		themes = append(themes, theme)
	}
	state.Themes = themes
	if len(state.Themes) == 0 {
		state.Themes = []models.Theme{models.DefaultTheme(r.slots)}
	}

	for i := range state.Themes {
		r.scaffoldTheme(&state.Themes[i])
	}

	for key, progress := range state.Progress {
		if _, _, _, err := models.SplitProgressKey(key); err != nil {
			log.Printf("Skipping progress entry: %v", err)
			metrics.SkippedProgressKeys.Inc()
			delete(state.Progress, key)
			continue
		}
		progress.ChallengesCompleted = models.NormalizeSlots(progress.ChallengesCompleted)
		state.Progress[key] = progress
	}

	r.resolveSettings(state)
}

func (r *Reconciler) scaffoldTheme(theme *models.Theme) {
	for len(theme.Challenges) < models.ChallengesPerTheme {
		theme.Challenges = append(theme.Challenges, fmt.Sprintf("Challenge %d", len(theme.Challenges)+1))
	}
	theme.Challenges = theme.Challenges[:models.ChallengesPerTheme]
	if theme.ChallengeImages != nil {
		for len(theme.ChallengeImages) < models.ChallengesPerTheme {
			theme.ChallengeImages = append(theme.ChallengeImages, "")
		}
		theme.ChallengeImages = theme.ChallengeImages[:models.ChallengesPerTheme]
	}

	present := make(map[string]models.ClassSession, len(theme.Classes))
	var strays []models.Student
	for _, class := range theme.Classes {
		if !r.isCanonical(class.ID) {
			strays = append(strays, class.Students...)
			continue
		}
		if existing, ok := present[class.ID]; ok {
			existing.Students = append(existing.Students, class.Students...)
			present[class.ID] = existing
			continue
		}
		present[class.ID] = class
	}

	placed := make(map[string]bool)
	classes := make([]models.ClassSession, 0, len(r.slots))
	for _, slot := range r.slots {
		class, ok := present[slot.ID]
		if !ok {
			class = models.ClassSession{ID: slot.ID, Name: slot.Name}
		}
		if class.Name == "" {
			class.Name = slot.Name
		}
		students := make([]models.Student, 0, len(class.Students))
		for _, s := range class.Students {
			if placed[s.ID] {
				continue
			}
			placed[s.ID] = true
			students = append(students, s)
		}
		class.Students = students
		classes = append(classes, class)
	}

	// students from unknown slots wait in the unassigned pool
	for i := range classes {
		if classes[i].ID != models.UnassignedClassID {
			continue
		}
		for _, s := range strays {
			if placed[s.ID] {
				continue
			}
			placed[s.ID] = true
			classes[i].Students = append(classes[i].Students, s)
		}
	}
	theme.Classes = classes
}

func (r *Reconciler) isCanonical(classID string) bool {
	for _, slot := range r.slots {
		if slot.ID == classID {
			return true
		}
	}
	return false
}

func (r *Reconciler) resolveSettings(state *models.AppState) {
	if state.ThemeByName(state.CurrentWeekTheme) == nil {
		state.CurrentWeekTheme = state.Themes[0].Name
	}
	if state.ThemeByName(state.PublicThemeName) == nil {
		state.PublicThemeName = state.CurrentWeekTheme
	}
	if !r.isCanonical(state.SelectedClassID) {
		state.SelectedClassID = r.slots[0].ID
	}
	if !r.isCanonical(state.PublicClassID) {
		state.PublicClassID = r.slots[0].ID
	}
}

// Save decomposes the snapshot into entity store writes. Every write is
// attempted even when earlier ones fail; the failures are returned joined.
// Store ids assigned to themes are written back into state.
func (r *Reconciler) Save(ctx context.Context, state *models.AppState) error {
	start := time.Now()
	var errs []error
	rostered := make(map[string]bool)

	for i := range state.Themes {
		theme := &state.Themes[i]
		themeID, err := r.store.Themes.Upsert(ctx, theme, i)
		if err != nil {
			log.Printf("Error saving theme %q: %v", theme.Name, err)
			errs = append(errs, err)
			continue
		}
		theme.ID = themeID

		for position, class := range theme.Classes {
			if err := r.store.Classes.Upsert(ctx, themeID, class.ID, class.Name, position); err != nil {
				log.Printf("Error saving state: %v", err)
				errs = append(errs, err)
				continue
			}

			keep := make([]string, len(class.Students))
			for j, s := range class.Students {
				keep[j] = s.ID
			}
			// removals finish before the roster is re-upserted
			if _, err := r.store.Students.DeleteStudentsNotIn(ctx, themeID, class.ID, keep); err != nil {
				log.Printf("Error saving state: %v", err)
				errs = append(errs, err)
			}
			for j, s := range class.Students {
				if err := r.store.Students.Upsert(ctx, s.ID, themeID, class.ID, s.Name, j); err != nil {
					log.Printf("Error saving state: %v", err)
					errs = append(errs, err)
					continue
				}
				rostered[s.ID] = true
			}
		}
	}

	keys := make([]string, 0, len(state.Progress))
	for key := range state.Progress {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		classID, studentID, themeName, err := models.SplitProgressKey(key)
		if err != nil {
			log.Printf("Skipping progress entry: %v", err)
			metrics.SkippedProgressKeys.Inc()
			continue
		}
		p := state.Progress[key]
		// progress can outlive every roster entry of its student
		if !rostered[studentID] {
			if err := r.store.Students.Ensure(ctx, studentID, p.StudentName); err != nil {
				log.Printf("Error saving state: %v", err)
				errs = append(errs, err)
				continue
			}
			rostered[studentID] = true
		}
		if err := r.store.Progress.Upsert(ctx, studentID, classID, themeName, p.StudentName, p.ChallengesCompleted, p.Timestamp); err != nil {
			log.Printf("Error saving state: %v", err)
			errs = append(errs, err)
		}
	}

	for _, key := range models.SettingKeys {
		if err := r.store.Settings.SetSetting(ctx, key, state.Setting(key)); err != nil {
			log.Printf("Error saving state: %v", err)
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	metrics.StateSaves.WithLabelValues(metrics.Result(err)).Inc()
	metrics.StateSaveDuration.Observe(time.Since(start).Seconds())
	return err
}
