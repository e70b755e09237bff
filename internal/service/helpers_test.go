package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"challengetracker/internal/database"
	"challengetracker/internal/models"
	"challengetracker/internal/repository"
	"challengetracker/migrations"
)

type testEnv struct {
	db         *database.DB
	store      *repository.Store
	history    *repository.HistoryRepository
	reconciler *Reconciler
	ledger     *HistoryLedger
	slots      []models.ClassSlot
}

func testSlots(t *testing.T) []models.ClassSlot {
	t.Helper()
	slots, err := models.ParseClassSlots([]string{"Morning:Morning", "Afternoon:Afternoon"})
	require.NoError(t, err)
	return slots
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping store-backed test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(migrations.FS))

	slots := testSlots(t)
	store := repository.NewStore(db)
	history := repository.NewHistoryRepository(db)
	return &testEnv{
		db:         db,
		store:      store,
		history:    history,
		reconciler: NewReconciler(store, slots),
		ledger:     NewHistoryLedger(history),
		slots:      slots,
	}
}

// basicsState is a theme "Basics" with challenges A..E and Ada in Morning
func basicsState(slots []models.ClassSlot) (*models.AppState, models.Student) {
	ada := models.Student{ID: "ada-1", Name: "Ada"}
	theme := models.Theme{
		Name:       "Basics",
		Challenges: []string{"A", "B", "C", "D", "E"},
		Classes:    models.EmptyClasses(slots),
	}
	theme.Class("Morning").Students = append(theme.Class("Morning").Students, ada)
	return &models.AppState{
		Themes:           []models.Theme{theme},
		CurrentWeekTheme: "Basics",
		PublicThemeName:  "Basics",
		PublicClassID:    "Morning",
		SelectedClassID:  "Morning",
		Progress:         map[string]models.StudentProgress{},
	}, ada
}

var testDay = time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC)
