package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"challengetracker/internal/models"
)

func newTestWorkspace(t *testing.T) (*testEnv, *Workspace) {
	t.Helper()
	env := newTestEnv(t)
	ws := NewWorkspace(env.reconciler, env.ledger, time.Hour)
	ws.now = func() time.Time { return testDay }
	t.Cleanup(ws.Close)
	require.NoError(t, ws.Reload(context.Background()))

	seed, _ := basicsState(env.slots)
	require.NoError(t, ws.Mutate(func(state *models.AppState) error {
		*state = *seed
		return nil
	}))
	require.NoError(t, ws.Flush(context.Background()))
	return env, ws
}

func TestWorkspaceSaveWritesBackThemeIDs(t *testing.T) {
	_, ws := newTestWorkspace(t)
	snap := ws.Snapshot()
	require.Len(t, snap.Themes, 1)
	assert.NotZero(t, snap.Themes[0].ID)
	assert.Equal(t, StatusSaved, ws.Status().Status)
}

func TestWorkspaceToggleChallenge(t *testing.T) {
	env, ws := newTestWorkspace(t)
	ctx := context.Background()

	_, _, err := ws.ToggleChallenge(ctx, "Morning", "ada-1", 0)
	require.NoError(t, err)
	toggle, entry, err := ws.ToggleChallenge(ctx, "Morning", "ada-1", 2)
	require.NoError(t, err)
	assert.True(t, toggle.Completed)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"A", "C"}, entry.Challenges)
	assert.Equal(t, "Session 5/4/2024", entry.WeekName)
	assert.True(t, ws.Status().Pending)

	require.NoError(t, ws.Flush(ctx))

	loaded, err := env.reconciler.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, loaded.Progress["Morning_ada-1_Basics"].ChallengesCompleted)

	all, err := env.ledger.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWorkspaceToggleRejectedLeavesStateAlone(t *testing.T) {
	_, ws := newTestWorkspace(t)
	before := ws.Snapshot()

	_, _, err := ws.ToggleChallenge(context.Background(), "Morning", "ada-1", 7)
	assert.ErrorIs(t, err, ErrChallengeIndex)
	assert.Equal(t, before, ws.Snapshot())
	assert.False(t, ws.Status().Pending)
}

func TestWorkspaceEditHistoryEntry(t *testing.T) {
	_, ws := newTestWorkspace(t)
	ctx := context.Background()

	_, entry, err := ws.ToggleChallenge(ctx, "Morning", "ada-1", 0)
	require.NoError(t, err)

	edited := *entry
	edited.Challenges = []string{"B", "E"}
	written, err := ws.EditHistoryEntry(ctx, edited)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, []string{"c2", "c5"}, ws.Snapshot().Progress["Morning_ada-1_Basics"].ChallengesCompleted)

	edited.StudentName = "Nobody"
	written, err = ws.EditHistoryEntry(ctx, edited)
	require.NoError(t, err)
	assert.False(t, written)

	edited.ID = "missing"
	_, err = ws.EditHistoryEntry(ctx, edited)
	assert.ErrorIs(t, err, ErrHistoryEntryNotFound)
}

func TestWorkspaceRoster(t *testing.T) {
	env, ws := newTestWorkspace(t)
	ctx := context.Background()

	theme, err := ws.CreateTheme("Gears")
	require.NoError(t, err)
	assert.Equal(t, []string{"Challenge 1", "Challenge 2", "Challenge 3", "Challenge 4", "Challenge 5"}, theme.Challenges)
	assert.Equal(t, "Gears", ws.Snapshot().CurrentWeekTheme)
	assert.True(t, theme.Class(models.UnassignedClassID).HasStudent("ada-1"))

	_, err = ws.CreateTheme("Gears")
	assert.ErrorIs(t, err, ErrThemeExists)

	bo, err := ws.AddStudent("Bo")
	require.NoError(t, err)
	for _, th := range ws.Snapshot().Themes {
		assert.True(t, th.Class(models.UnassignedClassID).HasStudent(bo.ID), "theme %s", th.Name)
	}

	require.NoError(t, ws.MoveStudents([]string{bo.ID, "ada-1"}, "Afternoon"))
	gears := ws.Snapshot().ThemeByName("Gears")
	afternoon := gears.Class("Afternoon").Students
	require.Len(t, afternoon, 2)
	assert.Equal(t, bo.ID, afternoon[0].ID)
	assert.Empty(t, gears.Class(models.UnassignedClassID).Students)

	assert.ErrorIs(t, ws.MoveStudents([]string{"ghost"}, "Afternoon"), ErrStudentNotFound)
	assert.ErrorIs(t, ws.MoveStudents([]string{bo.ID}, "Evening"), ErrClassNotFound)

	require.NoError(t, ws.RenameChallenge(0, "Spur Gear"))
	assert.Equal(t, "Spur Gear", ws.Snapshot().ThemeByName("Gears").Challenges[0])
	assert.ErrorIs(t, ws.RenameChallenge(5, "Nope"), ErrChallengeIndex)
	assert.Error(t, ws.RenameChallenge(1, ""))

	require.NoError(t, ws.RenameStudent(bo.ID, "Bo Peep"))
	require.NoError(t, ws.RenameClass("Afternoon", "PM"))

	require.NoError(t, ws.Flush(ctx))
	loaded, err := env.reconciler.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Themes, 2)
	gears = loaded.ThemeByName("Gears")
	require.NotNil(t, gears)
	assert.Equal(t, "Spur Gear", gears.Challenges[0])
	assert.Equal(t, "Bo Peep", gears.Class("Afternoon").Students[0].Name)
	assert.Equal(t, "PM", gears.Class("Afternoon").Name)
}

func TestWorkspaceRenameThemeRekeysProgress(t *testing.T) {
	env, ws := newTestWorkspace(t)
	ctx := context.Background()

	_, _, err := ws.ToggleChallenge(ctx, "Morning", "ada-1", 1)
	require.NoError(t, err)
	require.NoError(t, ws.RenameTheme("Basics", "Fundamentals"))

	snap := ws.Snapshot()
	assert.Equal(t, "Fundamentals", snap.CurrentWeekTheme)
	assert.Equal(t, "Fundamentals", snap.PublicThemeName)
	assert.Contains(t, snap.Progress, "Morning_ada-1_Fundamentals")
	assert.NotContains(t, snap.Progress, "Morning_ada-1_Basics")

	require.NoError(t, ws.Flush(ctx))
	loaded, err := env.reconciler.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Themes, 1)
	assert.Equal(t, "Fundamentals", loaded.Themes[0].Name)
	assert.Equal(t, []string{"c2"}, loaded.Progress["Morning_ada-1_Fundamentals"].ChallengesCompleted)
}

func TestWorkspaceSelections(t *testing.T) {
	_, ws := newTestWorkspace(t)

	require.NoError(t, ws.SetPublicClass("Afternoon"))
	require.NoError(t, ws.SelectClass("Afternoon"))
	assert.ErrorIs(t, ws.SetPublicClass("Evening"), ErrClassNotFound)
	assert.ErrorIs(t, ws.SelectTheme("Nope"), ErrThemeNotFound)
	assert.ErrorIs(t, ws.SetPublicTheme("Nope"), ErrThemeNotFound)

	snap := ws.Snapshot()
	assert.Equal(t, "Afternoon", snap.PublicClassID)
	assert.Equal(t, "Afternoon", snap.SelectedClassID)
}

func TestWorkspaceReloadKeepsSnapshotOnFailure(t *testing.T) {
	env, ws := newTestWorkspace(t)
	require.NoError(t, env.db.Close())

	assert.Error(t, ws.Reload(context.Background()))
	assert.Equal(t, "Basics", ws.Snapshot().CurrentWeekTheme)
}

func TestWorkspaceImportKeepsStoredThemeIDs(t *testing.T) {
	_, ws := newTestWorkspace(t)
	storedID := ws.Snapshot().Themes[0].ID

	imported, _ := basicsState(testSlots(t))
	imported.Themes[0].ID = 999
	imported.Themes = append(imported.Themes, models.NewTheme("Gears", testSlots(t), nil))
	require.NoError(t, ws.Import(imported))

	snap := ws.Snapshot()
	require.Len(t, snap.Themes, 2)
	assert.Equal(t, storedID, snap.Themes[0].ID)
	assert.Zero(t, snap.Themes[1].ID)
	assert.Equal(t, int64(999), imported.Themes[0].ID, "caller's state is not modified")
}

func TestWorkspaceConcurrentTogglesMatchLedger(t *testing.T) {
	env, ws := newTestWorkspace(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			_, _, err := ws.ToggleChallenge(ctx, "Morning", "ada-1", index%models.ChallengesPerTheme)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap := ws.Snapshot()
	want := SlotsToNames(snap.CurrentTheme(), snap.Progress["Morning_ada-1_Basics"].ChallengesCompleted)

	entries, err := env.ledger.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, want, entries[0].Challenges)
}

func TestWorkspaceThemeIDWriteBackSkipsReplacedSnapshot(t *testing.T) {
	env, ws := newTestWorkspace(t)
	ctx := context.Background()

	_, err := ws.CreateTheme("Gears")
	require.NoError(t, err)
	snapshot, epoch, loaded := ws.saveSnapshot()
	require.True(t, loaded)
	require.NoError(t, env.reconciler.Save(ctx, snapshot))
	gearsID := snapshot.ThemeByName("Gears").ID
	require.NotZero(t, gearsID)

	// an import lands while the save above is still running
	imported, _ := basicsState(env.slots)
	imported.Themes = append(imported.Themes, models.NewTheme("Pulleys", env.slots, nil))
	require.NoError(t, ws.Import(imported))

	ws.writeBackThemeIDs(snapshot, epoch)
	pulleys := ws.Snapshot().ThemeByName("Pulleys")
	require.NotNil(t, pulleys)
	assert.Zero(t, pulleys.ID, "an unrelated theme must not inherit the id of Gears")

	require.NoError(t, ws.Flush(ctx))
	themes, err := env.store.Themes.List(ctx)
	require.NoError(t, err)
	names := make(map[string]int64)
	for _, th := range themes {
		names[th.Name] = th.ID
	}
	assert.Equal(t, gearsID, names["Gears"], "Gears keeps its row")
	assert.Contains(t, names, "Pulleys")
}

func TestWorkspaceRefusesEditsBeforeLoad(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stored, _ := basicsState(env.slots)
	require.NoError(t, env.reconciler.Save(ctx, stored))

	ws := NewWorkspace(env.reconciler, env.ledger, time.Hour)
	t.Cleanup(ws.Close)
	assert.False(t, ws.Loaded())

	_, err := ws.AddStudent("Bo")
	assert.ErrorIs(t, err, ErrStateNotLoaded)
	assert.ErrorIs(t, ws.Flush(ctx), ErrStateNotLoaded)

	loaded, err := env.reconciler.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Basics", loaded.CurrentWeekTheme, "default snapshot never reaches the store")

	require.NoError(t, ws.Reload(ctx))
	assert.True(t, ws.Loaded())
	_, err = ws.AddStudent("Bo")
	assert.NoError(t, err)
}
