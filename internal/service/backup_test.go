package service

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"challengetracker/internal/models"
)

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	backups := NewBackupService(env.reconciler, env.ledger, "sqlite")

	state, ada := basicsState(env.slots)
	SetCompleted(state, "Morning", ada.ID, ada.Name, "Basics", []string{"c1", "c2"}, testDay)
	require.NoError(t, env.reconciler.Save(ctx, state))
	_, err := env.ledger.AppendOrUpdate(ctx, "Ada", "Morning", "Basics", []string{"A", "B"}, basicsChallenges, testDay)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, backups.Export(ctx, path))

	var buf bytes.Buffer
	require.NoError(t, backups.ExportToWriter(ctx, &buf))
	var doc BackupData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, "sqlite", doc.DatabaseType)
	assert.Len(t, doc.History, 1)

	restore := newTestEnv(t)
	restored := NewBackupService(restore.reconciler, restore.ledger, "sqlite")
	require.NoError(t, restored.Import(ctx, path, true))

	loaded, err := restore.reconciler.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Basics", loaded.CurrentWeekTheme)
	assert.Equal(t, []string{"c1", "c2"}, loaded.Progress["Morning_ada-1_Basics"].ChallengesCompleted)
	assert.True(t, loaded.ThemeByName("Basics").Class("Morning").HasStudent(ada.ID))

	history, err := restore.ledger.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, doc.History[0].ID, history[0].ID)

	// importing again without clearing merges onto the same natural keys
	require.NoError(t, restored.Import(ctx, path, false))
	history, err = restore.ledger.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestBackupImportsBareLegacySnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	backups := NewBackupService(env.reconciler, env.ledger, "sqlite")

	legacy := `{
		"classes": [{"id": "Morning", "name": "Morning", "students": [{"id": "s1", "name": "Ada"}]}],
		"currentWeekTheme": "Momentum Turning",
		"progress": {
			"Morning_s1_Momentum Turning": {"studentId": "s1", "studentName": "Ada", "challengesCompleted": ["c2"], "timestamp": 1714816800000}
		}
	}`
	require.NoError(t, backups.ImportFromReader(ctx, strings.NewReader(legacy), false))

	loaded, err := env.reconciler.Load(ctx)
	require.NoError(t, err)
	theme := loaded.ThemeByName(models.DefaultThemeName)
	require.NotNil(t, theme)
	assert.True(t, theme.Class("Morning").HasStudent("s1"))
	progress := loaded.Progress["Morning_s1_Momentum Turning"]
	assert.Equal(t, []string{"c2"}, progress.ChallengesCompleted)
	assert.Equal(t, int64(1714816800), progress.Timestamp.Unix())
}

func TestDecodeBackupRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := NewBackupService(env.reconciler, env.ledger, "sqlite").DecodeBackup([]byte("not json"))
	assert.Error(t, err)
}
