package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"challengetracker/internal/models"
)

func TestFilterStudentNames(t *testing.T) {
	entries := []models.HistoryEntry{
		{StudentName: "Bo"}, {StudentName: "Ada"}, {StudentName: "Adam"}, {StudentName: "Ada"},
	}
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Ada", "Adam", "Bo"}},
		{"ad", []string{"Ada", "Adam"}},
		{"ADAM", []string{"Adam"}},
		{"zed", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FilterStudentNames(entries, tt.query), "query %q", tt.query)
	}
}

func TestComputeStats(t *testing.T) {
	assert.Nil(t, ComputeStats(nil))

	stats := ComputeStats([]models.HistoryEntry{
		{Challenges: []string{"A", "B", "C"}},
		{Challenges: []string{"A"}},
	})
	require.NotNil(t, stats)
	assert.Equal(t, 4, stats.TotalChallenges)
	assert.Equal(t, 2, stats.Sessions)
	assert.InDelta(t, 2.0, stats.AvgChallenges, 0.001)
	assert.InDelta(t, 40.0, stats.ProgressPercent, 0.001)
}

func TestStudentSearchProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	search := NewStudentSearch(env.ledger)

	_, err := env.ledger.AppendOrUpdate(ctx, "Ada", "Morning", "Basics", []string{"A", "B"}, basicsChallenges, testDay)
	require.NoError(t, err)
	_, err = env.ledger.AppendOrUpdate(ctx, "Ada", "Morning", "Basics", []string{"C"}, basicsChallenges, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	_, err = env.ledger.AppendOrUpdate(ctx, "Bo", "Morning", "Basics", nil, basicsChallenges, testDay)
	require.NoError(t, err)

	names, err := search.Students(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada"}, names)

	profile, err := search.Profile(ctx, "Ada")
	require.NoError(t, err)
	require.Len(t, profile.Entries, 2)
	assert.Equal(t, []string{"C"}, profile.Entries[0].Challenges)
	require.NotNil(t, profile.Stats)
	assert.Equal(t, 3, profile.Stats.TotalChallenges)
	assert.InDelta(t, 30.0, profile.Stats.ProgressPercent, 0.001)

	empty, err := search.Profile(ctx, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
	assert.Nil(t, empty.Stats)
}
