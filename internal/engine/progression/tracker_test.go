// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package progression

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
)

func setupTracker(t *testing.T) (*Tracker, *database.GormDB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "progression_test.db")
	store, err := database.NewGormDB(&config.DatabaseConfig{Driver: "sqlite", Database: dbPath})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate())
	t.Cleanup(func() { _ = store.Close() })

	tracker, err := NewTracker(store, &config.ProgressionConfig{
		LevelThresholds: []int{100, 300, 700, 1500, 3000},
		FocusDimensions: 3,
	})
	require.NoError(t, err)
	return tracker, store
}

func TestNewTrackerRejectsBadThresholds(t *testing.T) {
	_, err := NewTracker(nil, &config.ProgressionConfig{LevelThresholds: []int{100, 300}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 thresholds")
}

func TestAddExperienceLevelsUp(t *testing.T) {
	tracker, _ := setupTracker(t)
	ctx := context.Background()

	result, err := tracker.AddExperience(ctx, "player-1", models.DimensionIntellectual, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Level)
	assert.False(t, result.LeveledUp)
	assert.Equal(t, "Remember", result.LevelName)

	result, err = tracker.AddExperience(ctx, "player-1", models.DimensionIntellectual, 60)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Level)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 1, result.LevelsGained)
	assert.Equal(t, "Understand", result.LevelName)
	assert.Equal(t, 110, result.ExperiencePoints)
}

func TestAddExperienceJumpsMultipleLevels(t *testing.T) {
	tracker, _ := setupTracker(t)

	result, err := tracker.AddExperience(context.Background(), "player-1", models.DimensionSocial, 800)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Level)
	assert.Equal(t, 3, result.LevelsGained)
	assert.Equal(t, "Analyze", result.LevelName)
}

func TestAddExperienceCapsAtCeiling(t *testing.T) {
	tracker, _ := setupTracker(t)
	ctx := context.Background()

	result, err := tracker.AddExperience(ctx, "player-1", models.DimensionSpiritual, 10000)
	require.NoError(t, err)
	assert.Equal(t, models.MaxMaturityLevel, result.Level)
	assert.Equal(t, "Create", result.LevelName)

	// Further XP accrues but the level stays at the ceiling.
	result, err = tracker.AddExperience(ctx, "player-1", models.DimensionSpiritual, 500)
	require.NoError(t, err)
	assert.Equal(t, models.MaxMaturityLevel, result.Level)
	assert.False(t, result.LeveledUp)
	assert.Equal(t, 10500, result.ExperiencePoints)
}

func TestAddExperienceRejectsBadInput(t *testing.T) {
	tracker, _ := setupTracker(t)
	ctx := context.Background()

	_, err := tracker.AddExperience(ctx, "player-1", models.Dimension("chaotic"), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dimension")

	_, err = tracker.AddExperience(ctx, "player-1", models.DimensionPhysical, -5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestNextLevelThreshold(t *testing.T) {
	tracker, _ := setupTracker(t)

	assert.Equal(t, 100, tracker.NextLevelThreshold(1))
	assert.Equal(t, 3000, tracker.NextLevelThreshold(5))
	assert.Equal(t, 0, tracker.NextLevelThreshold(6))
	assert.Equal(t, 0, tracker.NextLevelThreshold(0))
}

func TestSnapshotFillsDefaults(t *testing.T) {
	tracker, _ := setupTracker(t)
	ctx := context.Background()

	_, err := tracker.AddExperience(ctx, "player-1", models.DimensionEmotional, 150)
	require.NoError(t, err)

	states, err := tracker.Snapshot(ctx, "player-1")
	require.NoError(t, err)
	require.Len(t, states, len(models.AllDimensions()))

	byDim := map[models.Dimension]models.DimensionState{}
	for _, s := range states {
		byDim[s.Dimension] = s
	}
	assert.Equal(t, 2, byDim[models.DimensionEmotional].Level)
	assert.Equal(t, 1, byDim[models.DimensionVocational].Level)
	assert.Equal(t, 0, byDim[models.DimensionVocational].ExperiencePoints)
}

func TestRecommendFocusDimensionsPicksWeakest(t *testing.T) {
	tracker, _ := setupTracker(t)
	ctx := context.Background()

	_, err := tracker.AddExperience(ctx, "player-1", models.DimensionIntellectual, 800)
	require.NoError(t, err)
	_, err = tracker.AddExperience(ctx, "player-1", models.DimensionSocial, 150)
	require.NoError(t, err)
	_, err = tracker.AddExperience(ctx, "player-1", models.DimensionPhysical, 50)
	require.NoError(t, err)

	focus, err := tracker.RecommendFocusDimensions(ctx, "player-1", 5)
	require.NoError(t, err)
	require.Len(t, focus, 5)
	assert.NotContains(t, focus, models.DimensionIntellectual)
	assert.NotContains(t, focus, models.DimensionSocial)

	// Level ties break by XP ascending, so physical (level 1, 50 XP) sorts
	// after the untouched axes (level 1, 0 XP).
	assert.Equal(t, models.DimensionPhysical, focus[4])

	_, err = tracker.RecommendFocusDimensions(ctx, "player-1", 0)
	require.Error(t, err)

	focus, err = tracker.RecommendFocusDimensions(ctx, "player-1", 20)
	require.NoError(t, err)
	assert.Len(t, focus, len(models.AllDimensions()))
}
