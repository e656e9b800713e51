// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/progression"
	"github.com/questweave/questweave/internal/engine/validation"
)

func setupService(t *testing.T) (*Service, *database.GormDB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "query_test.db")
	store, err := database.NewGormDB(&config.DatabaseConfig{Driver: "sqlite", Database: dbPath})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate())
	t.Cleanup(func() { _ = store.Close() })

	prog, err := progression.NewTracker(store, &config.ProgressionConfig{
		LevelThresholds: []int{100, 300, 700, 1500, 3000},
		FocusDimensions: 3,
	})
	require.NoError(t, err)

	return NewService(store, validation.NewValidator(store), prog), store
}

func TestGetObjectiveHierarchy(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, "campaign_objective", "camp-1", models.JSONMap{
		"description": "Restore the ancient library",
	}))
	require.NoError(t, store.UpsertNode(ctx, "quest_objective", "quest-2", models.JSONMap{
		"campaign_id": "camp-1", "description": "second", "quest_number": 2,
	}))
	require.NoError(t, store.UpsertNode(ctx, "quest_objective", "quest-1", models.JSONMap{
		"campaign_id": "camp-1", "description": "first", "quest_number": 1,
	}))
	require.NoError(t, store.UpsertNode(ctx, "child_objective", "child-1", models.JSONMap{
		"quest_id": "quest-1", "type": "discovery",
	}))

	campaign, err := svc.GetObjectiveHierarchy(ctx, "camp-1")
	require.NoError(t, err)

	require.Len(t, campaign.Quests, 2)
	assert.Equal(t, "quest-1", campaign.Quests[0].ID, "quests ordered by quest_number")
	require.Len(t, campaign.Quests[0].Children, 1)

	_, err = svc.GetObjectiveHierarchy(ctx, "missing")
	assert.True(t, database.IsNotFound(err))
}

func TestGetAcquisitionPaths(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, "knowledge", "k-1", models.JSONMap{
		"name": "Ancient Script", "max_level": 2,
	}))
	require.NoError(t, store.UpsertEdge(ctx, "enc-1", "k-1", models.EdgeTeaches, models.JSONMap{"level": 1}))
	require.NoError(t, store.UpsertEdge(ctx, "scene-2", "k-1", models.EdgeReveals, nil))

	paths, err := svc.GetAcquisitionPaths(ctx, "k-1")
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestGetDimensionalProgressFillsAllAxes(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDimensionState(ctx, &models.DimensionState{
		PlayerID:         "player-1",
		Dimension:        models.DimensionSocial,
		Level:            2,
		ExperiencePoints: 150,
	}))

	progress, err := svc.GetDimensionalProgress(ctx, "player-1")
	require.NoError(t, err)
	require.Len(t, progress, 7)

	byDim := map[models.Dimension]DimensionalProgress{}
	for _, p := range progress {
		byDim[p.Dimension] = p
	}

	social := byDim[models.DimensionSocial]
	assert.Equal(t, 2, social.Level)
	assert.Equal(t, "Understand", social.LevelName)
	assert.Equal(t, 300, social.NextLevelThreshold)

	physical := byDim[models.DimensionPhysical]
	assert.Equal(t, 1, physical.Level)
	assert.Equal(t, "Remember", physical.LevelName)
	assert.Equal(t, 100, physical.NextLevelThreshold)
}

func TestGetFocusDimensions(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDimensionState(ctx, &models.DimensionState{
		PlayerID: "player-1", Dimension: models.DimensionSocial, Level: 3, ExperiencePoints: 400,
	}))

	focus, err := svc.GetFocusDimensions(ctx, "player-1", 3)
	require.NoError(t, err)
	assert.Len(t, focus, 3)
	assert.NotContains(t, focus, models.DimensionSocial, "strongest axis is not a focus")
}
