// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package validation

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

func setupTestStore(t *testing.T) *database.GormDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "validation_test.db")
	store, err := database.NewGormDB(&config.DatabaseConfig{Driver: "sqlite", Database: dbPath})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate())

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// seedCampaign builds a minimal reachable campaign: one quest, one child
// requiring one knowledge node, one scene whose encounter advances both
// objectives.
func seedCampaign(t *testing.T, store *database.GormDB) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, "campaign_objective", "camp-1", models.JSONMap{
		"description": "Restore the ancient library", "minimum_quests_required": 1,
	}))
	require.NoError(t, store.UpsertNode(ctx, "quest_objective", "quest-1", models.JSONMap{
		"campaign_id": "camp-1", "description": "Recover the first codex", "quest_number": 1,
	}))
	require.NoError(t, store.UpsertNode(ctx, "child_objective", "child-1", models.JSONMap{
		"quest_id": "quest-1", "type": "discovery", "description": "Find the codex",
	}))
	require.NoError(t, store.UpsertNode(ctx, "scene", "scene-1", models.JSONMap{
		"campaign_id": "camp-1", "title": "The Reading Room",
	}))
	require.NoError(t, store.UpsertNode(ctx, "encounter", "enc-1", models.JSONMap{
		"scene_id": "scene-1", "kind": "npc", "name": "Archivist",
	}))
	require.NoError(t, store.UpsertNode(ctx, "knowledge", "k-script", models.JSONMap{
		"name": "Ancient Script", "domain": "linguistics", "max_level": 3,
	}))

	require.NoError(t, store.UpsertEdge(ctx, "child-1", "k-script", models.EdgeRequiresKnowledge, nil))
	require.NoError(t, store.UpsertEdge(ctx, "scene-1", "camp-1", models.EdgeAdvances, nil))
	require.NoError(t, store.UpsertEdge(ctx, "scene-1", "quest-1", models.EdgeAdvances, nil))
}

func TestValidateZeroPathResourceIsError(t *testing.T) {
	store := setupTestStore(t)
	seedCampaign(t, store)
	// k-script is required but nothing teaches it.

	report, err := NewValidator(store).Validate(context.Background(), "camp-1")
	require.NoError(t, err)

	assert.False(t, report.Passed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, CheckAchievability, report.Errors[0].Check)
	assert.Equal(t, "k-script", report.Errors[0].SubjectID)
	assert.NotEmpty(t, report.Errors[0].Recommendation)
	assert.Equal(t, 1, report.Stats.ResourcesUnreachable)
}

func TestValidateSinglePathResourceIsWarning(t *testing.T) {
	store := setupTestStore(t)
	seedCampaign(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpsertEdge(ctx, "enc-1", "k-script", models.EdgeTeaches, nil))

	report, err := NewValidator(store).Validate(ctx, "camp-1")
	require.NoError(t, err)

	assert.True(t, report.Passed, "warnings do not fail validation")
	assert.Empty(t, report.Errors)
	assert.Equal(t, 1, report.Stats.ResourcesSinglePath)

	var singlePath int
	for _, w := range report.Warnings {
		if w.SubjectID == "k-script" {
			singlePath++
			assert.Equal(t, CheckRedundancy, w.Check)
		}
	}
	assert.Equal(t, 1, singlePath)
}

func TestValidateRedundantResourcePasses(t *testing.T) {
	store := setupTestStore(t)
	seedCampaign(t, store)
	ctx := context.Background()

	// Two distinct sources for the same knowledge.
	require.NoError(t, store.UpsertEdge(ctx, "enc-1", "k-script", models.EdgeTeaches, nil))
	require.NoError(t, store.UpsertEdge(ctx, "scene-1", "k-script", models.EdgeReveals, nil))

	report, err := NewValidator(store).Validate(ctx, "camp-1")
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 1, report.Stats.ResourcesRedundant)
	assert.Equal(t, float64(100), report.Stats.RedundancyPercent)
	assert.True(t, report.Stats.RedundancyTargetMet)
}

func TestValidateDuplicateEdgesCountOnce(t *testing.T) {
	store := setupTestStore(t)
	seedCampaign(t, store)
	ctx := context.Background()

	// Same source, two different acquisition verbs: still one path.
	require.NoError(t, store.UpsertEdge(ctx, "enc-1", "k-script", models.EdgeTeaches, nil))
	require.NoError(t, store.UpsertEdge(ctx, "enc-1", "k-script", models.EdgeReveals, nil))

	report, err := NewValidator(store).Validate(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.ResourcesSinglePath)
	assert.Zero(t, report.Stats.ResourcesRedundant)
}

func TestValidateOrphanedObjectiveIsError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, "campaign_objective", "camp-1", models.JSONMap{
		"description": "Restore the ancient library",
	}))
	require.NoError(t, store.UpsertNode(ctx, "quest_objective", "quest-1", models.JSONMap{
		"campaign_id": "camp-1", "description": "Recover the first codex",
	}))

	report, err := NewValidator(store).Validate(ctx, "camp-1")
	require.NoError(t, err)

	assert.False(t, report.Passed)
	require.Len(t, report.Errors, 2, "campaign and quest are both orphaned")
	for _, e := range report.Errors {
		assert.Equal(t, CheckAchievability, e.Check)
		assert.Contains(t, e.Message, "no scene advances")
	}
	assert.Equal(t, 2, report.Stats.ObjectivesTotal)
	assert.Zero(t, report.Stats.ObjectivesReachable)
}

func TestValidateRedundancyTargetWarning(t *testing.T) {
	store := setupTestStore(t)
	seedCampaign(t, store)
	ctx := context.Background()

	// One redundant, one single-path: 50% redundancy, below the 80% target.
	require.NoError(t, store.UpsertEdge(ctx, "enc-1", "k-script", models.EdgeTeaches, nil))
	require.NoError(t, store.UpsertEdge(ctx, "scene-1", "k-script", models.EdgeReveals, nil))

	require.NoError(t, store.UpsertNode(ctx, "item", "i-key", models.JSONMap{
		"name": "Library Key", "category": "tool",
	}))
	require.NoError(t, store.UpsertEdge(ctx, "enc-1", "i-key", models.EdgeGives, nil))

	report, err := NewValidator(store).Validate(ctx, "camp-1")
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.False(t, report.Stats.RedundancyTargetMet)
	assert.InDelta(t, 50.0, report.Stats.RedundancyPercent, 1e-9)

	var targetWarnings int
	for _, w := range report.Warnings {
		if w.SubjectID == "camp-1" {
			targetWarnings++
		}
	}
	assert.Equal(t, 1, targetWarnings)
}

func TestValidateUnknownCampaign(t *testing.T) {
	store := setupTestStore(t)

	_, err := NewValidator(store).Validate(context.Background(), "missing")
	assert.True(t, database.IsNotFound(err))
}
