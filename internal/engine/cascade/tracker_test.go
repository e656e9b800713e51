// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweave/questweave/internal/common"
	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/oracle"
	"github.com/questweave/questweave/internal/engine/progression"
	"github.com/questweave/questweave/internal/engine/rubric"
	"github.com/questweave/questweave/internal/protocol"
)

func setupTestStore(t *testing.T) *database.GormDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cascade_test.db")
	store, err := database.NewGormDB(&config.DatabaseConfig{Driver: "sqlite", Database: dbPath})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate())

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func testRegistry(t *testing.T) *rubric.Registry {
	t.Helper()

	r, err := rubric.NewRubric("combat",
		[]rubric.Criterion{
			{Name: "accuracy", Weight: 0.6, BloomTarget: 2},
			{Name: "depth", Weight: 0.4, BloomTarget: 3},
		},
		rubric.WithRewards(map[int]rubric.Reward{
			3: {
				KnowledgeLevels: map[string]int{"k-ancient": 2},
				Items:           map[string]int{"i-key": 1},
				DimensionXP:     map[models.Dimension]int{models.DimensionIntellectual: 50},
			},
			4: {
				KnowledgeLevels: map[string]int{"k-ancient": 3},
				DimensionXP:     map[models.Dimension]int{models.DimensionIntellectual: 120},
			},
		}),
	)
	require.NoError(t, err)

	reg := rubric.NewRegistry()
	reg.Register(r)
	return reg
}

// seedHierarchy creates one campaign with one quest. Children are added per
// test since their shape is what varies.
func seedHierarchy(t *testing.T, store *database.GormDB, minQuests int) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, "campaign_objective", "camp-1", models.JSONMap{
		"description":             "Restore the ancient library",
		"minimum_quests_required": minQuests,
	}))
	require.NoError(t, store.UpsertNode(ctx, "quest_objective", "quest-1", models.JSONMap{
		"campaign_id":  "camp-1",
		"description":  "Recover the first codex",
		"quest_number": 1,
		"bloom_level":  2,
		"is_required":  true,
	}))
	require.NoError(t, store.UpsertNode(ctx, "knowledge", "k-ancient", models.JSONMap{
		"name":      "Ancient Script",
		"domain":    "linguistics",
		"max_level": 3,
	}))
	require.NoError(t, store.UpsertNode(ctx, "item", "i-key", models.JSONMap{
		"name":     "Library Key",
		"category": "tool",
	}))
}

func addChild(t *testing.T, store *database.GormDB, id string, childType models.ChildObjectiveType, required bool) {
	t.Helper()
	props := models.JSONMap{
		"quest_id":    "quest-1",
		"type":        string(childType),
		"description": "child " + id,
		"required":    required,
	}
	if childType == models.ChildChallenge || childType == models.ChildConversation {
		props["rubric_name"] = "combat"
	}
	require.NoError(t, store.UpsertNode(context.Background(), "child_objective", id, props))
}

func newTestTracker(t *testing.T, store *database.GormDB, scorer oracle.Scorer) (*Tracker, chan common.Event) {
	t.Helper()

	prog, err := progression.NewTracker(store, &config.ProgressionConfig{
		LevelThresholds: []int{100, 300, 700, 1500, 3000},
		FocusDimensions: 3,
	})
	require.NoError(t, err)

	events := make(chan common.Event, 64)
	tracker := NewTracker(store, testRegistry(t), scorer, prog, events, &config.CascadeConfig{
		ChallengeMinTier:     2,
		ConversationMinScore: 2.5,
		StoreMaxRetries:      2,
		StoreInitialBackoff:  1,
	})
	return tracker, events
}

func drainEvents(events chan common.Event) []common.Event {
	var out []common.Event
	for {
		select {
		case e := <-events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestHandleActionCascadesToCampaign(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 1)
	addChild(t, store, "child-1", models.ChildChallenge, true)

	scorer := &oracle.StaticScorer{Scores: map[string]float64{"accuracy": 3.2, "depth": 3.2}}
	tracker, events := newTestTracker(t, store, scorer)
	ctx := context.Background()

	outcome, err := tracker.HandleAction(ctx, ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
		Succeeded:        true,
		Interaction:      models.JSONMap{"transcript": "..."},
	})
	require.NoError(t, err)

	assert.True(t, outcome.ChildCompleted)
	assert.Equal(t, float64(100), outcome.Percentage)
	assert.Equal(t, models.StatusCompleted, outcome.Status)
	require.NotNil(t, outcome.Evaluation)
	assert.InDelta(t, 3.2, outcome.Evaluation.OverallScore, 1e-9)
	assert.Equal(t, 3, outcome.Evaluation.Tier)
	assert.False(t, outcome.Evaluation.Provisional)

	// The cascade reached the quest and campaign.
	quest, err := store.GetQuestObjective(ctx, "quest-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, quest.Status)
	assert.Equal(t, float64(100), quest.CompletionPercentage)

	campaign, err := store.GetCampaignObjective(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, campaign.Status)

	// Tier 3 rewards landed.
	level, err := store.GetKnowledgeLevel(ctx, "player-1", "k-ancient")
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	count, err := store.GetItemCount(ctx, "player-1", "i-key")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	state, err := store.GetDimensionState(ctx, "player-1", models.DimensionIntellectual)
	require.NoError(t, err)
	assert.Equal(t, 50, state.ExperiencePoints)

	// Progress + completion events at every level that changed.
	emitted := drainEvents(events)
	var completions int
	for _, e := range emitted {
		if _, ok := e.(protocol.ObjectiveCompletedEvent); ok {
			completions++
		}
	}
	assert.Equal(t, 3, completions, "child, quest, and campaign completions")
}

func TestHandleActionPartialQuestProgress(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 1)
	addChild(t, store, "child-1", models.ChildDiscovery, true)
	addChild(t, store, "child-2", models.ChildDiscovery, true)

	tracker, events := newTestTracker(t, store, &oracle.StaticScorer{})
	ctx := context.Background()

	outcome, err := tracker.HandleAction(ctx, ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
		Succeeded:        true,
	})
	require.NoError(t, err)
	assert.True(t, outcome.ChildCompleted)

	quest, err := store.GetQuestObjective(ctx, "quest-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, quest.Status)
	assert.Equal(t, float64(50), quest.CompletionPercentage)

	campaign, err := store.GetCampaignObjective(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, campaign.Status)

	emitted := drainEvents(events)
	for _, e := range emitted {
		if completed, ok := e.(protocol.ObjectiveCompletedEvent); ok {
			assert.Equal(t, "child-1", completed.ObjectiveID)
		}
	}
}

func TestHandleActionIdempotent(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 1)
	addChild(t, store, "child-1", models.ChildDiscovery, true)

	tracker, events := newTestTracker(t, store, &oracle.StaticScorer{})
	ctx := context.Background()

	in := ActionInput{PlayerID: "player-1", ChildObjectiveID: "child-1", Succeeded: true}

	_, err := tracker.HandleAction(ctx, in)
	require.NoError(t, err)
	first := drainEvents(events)
	assert.NotEmpty(t, first)

	// Replaying the same action changes nothing and emits nothing.
	outcome, err := tracker.HandleAction(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, float64(100), outcome.Percentage)
	assert.Empty(t, drainEvents(events))
}

func TestHandleActionOracleFallbackIsProvisional(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 1)
	addChild(t, store, "child-1", models.ChildChallenge, true)

	scorer := &oracle.StaticScorer{Err: oracle.ErrEvaluationUnavailable}
	tracker, _ := newTestTracker(t, store, scorer)
	ctx := context.Background()

	outcome, err := tracker.HandleAction(ctx, ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
		Succeeded:        true,
	})
	require.NoError(t, err)

	require.NotNil(t, outcome.Evaluation)
	assert.True(t, outcome.Evaluation.Provisional)
	assert.False(t, outcome.ChildCompleted, "neutral tier stays below the challenge minimum")
	assert.Equal(t, models.StatusInProgress, outcome.Status)

	// No rewards on a provisional evaluation.
	level, err := store.GetKnowledgeLevel(ctx, "player-1", "k-ancient")
	require.NoError(t, err)
	assert.Zero(t, level)

	progress, err := store.GetProgress(ctx, "player-1", "child-1")
	require.NoError(t, err)
	assert.Equal(t, true, progress.Metadata["provisional"])
}

func TestHandleActionMalformedScoresFallBack(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 1)
	addChild(t, store, "child-1", models.ChildChallenge, true)

	// Oracle answers but omits a criterion.
	scorer := &oracle.StaticScorer{Scores: map[string]float64{"accuracy": 3.0}}
	tracker, _ := newTestTracker(t, store, scorer)

	outcome, err := tracker.HandleAction(context.Background(), ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
		Succeeded:        true,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Evaluation.Provisional)
	assert.False(t, outcome.ChildCompleted)
}

func TestConversationCompletesOnScoreAlone(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 1)
	addChild(t, store, "child-1", models.ChildConversation, true)

	scorer := &oracle.StaticScorer{Scores: map[string]float64{"accuracy": 2.8, "depth": 2.8}}
	tracker, _ := newTestTracker(t, store, scorer)

	outcome, err := tracker.HandleAction(context.Background(), ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
	})
	require.NoError(t, err)
	assert.True(t, outcome.ChildCompleted)
}

func TestFailedChallengeShowsPartialProgress(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 1)
	addChild(t, store, "child-1", models.ChildChallenge, true)

	// Tier 1 score: below the challenge minimum but the attempt still shows.
	scorer := &oracle.StaticScorer{Scores: map[string]float64{"accuracy": 1.5, "depth": 1.5}}
	tracker, _ := newTestTracker(t, store, scorer)

	outcome, err := tracker.HandleAction(context.Background(), ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
		Succeeded:        true,
	})
	require.NoError(t, err)
	assert.False(t, outcome.ChildCompleted)
	assert.Equal(t, models.StatusInProgress, outcome.Status)
	assert.InDelta(t, 37.5, outcome.Percentage, 1e-9)
}

func TestQuestWithNoRequiredChildrenNeverCompletes(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 1)
	addChild(t, store, "child-1", models.ChildDiscovery, false)

	tracker, _ := newTestTracker(t, store, &oracle.StaticScorer{})
	ctx := context.Background()

	_, err := tracker.HandleAction(ctx, ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
		Succeeded:        true,
	})
	require.NoError(t, err)

	quest, err := store.GetQuestObjective(ctx, "quest-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, quest.Status)
	assert.Zero(t, quest.CompletionPercentage)
}

func TestCampaignRequiringZeroQuestsNeverCompletes(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 0)
	addChild(t, store, "child-1", models.ChildDiscovery, true)

	tracker, _ := newTestTracker(t, store, &oracle.StaticScorer{})
	ctx := context.Background()

	_, err := tracker.HandleAction(ctx, ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
		Succeeded:        true,
	})
	require.NoError(t, err)

	quest, err := store.GetQuestObjective(ctx, "quest-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, quest.Status)

	campaign, err := store.GetCampaignObjective(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, campaign.Status)
}

func TestCampaignNeedsMinimumQuestsBeforeCompleting(t *testing.T) {
	store := setupTestStore(t)
	seedHierarchy(t, store, 2)
	addChild(t, store, "child-1", models.ChildDiscovery, true)

	ctx := context.Background()
	require.NoError(t, store.UpsertNode(ctx, "quest_objective", "quest-2", models.JSONMap{
		"campaign_id":  "camp-1",
		"description":  "Recover the second codex",
		"quest_number": 2,
		"is_required":  true,
	}))
	require.NoError(t, store.UpsertNode(ctx, "child_objective", "child-2", models.JSONMap{
		"quest_id":    "quest-2",
		"type":        string(models.ChildDiscovery),
		"description": "child child-2",
		"required":    true,
	}))

	tracker, _ := newTestTracker(t, store, &oracle.StaticScorer{})

	// One of two required quests done: the campaign is halfway, not complete.
	_, err := tracker.HandleAction(ctx, ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-1",
		Succeeded:        true,
	})
	require.NoError(t, err)

	quest, err := store.GetQuestObjective(ctx, "quest-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, quest.Status)

	campaign, err := store.GetCampaignObjective(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, campaign.Status)
	assert.Equal(t, float64(50), campaign.CompletionPercentage)

	// The second quest pushes it over the threshold.
	_, err = tracker.HandleAction(ctx, ActionInput{
		PlayerID:         "player-1",
		ChildObjectiveID: "child-2",
		Succeeded:        true,
	})
	require.NoError(t, err)

	campaign, err = store.GetCampaignObjective(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, campaign.Status)
	assert.Equal(t, float64(100), campaign.CompletionPercentage)
}

func TestQuestSuccessCriteriaBackedByPlayerState(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, "campaign_objective", "camp-1", models.JSONMap{
		"description":             "Restore the ancient library",
		"minimum_quests_required": 1,
	}))
	require.NoError(t, store.UpsertNode(ctx, "quest_objective", "quest-1", models.JSONMap{
		"campaign_id":      "camp-1",
		"description":      "Master the script",
		"quest_number":     1,
		"is_required":      true,
		"success_criteria": []string{"knowledge:k-ancient:2", "item:i-key:1"},
	}))
	require.NoError(t, store.UpsertNode(ctx, "knowledge", "k-ancient", models.JSONMap{
		"name": "Ancient Script", "domain": "linguistics", "max_level": 3,
	}))
	require.NoError(t, store.UpsertNode(ctx, "item", "i-key", models.JSONMap{
		"name": "Library Key", "category": "tool",
	}))

	tracker, _ := newTestTracker(t, store, &oracle.StaticScorer{})

	// One of two criteria satisfied.
	_, err := store.GrantKnowledge(ctx, "player-1", "k-ancient", 2)
	require.NoError(t, err)
	require.NoError(t, tracker.CheckCascade(ctx, "player-1", "quest-1"))

	quest, err := store.GetQuestObjective(ctx, "quest-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, quest.Status)
	assert.Equal(t, float64(50), quest.CompletionPercentage)

	// Both satisfied: quest completes and the campaign follows.
	_, err = store.GrantItem(ctx, "player-1", "i-key", 1)
	require.NoError(t, err)
	require.NoError(t, tracker.CheckCascade(ctx, "player-1", "quest-1"))

	quest, err = store.GetQuestObjective(ctx, "quest-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, quest.Status)

	campaign, err := store.GetCampaignObjective(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, campaign.Status)
}

func TestCheckCascadeUnknownObjective(t *testing.T) {
	store := setupTestStore(t)
	tracker, _ := newTestTracker(t, store, &oracle.StaticScorer{})

	err := tracker.CheckCascade(context.Background(), "player-1", "nope")
	assert.True(t, database.IsNotFound(err))
}
