// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cascade implements the completion cascade: it turns player actions
// into rubric evaluations, rewards, and monotonic progress writes, and
// propagates completion upward child → quest → campaign. Every recomputation
// derives percentages from source facts in the store, so re-running a check
// with unchanged facts writes nothing and emits nothing.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/questweave/questweave/internal/common"
	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/oracle"
	"github.com/questweave/questweave/internal/engine/progression"
	"github.com/questweave/questweave/internal/engine/rubric"
	"github.com/questweave/questweave/internal/logger"
	"github.com/questweave/questweave/internal/protocol"
)

// ErrUpdateDeferred is returned when a progress write could not be committed
// within the store retry budget. The action's evaluation stands; the caller
// should surface the outcome and retry the write later.
var ErrUpdateDeferred = errors.New("objective update deferred")

// Tracker orchestrates action handling and completion propagation.
type Tracker struct {
	store       *database.GormDB
	rubrics     *rubric.Registry
	scorer      oracle.Scorer
	progression *progression.Tracker
	events      chan<- common.Event
	cfg         *config.CascadeConfig
}

// NewTracker wires the cascade tracker. events may be nil when no listener
// exists (tests, batch tools); emission is then skipped.
func NewTracker(store *database.GormDB, rubrics *rubric.Registry, scorer oracle.Scorer, prog *progression.Tracker, events chan<- common.Event, cfg *config.CascadeConfig) *Tracker {
	return &Tracker{
		store:       store,
		rubrics:     rubrics,
		scorer:      scorer,
		progression: prog,
		events:      events,
		cfg:         cfg,
	}
}

// ActionInput describes one player action against a child objective.
type ActionInput struct {
	PlayerID         string         `json:"player_id"`
	ChildObjectiveID string         `json:"child_objective_id"`
	SceneID          string         `json:"scene_id,omitempty"`
	Succeeded        bool           `json:"succeeded"`
	Interaction      models.JSONMap `json:"interaction,omitempty"`
	PlayerContext    models.JSONMap `json:"player_context,omitempty"`
}

// ActionOutcome reports what one action produced.
type ActionOutcome struct {
	Evaluation     *rubric.EvaluationResult    `json:"evaluation,omitempty"`
	ChildCompleted bool                        `json:"child_completed"`
	Percentage     float64                     `json:"percentage"`
	Status         models.ObjectiveStatus      `json:"status"`
	LevelUps       []progression.LevelUpResult `json:"level_ups,omitempty"`
}

// HandleAction processes one player action end to end: evaluate against the
// child's rubric (falling back to a provisional neutral result when the
// oracle is unavailable), apply rewards, write the child's progress, and
// cascade upward on completion. Gameplay is never blocked on the oracle.
func (t *Tracker) HandleAction(ctx context.Context, in ActionInput) (*ActionOutcome, error) {
	log := logger.GetCascadeLogger()

	child, err := t.store.GetChildObjective(ctx, in.ChildObjectiveID)
	if err != nil {
		return nil, err
	}

	if in.SceneID != "" {
		if err := t.store.RecordVisit(ctx, in.PlayerID, in.SceneID); err != nil {
			return nil, err
		}
	}

	eval, err := t.evaluate(ctx, in, child)
	if err != nil {
		return nil, err
	}

	outcome := &ActionOutcome{Evaluation: eval, ChildCompleted: t.childCompleted(in, *eval, child)}

	// Provisional results grant nothing; a later backfill re-scores them.
	if !eval.Provisional {
		levelUps, err := t.applyRewards(ctx, in.PlayerID, eval.Rewards)
		if err != nil {
			return nil, err
		}
		outcome.LevelUps = levelUps
	}

	percentage := t.childPercentage(*eval, child, outcome.ChildCompleted)
	status := models.StatusForPercentage(percentage, outcome.ChildCompleted)

	metadata := models.JSONMap{}
	if eval.Provisional {
		metadata["provisional"] = true
	}

	result, err := t.recordWithRetry(ctx, in.PlayerID, child.ID, models.KindChild, percentage, status, metadata)
	if err != nil {
		return outcome, err
	}
	outcome.Percentage = result.NewPercentage
	outcome.Status = result.NewStatus

	quest, err := t.store.GetQuestObjective(ctx, child.QuestID)
	if err != nil {
		return outcome, err
	}

	if result.Changed() {
		t.emitProgress(ctx, quest.CampaignID, in.PlayerID, child.ID, models.KindChild,
			child.Description, result, eval.Provisional)
	}

	// Propagate only on the forward transition; re-completing an already
	// completed child changes nothing upstream.
	if result.NewStatus == models.StatusCompleted && result.OldStatus != models.StatusCompleted {
		log.Info().
			Str("player_id", in.PlayerID).
			Str("child_id", child.ID).
			Str("quest_id", quest.ID).
			Msg("Child objective completed, cascading")
		if err := t.checkQuest(ctx, in.PlayerID, quest); err != nil {
			return outcome, err
		}
	}

	return outcome, nil
}

// CheckCascade recomputes the objective identified by objectiveID from
// source facts and propagates any completion upward. The ID may name a quest
// or a campaign objective; child objectives are event-driven and recomputed
// only through HandleAction.
func (t *Tracker) CheckCascade(ctx context.Context, playerID, objectiveID string) error {
	if quest, err := t.store.GetQuestObjective(ctx, objectiveID); err == nil {
		return t.checkQuest(ctx, playerID, quest)
	} else if !database.IsNotFound(err) {
		return err
	}

	campaign, err := t.store.GetCampaignObjective(ctx, objectiveID)
	if err != nil {
		return err
	}
	return t.checkCampaign(ctx, playerID, campaign)
}

// evaluate produces the rubric evaluation for rubric-backed child types and
// a nil-safe neutral result otherwise.
func (t *Tracker) evaluate(ctx context.Context, in ActionInput, child *models.ChildObjective) (*rubric.EvaluationResult, error) {
	if child.Type != models.ChildChallenge && child.Type != models.ChildConversation {
		return &rubric.EvaluationResult{}, nil
	}

	r, err := t.rubrics.Get(child.RubricName)
	if err != nil {
		return nil, fmt.Errorf("child objective %s: %w", child.ID, err)
	}

	log := logger.GetCascadeLogger()

	scores, err := t.scorer.Score(ctx, oracle.ScoreRequest{
		RubricName:    child.RubricName,
		Criteria:      r.Criteria(),
		Interaction:   in.Interaction,
		PlayerContext: in.PlayerContext,
	})
	if err != nil {
		if !oracle.IsUnavailable(err) {
			return nil, err
		}
		log.Warn().Err(err).
			Str("rubric", child.RubricName).
			Str("child_id", child.ID).
			Msg("Oracle unavailable, falling back to provisional neutral evaluation")
		eval := r.NeutralResult()
		return &eval, nil
	}

	eval, err := r.Evaluate(scores)
	if err != nil {
		// The oracle answered but the payload is unusable. Degrade the same
		// way as unavailability rather than blocking the action.
		log.Warn().Err(err).
			Str("rubric", child.RubricName).
			Str("child_id", child.ID).
			Msg("Oracle scores rejected, falling back to provisional neutral evaluation")
		eval = r.NeutralResult()
	}
	return &eval, nil
}

// childCompleted dispatches the type-specific completion predicate.
func (t *Tracker) childCompleted(in ActionInput, eval rubric.EvaluationResult, child *models.ChildObjective) bool {
	predicate, ok := childPredicates[child.Type]
	if !ok {
		log := logger.GetCascadeLogger()
		log.Error().
			Str("child_id", child.ID).
			Str("type", string(child.Type)).
			Msg("No completion predicate for child objective type")
		return false
	}
	return predicate(in, eval, t.cfg)
}

// childPercentage derives the child's stored percentage. Completion is 100;
// a scored-but-insufficient attempt maps the overall score onto (0, 100) so
// partial effort still shows as in-progress; unscored failures stay at 0.
func (t *Tracker) childPercentage(eval rubric.EvaluationResult, child *models.ChildObjective, completed bool) float64 {
	if completed {
		return 100
	}
	if child.Type == models.ChildChallenge || child.Type == models.ChildConversation {
		pct := eval.OverallScore / rubric.DefaultScoreCeiling * 100
		if pct > 99 {
			pct = 99
		}
		if pct < 0 {
			pct = 0
		}
		return pct
	}
	return 0
}

// applyRewards grants the evaluation's reward payload: knowledge mastery,
// items, and dimensional XP.
func (t *Tracker) applyRewards(ctx context.Context, playerID string, rewards rubric.Reward) ([]progression.LevelUpResult, error) {
	for knowledgeID, level := range rewards.KnowledgeLevels {
		if _, err := t.store.GrantKnowledge(ctx, playerID, knowledgeID, level); err != nil {
			return nil, err
		}
	}
	for itemID, count := range rewards.Items {
		if _, err := t.store.GrantItem(ctx, playerID, itemID, count); err != nil {
			return nil, err
		}
	}

	var levelUps []progression.LevelUpResult
	for dimension, xp := range rewards.DimensionXP {
		result, err := t.progression.AddExperience(ctx, playerID, dimension, xp)
		if err != nil {
			return nil, err
		}
		if result.LeveledUp {
			levelUps = append(levelUps, *result)
		}
	}
	return levelUps, nil
}

// checkQuest recomputes a quest's completion from its children (or its
// explicit success criteria), writes the result, and cascades to the
// campaign on a forward completion transition.
func (t *Tracker) checkQuest(ctx context.Context, playerID string, quest *models.QuestObjective) error {
	var percentage float64
	var completed bool

	if len(quest.SuccessCriteria) > 0 {
		satisfied := 0
		for _, criterion := range quest.SuccessCriteria {
			ok, err := t.criterionSatisfied(ctx, playerID, criterion)
			if err != nil {
				return fmt.Errorf("quest %s: %w", quest.ID, err)
			}
			if ok {
				satisfied++
			}
		}
		percentage = float64(satisfied) / float64(len(quest.SuccessCriteria)) * 100
		completed = satisfied == len(quest.SuccessCriteria)
	} else {
		children, err := t.store.GetQuestChildren(ctx, quest.ID)
		if err != nil {
			return err
		}
		required := lo.Filter(children, func(c models.ChildObjective, _ int) bool {
			return c.Required
		})

		// A quest with nothing required can never complete implicitly. A
		// zero denominator is a content defect, not trivial satisfaction.
		if len(required) == 0 {
			log := logger.GetCascadeLogger()
			log.Warn().
				Str("quest_id", quest.ID).
				Msg("Quest has no required children and no success criteria, completion impossible")
			return nil
		}

		done := lo.CountBy(required, func(c models.ChildObjective) bool {
			return c.Status == models.StatusCompleted
		})
		percentage = float64(done) / float64(len(required)) * 100
		completed = done == len(required)
	}

	status := models.StatusForPercentage(percentage, completed)
	result, err := t.recordWithRetry(ctx, playerID, quest.ID, models.KindQuest, percentage, status, models.JSONMap{})
	if err != nil {
		return err
	}

	if result.Changed() {
		t.emitProgress(ctx, quest.CampaignID, playerID, quest.ID, models.KindQuest,
			quest.Description, result, false)
	}

	if result.NewStatus == models.StatusCompleted && result.OldStatus != models.StatusCompleted {
		campaign, err := t.store.GetCampaignObjective(ctx, quest.CampaignID)
		if err != nil {
			return err
		}
		return t.checkCampaign(ctx, playerID, campaign)
	}
	return nil
}

// checkCampaign recomputes a campaign objective's completion from its quests.
func (t *Tracker) checkCampaign(ctx context.Context, playerID string, campaign *models.CampaignObjective) error {
	quests, err := t.store.GetCampaignQuests(ctx, campaign.ID)
	if err != nil {
		return err
	}

	if campaign.MinimumQuestsRequired < 1 {
		log := logger.GetCascadeLogger()
		log.Warn().
			Str("campaign_id", campaign.ID).
			Int("minimum_quests_required", campaign.MinimumQuestsRequired).
			Msg("Campaign requires zero quests, completion impossible")
		return nil
	}

	done := lo.CountBy(quests, func(q models.QuestObjective) bool {
		return q.Status == models.StatusCompleted
	})

	percentage := float64(done) / float64(campaign.MinimumQuestsRequired) * 100
	if percentage > 100 {
		percentage = 100
	}
	completed := done >= campaign.MinimumQuestsRequired

	status := models.StatusForPercentage(percentage, completed)
	result, err := t.recordWithRetry(ctx, playerID, campaign.ID, models.KindCampaign, percentage, status, models.JSONMap{})
	if err != nil {
		return err
	}

	if result.Changed() {
		t.emitCampaignProgress(ctx, campaign, playerID, result)
	}
	return nil
}

// recordWithRetry writes progress through the store retry policy. Transient
// store failures retry with exponential backoff; exhaustion surfaces as
// ErrUpdateDeferred so the caller can return the evaluation anyway.
func (t *Tracker) recordWithRetry(ctx context.Context, playerID, objectiveID string, kind models.ObjectiveKind, percentage float64, status models.ObjectiveStatus, metadata models.JSONMap) (*database.ProgressResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.cfg.StoreInitialBackoff

	var result *database.ProgressResult
	operation := func() error {
		r, err := t.store.RecordProgress(ctx, playerID, objectiveID, kind, percentage, status, metadata)
		if err != nil {
			if database.IsStoreUnavailable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.cfg.StoreMaxRetries)), ctx))
	if err != nil {
		if database.IsStoreUnavailable(err) {
			log := logger.GetCascadeLogger()
			log.Error().Err(err).
				Str("objective_id", objectiveID).
				Str("player_id", playerID).
				Msg("Progress write deferred after exhausting store retries")
			return nil, fmt.Errorf("%w: %v", ErrUpdateDeferred, err)
		}
		return nil, err
	}
	return result, nil
}

// emitProgress publishes a child/quest progress event plus a completion event
// on the forward transition.
func (t *Tracker) emitProgress(ctx context.Context, campaignID, playerID, objectiveID string, kind models.ObjectiveKind, description string, result *database.ProgressResult, provisional bool) {
	now := time.Now().UTC()

	t.emit(ctx, protocol.ObjectiveProgressEvent{
		Metadata:      t.metadata(campaignID, playerID, objectiveID, result),
		Kind:          protocol.KindObjectiveProgress,
		ObjectiveID:   objectiveID,
		ObjectiveKind: kind,
		Description:   description,
		Percentage:    result.NewPercentage,
		Status:        result.NewStatus.String(),
		Provisional:   provisional,
		Timestamp:     now,
	})

	if result.NewStatus == models.StatusCompleted && result.OldStatus != models.StatusCompleted {
		t.emit(ctx, protocol.ObjectiveCompletedEvent{
			Metadata:      t.metadata(campaignID, playerID, objectiveID+"/completed", result),
			Kind:          protocol.KindObjectiveCompleted,
			ObjectiveID:   objectiveID,
			ObjectiveKind: kind,
			Description:   description,
			Percentage:    result.NewPercentage,
			Timestamp:     now,
		})
	}
}

// emitCampaignProgress publishes campaign-level progress and completion.
func (t *Tracker) emitCampaignProgress(ctx context.Context, campaign *models.CampaignObjective, playerID string, result *database.ProgressResult) {
	now := time.Now().UTC()

	t.emit(ctx, protocol.CampaignObjectiveProgressEvent{
		Metadata:    t.metadata(campaign.ID, playerID, campaign.ID, result),
		Kind:        protocol.KindCampaignObjectiveProgress,
		ObjectiveID: campaign.ID,
		Description: campaign.Description,
		Percentage:  result.NewPercentage,
		Status:      result.NewStatus.String(),
		Timestamp:   now,
	})

	if result.NewStatus == models.StatusCompleted && result.OldStatus != models.StatusCompleted {
		t.emit(ctx, protocol.ObjectiveCompletedEvent{
			Metadata:      t.metadata(campaign.ID, playerID, campaign.ID+"/completed", result),
			Kind:          protocol.KindObjectiveCompleted,
			ObjectiveID:   campaign.ID,
			ObjectiveKind: models.KindCampaign,
			Description:   campaign.Description,
			Percentage:    result.NewPercentage,
			Timestamp:     now,
		})
	}
}

// metadata builds event metadata. The idempotency key encodes the objective
// and the state it moved to, so a replayed cascade produces the same key.
func (t *Tracker) metadata(campaignID, playerID, subject string, result *database.ProgressResult) common.Metadata {
	return common.Metadata{
		EventID:        uuid.New().String(),
		CampaignID:     campaignID,
		PlayerID:       playerID,
		IdempotencyKey: fmt.Sprintf("%s:%s:%.2f:%d", playerID, subject, result.NewPercentage, result.NewStatus),
		Version:        common.CurrentProtocolVersion,
	}
}

// emit publishes an event without ever blocking the cascade. A full channel
// drops the event and logs; listeners reconcile from stored state on
// reconnect.
func (t *Tracker) emit(ctx context.Context, event common.Event) {
	if t.events == nil {
		return
	}
	select {
	case t.events <- event:
	case <-ctx.Done():
	default:
		log := logger.GetCascadeLogger()
		log.Warn().
			Str("idempotency_key", event.GetMetadata().IdempotencyKey).
			Msg("Event channel full, dropping event")
	}
}
