// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/rubric"
)

// childPredicate decides whether a child objective completes given the
// external signal and the rubric evaluation. The registry keeps dispatch on
// the type tag closed; an unknown tag never falls through silently.
type childPredicate func(in ActionInput, eval rubric.EvaluationResult, cfg *config.CascadeConfig) bool

var childPredicates = map[models.ChildObjectiveType]childPredicate{
	models.ChildDiscovery: func(in ActionInput, _ rubric.EvaluationResult, _ *config.CascadeConfig) bool {
		return in.Succeeded
	},
	models.ChildEvent: func(in ActionInput, _ rubric.EvaluationResult, _ *config.CascadeConfig) bool {
		return in.Succeeded
	},
	models.ChildChallenge: func(in ActionInput, eval rubric.EvaluationResult, cfg *config.CascadeConfig) bool {
		return in.Succeeded && eval.Tier >= cfg.ChallengeMinTier
	},
	models.ChildConversation: func(in ActionInput, eval rubric.EvaluationResult, cfg *config.CascadeConfig) bool {
		return eval.OverallScore >= cfg.ConversationMinScore
	},
}

// criterionSatisfied evaluates one quest success criterion against the
// player's backing state. Criterion syntax:
//
//	knowledge:<knowledge_id>:<min_level>
//	item:<item_id>:<min_count>
//	visited:<scene_id>
func (t *Tracker) criterionSatisfied(ctx context.Context, playerID, criterion string) (bool, error) {
	parts := strings.Split(criterion, ":")
	switch parts[0] {
	case "knowledge":
		if len(parts) != 3 {
			return false, fmt.Errorf("malformed knowledge criterion: %q", criterion)
		}
		minLevel, err := strconv.Atoi(parts[2])
		if err != nil {
			return false, fmt.Errorf("malformed knowledge criterion level: %q", criterion)
		}
		level, err := t.store.GetKnowledgeLevel(ctx, playerID, parts[1])
		if err != nil {
			return false, err
		}
		return level >= minLevel, nil

	case "item":
		if len(parts) != 3 {
			return false, fmt.Errorf("malformed item criterion: %q", criterion)
		}
		minCount, err := strconv.Atoi(parts[2])
		if err != nil {
			return false, fmt.Errorf("malformed item criterion count: %q", criterion)
		}
		count, err := t.store.GetItemCount(ctx, playerID, parts[1])
		if err != nil {
			return false, err
		}
		return count >= minCount, nil

	case "visited":
		if len(parts) != 2 {
			return false, fmt.Errorf("malformed visited criterion: %q", criterion)
		}
		return t.store.HasVisited(ctx, playerID, parts[1])

	default:
		return false, fmt.Errorf("unknown success criterion kind: %q", criterion)
	}
}
