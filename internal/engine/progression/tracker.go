// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package progression maintains per-player, per-dimension experience and
// maturity level state on the seven-axis, six-level model.
package progression

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/logger"
)

// Tracker advances dimensional maturity from rubric-scored experience.
type Tracker struct {
	store      *database.GormDB
	thresholds []int // cumulative XP for levels 2..6, strictly increasing
}

// NewTracker creates a progression tracker from validated config.
func NewTracker(store *database.GormDB, cfg *config.ProgressionConfig) (*Tracker, error) {
	if len(cfg.LevelThresholds) != models.MaxMaturityLevel-1 {
		return nil, fmt.Errorf("progression tracker needs %d thresholds, got %d",
			models.MaxMaturityLevel-1, len(cfg.LevelThresholds))
	}
	return &Tracker{
		store:      store,
		thresholds: append([]int(nil), cfg.LevelThresholds...),
	}, nil
}

// LevelUpResult reports the outcome of one experience grant.
type LevelUpResult struct {
	Dimension        models.Dimension `json:"dimension"`
	ExperiencePoints int              `json:"experience_points"`
	Level            int              `json:"level"`
	LevelName        string           `json:"level_name"`
	LeveledUp        bool             `json:"leveled_up"`
	LevelsGained     int              `json:"levels_gained"`
}

// AddExperience grants XP on one axis and advances the level across every
// crossed threshold — a large grant can jump several levels at once.
func (t *Tracker) AddExperience(ctx context.Context, playerID string, dimension models.Dimension, amount int) (*LevelUpResult, error) {
	if !dimension.IsValid() {
		return nil, fmt.Errorf("unknown dimension: %q", dimension)
	}
	if amount < 0 {
		return nil, fmt.Errorf("experience amount must not be negative, got %d", amount)
	}

	state, err := t.store.GetDimensionState(ctx, playerID, dimension)
	if err != nil {
		if !database.IsNotFound(err) {
			return nil, err
		}
		state = &models.DimensionState{
			PlayerID:         playerID,
			Dimension:        dimension,
			Level:            1,
			ExperiencePoints: 0,
		}
	}

	oldLevel := state.Level
	state.ExperiencePoints += amount

	// Walk thresholds in a loop: a single grant may cross several.
	for state.Level < models.MaxMaturityLevel && state.ExperiencePoints >= t.thresholds[state.Level-1] {
		state.Level++
	}

	if err := t.store.SaveDimensionState(ctx, state); err != nil {
		return nil, err
	}

	result := &LevelUpResult{
		Dimension:        dimension,
		ExperiencePoints: state.ExperiencePoints,
		Level:            state.Level,
		LevelName:        models.BloomLevelName(state.Level),
		LeveledUp:        state.Level > oldLevel,
		LevelsGained:     state.Level - oldLevel,
	}

	if result.LeveledUp {
		log := logger.GetEngineLogger()
		log.Info().
			Str("player_id", playerID).
			Str("dimension", string(dimension)).
			Int("level", state.Level).
			Str("level_name", result.LevelName).
			Msg("Dimension level up")
	}

	return result, nil
}

// NextLevelThreshold returns the cumulative XP needed for the next level, or
// 0 when the level is already at the ceiling.
func (t *Tracker) NextLevelThreshold(level int) int {
	if level < 1 || level >= models.MaxMaturityLevel {
		return 0
	}
	return t.thresholds[level-1]
}

// Snapshot returns the player's state on all seven axes, filling defaults
// for axes with no stored state.
func (t *Tracker) Snapshot(ctx context.Context, playerID string) ([]models.DimensionState, error) {
	stored, err := t.store.ListDimensionStates(ctx, playerID)
	if err != nil {
		return nil, err
	}

	byDimension := lo.KeyBy(stored, func(s models.DimensionState) models.Dimension {
		return s.Dimension
	})

	out := make([]models.DimensionState, 0, len(models.AllDimensions()))
	for _, d := range models.AllDimensions() {
		if s, ok := byDimension[d]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, models.DimensionState{
			PlayerID:         playerID,
			Dimension:        d,
			Level:            1,
			ExperiencePoints: 0,
		})
	}
	return out, nil
}

// RecommendFocusDimensions returns the n weakest dimensions for a player,
// ordered by (level, xp) ascending. Pure read; drives content balance
// recommendations.
func (t *Tracker) RecommendFocusDimensions(ctx context.Context, playerID string, n int) ([]models.Dimension, error) {
	if n < 1 {
		return nil, fmt.Errorf("focus dimension count must be positive, got %d", n)
	}

	states, err := t.Snapshot(ctx, playerID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(states, func(i, j int) bool {
		if states[i].Level != states[j].Level {
			return states[i].Level < states[j].Level
		}
		return states[i].ExperiencePoints < states[j].ExperiencePoints
	})

	if n > len(states) {
		n = len(states)
	}
	return lo.Map(states[:n], func(s models.DimensionState, _ int) models.Dimension {
		return s.Dimension
	}), nil
}
