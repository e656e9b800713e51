// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package query is the stateless read API over the graph store, validator,
// and progression tracker. It never mutates state and is safe for
// arbitrarily concurrent callers; reads return best-effort current state
// even while a cascade is mid-flight.
package query

import (
	"context"

	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/progression"
	"github.com/questweave/questweave/internal/engine/validation"
)

// Service bundles the read contracts consumed by UI and game-loop callers.
type Service struct {
	store       *database.GormDB
	validator   *validation.Validator
	progression *progression.Tracker
}

// NewService wires the query service.
func NewService(store *database.GormDB, validator *validation.Validator, prog *progression.Tracker) *Service {
	return &Service{store: store, validator: validator, progression: prog}
}

// GetObjectiveHierarchy returns the full campaign tree: quests ordered by
// quest number, each with its children, plus scenes and encounters.
func (s *Service) GetObjectiveHierarchy(ctx context.Context, campaignID string) (*models.CampaignObjective, error) {
	return s.store.GetHierarchy(ctx, campaignID)
}

// GetSceneObjectives returns what a scene advances and provides.
func (s *Service) GetSceneObjectives(ctx context.Context, sceneID string) (*database.SceneAssignments, error) {
	return s.store.GetSceneAssignments(ctx, sceneID)
}

// GetAcquisitionPaths returns every distinct way to obtain a resource.
func (s *Service) GetAcquisitionPaths(ctx context.Context, resourceID string) ([]database.Path, error) {
	return s.store.GetAcquisitionPaths(ctx, resourceID)
}

// DimensionalProgress is one axis of a player's progression snapshot,
// enriched with the Bloom level name and the next threshold.
type DimensionalProgress struct {
	Dimension          models.Dimension `json:"dimension"`
	Level              int              `json:"level"`
	LevelName          string           `json:"level_name"`
	ExperiencePoints   int              `json:"experience_points"`
	NextLevelThreshold int              `json:"next_level_threshold"` // 0 at the ceiling
}

// GetDimensionalProgress returns the player's seven-axis progression state.
func (s *Service) GetDimensionalProgress(ctx context.Context, playerID string) ([]DimensionalProgress, error) {
	states, err := s.progression.Snapshot(ctx, playerID)
	if err != nil {
		return nil, err
	}

	out := make([]DimensionalProgress, len(states))
	for i, st := range states {
		out[i] = DimensionalProgress{
			Dimension:          st.Dimension,
			Level:              st.Level,
			LevelName:          models.BloomLevelName(st.Level),
			ExperiencePoints:   st.ExperiencePoints,
			NextLevelThreshold: s.progression.NextLevelThreshold(st.Level),
		}
	}
	return out, nil
}

// GetFocusDimensions returns the player's n weakest axes for content
// balancing.
func (s *Service) GetFocusDimensions(ctx context.Context, playerID string, n int) ([]models.Dimension, error) {
	return s.progression.RecommendFocusDimensions(ctx, playerID, n)
}

// GetValidationReport runs the redundancy/achievability checks for a
// campaign. Read-only; safe during gameplay.
func (s *Service) GetValidationReport(ctx context.Context, campaignID string) (*validation.Report, error) {
	return s.validator.Validate(ctx, campaignID)
}

// GetPlayerProgress returns the player's stored progress on one objective.
func (s *Service) GetPlayerProgress(ctx context.Context, playerID, objectiveID string) (*models.PlayerProgress, error) {
	return s.store.GetProgress(ctx, playerID, objectiveID)
}
