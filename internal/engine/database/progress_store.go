// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/questweave/questweave/internal/engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressResult reports what a RecordProgress call actually changed.
// The cascade tracker compares old vs new to decide whether to emit a
// progress event; an unchanged write emits nothing.
type ProgressResult struct {
	OldPercentage float64
	NewPercentage float64
	OldStatus     models.ObjectiveStatus
	NewStatus     models.ObjectiveStatus
}

// Changed reports whether the stored state moved.
func (r ProgressResult) Changed() bool {
	return r.NewPercentage != r.OldPercentage || r.NewStatus != r.OldStatus
}

// RecordProgress stores progress for one player on one objective. The write
// is a single transaction and every mutation is monotonic-guarded: the
// stored percentage only moves toward max(existing, incoming), status only
// moves forward (NotStarted < InProgress < Completed). Because the guard is
// part of the UPDATE statement itself, concurrent writers converge on the
// maximum with no lost update and no lock.
func (db *GormDB) RecordProgress(ctx context.Context, playerID, objectiveID string, kind models.ObjectiveKind, percentage float64, status models.ObjectiveStatus, metadata models.JSONMap) (*ProgressResult, error) {
	if !kind.IsValid() {
		return nil, storeErr("record progress", gorm.ErrInvalidValue)
	}

	result := &ProgressResult{}

	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Ensure the progress row exists; a concurrent creator wins the race
		// harmlessly via the unique (player_id, objective_id) index.
		seed := models.PlayerProgress{
			ID:          uuid.New().String(),
			PlayerID:    playerID,
			ObjectiveID: objectiveID,
			Kind:        kind,
			Percentage:  0,
			Status:      models.StatusNotStarted,
			Metadata:    models.JSONMap{},
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "objective_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}

		var existing models.PlayerProgress
		if err := tx.Where("player_id = ? AND objective_id = ?", playerID, objectiveID).
			First(&existing).Error; err != nil {
			return err
		}
		result.OldPercentage = existing.Percentage
		result.OldStatus = existing.Status

		// Monotonic clamp: the guard lives in the UPDATE itself.
		if err := tx.Model(&models.PlayerProgress{}).
			Where("player_id = ? AND objective_id = ? AND percentage < ?", playerID, objectiveID, percentage).
			Updates(map[string]any{"percentage": percentage, "metadata": metadata}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PlayerProgress{}).
			Where("player_id = ? AND objective_id = ? AND status < ?", playerID, objectiveID, status).
			Update("status", status).Error; err != nil {
			return err
		}

		// Mirror onto the shared objective node under the same guards.
		if err := updateNodeProgress(tx, kind, objectiveID, percentage, status); err != nil {
			return err
		}

		// PROGRESS edge: player → objective, merged on the edge key so
		// re-recording never duplicates.
		edge := models.Edge{
			ID:         uuid.New().String(),
			FromID:     playerID,
			ToID:       objectiveID,
			EdgeType:   models.EdgeProgress,
			Properties: models.JSONMap{"kind": string(kind)},
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_id"}, {Name: "to_id"}, {Name: "edge_type"}},
			DoNothing: true,
		}).Create(&edge).Error; err != nil {
			return err
		}

		var final models.PlayerProgress
		if err := tx.Where("player_id = ? AND objective_id = ?", playerID, objectiveID).
			First(&final).Error; err != nil {
			return err
		}
		result.NewPercentage = final.Percentage
		result.NewStatus = final.Status
		return nil
	})
	if err != nil {
		return nil, storeErr("record progress", err)
	}
	return result, nil
}

// updateNodeProgress applies the monotonic-guarded percentage/status write to
// the objective's node table.
func updateNodeProgress(tx *gorm.DB, kind models.ObjectiveKind, objectiveID string, percentage float64, status models.ObjectiveStatus) error {
	var model interface{}
	switch kind {
	case models.KindCampaign:
		model = &models.CampaignObjective{}
	case models.KindQuest:
		model = &models.QuestObjective{}
	case models.KindChild:
		model = &models.ChildObjective{}
	default:
		return gorm.ErrInvalidValue
	}

	if err := tx.Model(model).
		Where("id = ? AND completion_percentage < ?", objectiveID, percentage).
		Update("completion_percentage", percentage).Error; err != nil {
		return err
	}
	return tx.Model(model).
		Where("id = ? AND status < ?", objectiveID, status).
		Update("status", status).Error
}

// GetProgress returns a player's progress record for an objective.
func (db *GormDB) GetProgress(ctx context.Context, playerID, objectiveID string) (*models.PlayerProgress, error) {
	var p models.PlayerProgress
	err := db.db.WithContext(ctx).
		Where("player_id = ? AND objective_id = ?", playerID, objectiveID).
		First(&p).Error
	if err != nil {
		return nil, storeErr("get progress", err)
	}
	return &p, nil
}

// ResetProgress is the explicit administrative reset: it zeroes the player's
// progress record and the shared node state without monotonic guards. This
// is the only sanctioned percentage regression.
func (db *GormDB) ResetProgress(ctx context.Context, playerID, objectiveID string, kind models.ObjectiveKind) error {
	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PlayerProgress{}).
			Where("player_id = ? AND objective_id = ?", playerID, objectiveID).
			Updates(map[string]any{
				"percentage": 0,
				"status":     models.StatusNotStarted,
				"metadata":   models.JSONMap{},
			}).Error; err != nil {
			return err
		}

		var model interface{}
		switch kind {
		case models.KindCampaign:
			model = &models.CampaignObjective{}
		case models.KindQuest:
			model = &models.QuestObjective{}
		case models.KindChild:
			model = &models.ChildObjective{}
		default:
			return gorm.ErrInvalidValue
		}
		return tx.Model(model).Where("id = ?", objectiveID).
			Updates(map[string]any{
				"completion_percentage": 0,
				"status":                models.StatusNotStarted,
			}).Error
	})
	return storeErr("reset progress", err)
}

// --- dimensional state ---

// GetDimensionState returns one player's state on one axis.
func (db *GormDB) GetDimensionState(ctx context.Context, playerID string, dimension models.Dimension) (*models.DimensionState, error) {
	var state models.DimensionState
	err := db.db.WithContext(ctx).
		Where("player_id = ? AND dimension = ?", playerID, dimension).
		First(&state).Error
	if err != nil {
		return nil, storeErr("get dimension state", err)
	}
	return &state, nil
}

// SaveDimensionState upserts a player's dimension state, merged on the
// (player_id, dimension) key.
func (db *GormDB) SaveDimensionState(ctx context.Context, state *models.DimensionState) error {
	if state.ID == "" {
		state.ID = uuid.New().String()
	}
	err := db.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "dimension"}},
		DoUpdates: clause.AssignmentColumns([]string{"level", "experience_points"}),
	}).Create(state).Error
	return storeErr("save dimension state", err)
}

// ListDimensionStates returns all stored axes for a player. Axes the player
// has never earned XP on are absent; callers fill defaults.
func (db *GormDB) ListDimensionStates(ctx context.Context, playerID string) ([]models.DimensionState, error) {
	var states []models.DimensionState
	err := db.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Find(&states).Error
	if err != nil {
		return nil, storeErr("list dimension states", err)
	}
	return states, nil
}

// --- resource acquisition state ---

// GrantKnowledge raises a player's mastery of one knowledge node toward
// level, clamped at the node's max_level. Mastery never regresses.
func (db *GormDB) GrantKnowledge(ctx context.Context, playerID, knowledgeID string, level int) (int, error) {
	var newLevel int
	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var k models.Knowledge
		if err := tx.First(&k, "id = ?", knowledgeID).Error; err != nil {
			return err
		}
		if level > k.MaxLevel {
			level = k.MaxLevel
		}
		if level < 1 {
			level = 1
		}

		seed := models.KnowledgeMastery{
			ID:          uuid.New().String(),
			PlayerID:    playerID,
			KnowledgeID: knowledgeID,
			Level:       level,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "knowledge_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.KnowledgeMastery{}).
			Where("player_id = ? AND knowledge_id = ? AND level < ?", playerID, knowledgeID, level).
			Update("level", level).Error; err != nil {
			return err
		}

		var final models.KnowledgeMastery
		if err := tx.Where("player_id = ? AND knowledge_id = ?", playerID, knowledgeID).
			First(&final).Error; err != nil {
			return err
		}
		newLevel = final.Level
		return nil
	})
	if err != nil {
		return 0, storeErr("grant knowledge", err)
	}
	return newLevel, nil
}

// GetKnowledgeLevel returns a player's mastery level for a knowledge node,
// 0 when the player has none.
func (db *GormDB) GetKnowledgeLevel(ctx context.Context, playerID, knowledgeID string) (int, error) {
	var m models.KnowledgeMastery
	err := db.db.WithContext(ctx).
		Where("player_id = ? AND knowledge_id = ?", playerID, knowledgeID).
		First(&m).Error
	if err != nil {
		if IsNotFound(storeErr("get knowledge level", err)) {
			return 0, nil
		}
		return 0, storeErr("get knowledge level", err)
	}
	return m.Level, nil
}

// GrantItem adds count of an item to a player's holdings. The increment is a
// single UPDATE expression, atomic under concurrency.
func (db *GormDB) GrantItem(ctx context.Context, playerID, itemID string, count int) (int, error) {
	var newCount int
	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.ItemGrant{
			ID:       uuid.New().String(),
			PlayerID: playerID,
			ItemID:   itemID,
			Count:    0,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ItemGrant{}).
			Where("player_id = ? AND item_id = ?", playerID, itemID).
			Update("count", gorm.Expr("count + ?", count)).Error; err != nil {
			return err
		}

		var final models.ItemGrant
		if err := tx.Where("player_id = ? AND item_id = ?", playerID, itemID).
			First(&final).Error; err != nil {
			return err
		}
		newCount = final.Count
		return nil
	})
	if err != nil {
		return 0, storeErr("grant item", err)
	}
	return newCount, nil
}

// GetItemCount returns how many of an item a player holds, 0 when none.
func (db *GormDB) GetItemCount(ctx context.Context, playerID, itemID string) (int, error) {
	var g models.ItemGrant
	err := db.db.WithContext(ctx).
		Where("player_id = ? AND item_id = ?", playerID, itemID).
		First(&g).Error
	if err != nil {
		if IsNotFound(storeErr("get item count", err)) {
			return 0, nil
		}
		return 0, storeErr("get item count", err)
	}
	return g.Count, nil
}

// RecordVisit marks a scene as visited by a player. Idempotent.
func (db *GormDB) RecordVisit(ctx context.Context, playerID, sceneID string) error {
	visit := models.LocationVisit{
		ID:       uuid.New().String(),
		PlayerID: playerID,
		SceneID:  sceneID,
	}
	err := db.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "scene_id"}},
		DoNothing: true,
	}).Create(&visit).Error
	return storeErr("record visit", err)
}

// HasVisited reports whether a player has visited a scene.
func (db *GormDB) HasVisited(ctx context.Context, playerID, sceneID string) (bool, error) {
	var count int64
	err := db.db.WithContext(ctx).Model(&models.LocationVisit{}).
		Where("player_id = ? AND scene_id = ?", playerID, sceneID).
		Count(&count).Error
	if err != nil {
		return false, storeErr("has visited", err)
	}
	return count > 0, nil
}
