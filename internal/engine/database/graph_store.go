// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package database implements the Objective Graph Store: typed node tables
// plus an edges table as the relational encoding of the objective graph.
// All writes are idempotent merges on stable keys; progress writes apply a
// monotonic max-clamp inside a single transaction.
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormDB wraps the GORM database connection
type GormDB struct {
	db *gorm.DB
}

// NewGormDB creates a new GORM database connection
func NewGormDB(cfg *config.DatabaseConfig) (*GormDB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Reduce GORM log noise
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &GormDB{db: db}, nil
}

// AutoMigrate runs database migrations
func (db *GormDB) AutoMigrate() error {
	return db.db.AutoMigrate(
		&models.CampaignObjective{},
		&models.QuestObjective{},
		&models.ChildObjective{},
		&models.Scene{},
		&models.Encounter{},
		&models.Knowledge{},
		&models.Item{},
		&models.Edge{},
		&models.PlayerProgress{},
		&models.DimensionState{},
		&models.KnowledgeMastery{},
		&models.ItemGrant{},
		&models.LocationVisit{},
	)
}

// ValidateSchema checks if GORM models match the database schema
func (db *GormDB) ValidateSchema() error {
	var missingTables []string

	for _, m := range []interface{}{
		&models.CampaignObjective{},
		&models.QuestObjective{},
		&models.ChildObjective{},
		&models.Scene{},
		&models.Encounter{},
		&models.Knowledge{},
		&models.Item{},
		&models.Edge{},
		&models.PlayerProgress{},
		&models.DimensionState{},
		&models.KnowledgeMastery{},
		&models.ItemGrant{},
		&models.LocationVisit{},
	} {
		if !db.db.Migrator().HasTable(m) {
			stmt := &gorm.Statement{DB: db.db}
			_ = stmt.Parse(m)
			missingTables = append(missingTables, stmt.Schema.Table)
		}
	}

	if len(missingTables) > 0 {
		return fmt.Errorf("missing tables: %v — run the migrate command to create them", missingTables)
	}

	if !db.db.Migrator().HasIndex(&models.Edge{}, "idx_edge_triple") {
		return fmt.Errorf("missing index: edges.idx_edge_triple — run the migrate command to add it")
	}

	return nil
}

// Close closes the database connection
func (db *GormDB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- node writes ---

// nodeForKind maps an upsert payload onto the typed model for a node kind.
// The registry keeps dispatch on the kind tag closed: unknown kinds are a
// construction-time error, never a silent fallthrough.
var nodeForKind = map[string]func(id string, props models.JSONMap) (interface{}, error){
	"campaign_objective": func(id string, p models.JSONMap) (interface{}, error) {
		return &models.CampaignObjective{
			ID:                    id,
			Description:           propString(p, "description"),
			CompletionCriteria:    propStrings(p, "completion_criteria"),
			MinimumQuestsRequired: propIntDefault(p, "minimum_quests_required", 1),
		}, nil
	},
	"quest_objective": func(id string, p models.JSONMap) (interface{}, error) {
		return &models.QuestObjective{
			ID:              id,
			CampaignID:      propString(p, "campaign_id"),
			Description:     propString(p, "description"),
			QuestNumber:     propIntDefault(p, "quest_number", 0),
			BloomLevel:      propIntDefault(p, "bloom_level", 1),
			SuccessCriteria: propStrings(p, "success_criteria"),
			IsRequired:      propBoolDefault(p, "is_required", true),
		}, nil
	},
	"child_objective": func(id string, p models.JSONMap) (interface{}, error) {
		typ := models.ChildObjectiveType(propString(p, "type"))
		if !typ.IsValid() {
			return nil, fmt.Errorf("invalid child objective type: %q", propString(p, "type"))
		}
		return &models.ChildObjective{
			ID:           id,
			QuestID:      propString(p, "quest_id"),
			Type:         typ,
			Description:  propString(p, "description"),
			Required:     propBoolDefault(p, "required", true),
			Requirements: propMap(p, "requirements"),
			RubricName:   propString(p, "rubric_name"),
		}, nil
	},
	"knowledge": func(id string, p models.JSONMap) (interface{}, error) {
		return &models.Knowledge{
			ID:       id,
			Name:     propString(p, "name"),
			Domain:   propString(p, "domain"),
			MaxLevel: propIntDefault(p, "max_level", 1),
		}, nil
	},
	"item": func(id string, p models.JSONMap) (interface{}, error) {
		return &models.Item{
			ID:       id,
			Name:     propString(p, "name"),
			Category: propString(p, "category"),
		}, nil
	},
	"scene": func(id string, p models.JSONMap) (interface{}, error) {
		return &models.Scene{
			ID:          id,
			CampaignID:  propString(p, "campaign_id"),
			Title:       propString(p, "title"),
			Description: propString(p, "description"),
		}, nil
	},
	"encounter": func(id string, p models.JSONMap) (interface{}, error) {
		kind := models.EncounterKind(propString(p, "kind"))
		if !kind.IsValid() {
			return nil, fmt.Errorf("invalid encounter kind: %q", propString(p, "kind"))
		}
		return &models.Encounter{
			ID:      id,
			SceneID: propString(p, "scene_id"),
			Kind:    kind,
			Name:    propString(p, "name"),
		}, nil
	},
}

// UpsertNode writes a node of the given kind, merging on the primary key.
// Status and percentage columns are deliberately excluded from the update
// set: definition re-imports must never regress gameplay progress.
func (db *GormDB) UpsertNode(ctx context.Context, kind, id string, properties models.JSONMap) error {
	build, ok := nodeForKind[kind]
	if !ok {
		return fmt.Errorf("unknown node kind: %q", kind)
	}
	node, err := build(id, properties)
	if err != nil {
		return err
	}

	err = db.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(definitionColumns(kind)),
	}).Create(node).Error
	return storeErr("upsert node", err)
}

// definitionColumns lists the columns a re-imported definition may overwrite
// per node kind. Progress-bearing columns stay out of the list.
func definitionColumns(kind string) []string {
	switch kind {
	case "campaign_objective":
		return []string{"description", "completion_criteria", "minimum_quests_required"}
	case "quest_objective":
		return []string{"campaign_id", "description", "quest_number", "bloom_level", "success_criteria", "is_required"}
	case "child_objective":
		return []string{"quest_id", "type", "description", "required", "requirements", "rubric_name"}
	case "knowledge":
		return []string{"name", "domain", "max_level"}
	case "item":
		return []string{"name", "category"}
	case "scene":
		return []string{"campaign_id", "title", "description"}
	case "encounter":
		return []string{"scene_id", "kind", "name"}
	default:
		return nil
	}
}

// UpsertEdge writes a typed edge, merging properties on the
// (from_id, to_id, edge_type) key. Re-applying the same edge never creates
// a duplicate.
func (db *GormDB) UpsertEdge(ctx context.Context, fromID, toID string, edgeType models.EdgeType, properties models.JSONMap) error {
	if !edgeType.IsValid() {
		return fmt.Errorf("unknown edge type: %q", edgeType)
	}

	edge := models.Edge{
		ID:         uuid.New().String(),
		FromID:     fromID,
		ToID:       toID,
		EdgeType:   edgeType,
		Properties: properties,
	}

	err := db.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "from_id"}, {Name: "to_id"}, {Name: "edge_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"properties"}),
	}).Create(&edge).Error
	return storeErr("upsert edge", err)
}

// --- node reads ---

// GetHierarchy loads a campaign objective with its full quest and child
// objective tree plus scenes and encounters.
func (db *GormDB) GetHierarchy(ctx context.Context, campaignID string) (*models.CampaignObjective, error) {
	var campaign models.CampaignObjective
	err := db.db.WithContext(ctx).
		Preload("Quests", func(tx *gorm.DB) *gorm.DB { return tx.Order("quest_number ASC") }).
		Preload("Quests.Children").
		Preload("Scenes.Encounters").
		First(&campaign, "id = ?", campaignID).Error
	if err != nil {
		return nil, storeErr("get hierarchy", err)
	}
	return &campaign, nil
}

// GetCampaignObjective retrieves a single campaign objective by ID
func (db *GormDB) GetCampaignObjective(ctx context.Context, id string) (*models.CampaignObjective, error) {
	var campaign models.CampaignObjective
	if err := db.db.WithContext(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		return nil, storeErr("get campaign objective", err)
	}
	return &campaign, nil
}

// GetQuestObjective retrieves a single quest objective by ID
func (db *GormDB) GetQuestObjective(ctx context.Context, id string) (*models.QuestObjective, error) {
	var quest models.QuestObjective
	if err := db.db.WithContext(ctx).First(&quest, "id = ?", id).Error; err != nil {
		return nil, storeErr("get quest objective", err)
	}
	return &quest, nil
}

// GetChildObjective retrieves a single child objective by ID
func (db *GormDB) GetChildObjective(ctx context.Context, id string) (*models.ChildObjective, error) {
	var child models.ChildObjective
	if err := db.db.WithContext(ctx).First(&child, "id = ?", id).Error; err != nil {
		return nil, storeErr("get child objective", err)
	}
	return &child, nil
}

// GetQuestChildren retrieves all child objectives of a quest
func (db *GormDB) GetQuestChildren(ctx context.Context, questID string) ([]models.ChildObjective, error) {
	var children []models.ChildObjective
	err := db.db.WithContext(ctx).Where("quest_id = ?", questID).
		Order("created_at ASC").
		Find(&children).Error
	if err != nil {
		return nil, storeErr("get quest children", err)
	}
	return children, nil
}

// GetCampaignQuests retrieves all quest objectives of a campaign
func (db *GormDB) GetCampaignQuests(ctx context.Context, campaignID string) ([]models.QuestObjective, error) {
	var quests []models.QuestObjective
	err := db.db.WithContext(ctx).Where("campaign_id = ?", campaignID).
		Order("quest_number ASC").
		Find(&quests).Error
	if err != nil {
		return nil, storeErr("get campaign quests", err)
	}
	return quests, nil
}

// GetScene retrieves a single scene with its encounters
func (db *GormDB) GetScene(ctx context.Context, id string) (*models.Scene, error) {
	var scene models.Scene
	if err := db.db.WithContext(ctx).Preload("Encounters").First(&scene, "id = ?", id).Error; err != nil {
		return nil, storeErr("get scene", err)
	}
	return &scene, nil
}

// GetCampaignScenes retrieves all scenes of a campaign with encounters
func (db *GormDB) GetCampaignScenes(ctx context.Context, campaignID string) ([]models.Scene, error) {
	var scenes []models.Scene
	err := db.db.WithContext(ctx).Preload("Encounters").
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC").
		Find(&scenes).Error
	if err != nil {
		return nil, storeErr("get campaign scenes", err)
	}
	return scenes, nil
}

// GetKnowledge retrieves a single knowledge node by ID
func (db *GormDB) GetKnowledge(ctx context.Context, id string) (*models.Knowledge, error) {
	var k models.Knowledge
	if err := db.db.WithContext(ctx).First(&k, "id = ?", id).Error; err != nil {
		return nil, storeErr("get knowledge", err)
	}
	return &k, nil
}

// GetItem retrieves a single item node by ID
func (db *GormDB) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := db.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, storeErr("get item", err)
	}
	return &item, nil
}

// ListKnowledge returns every knowledge node.
func (db *GormDB) ListKnowledge(ctx context.Context) ([]models.Knowledge, error) {
	var ks []models.Knowledge
	if err := db.db.WithContext(ctx).Order("name ASC").Find(&ks).Error; err != nil {
		return nil, storeErr("list knowledge", err)
	}
	return ks, nil
}

// ListItems returns every item node.
func (db *GormDB) ListItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := db.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, storeErr("list items", err)
	}
	return items, nil
}

// --- edge reads ---

// GetEdgesFrom returns all edges leaving a node, optionally filtered by type.
func (db *GormDB) GetEdgesFrom(ctx context.Context, fromID string, edgeTypes ...models.EdgeType) ([]models.Edge, error) {
	q := db.db.WithContext(ctx).Where("from_id = ?", fromID)
	if len(edgeTypes) > 0 {
		q = q.Where("edge_type IN ?", edgeTypes)
	}
	var edges []models.Edge
	if err := q.Order("created_at ASC").Find(&edges).Error; err != nil {
		return nil, storeErr("get edges from", err)
	}
	return edges, nil
}

// GetEdgesTo returns all edges arriving at a node, optionally filtered by type.
func (db *GormDB) GetEdgesTo(ctx context.Context, toID string, edgeTypes ...models.EdgeType) ([]models.Edge, error) {
	q := db.db.WithContext(ctx).Where("to_id = ?", toID)
	if len(edgeTypes) > 0 {
		q = q.Where("edge_type IN ?", edgeTypes)
	}
	var edges []models.Edge
	if err := q.Order("created_at ASC").Find(&edges).Error; err != nil {
		return nil, storeErr("get edges to", err)
	}
	return edges, nil
}

// Path is one distinct way to obtain a resource: the acquisition edge plus
// its source node.
type Path struct {
	SourceID   string          `json:"source_id"`
	EdgeType   models.EdgeType `json:"edge_type"`
	Properties models.JSONMap  `json:"properties,omitempty"`
}

// GetAcquisitionPaths returns every distinct acquisition edge pointing at a
// Knowledge or Item node.
func (db *GormDB) GetAcquisitionPaths(ctx context.Context, resourceID string) ([]Path, error) {
	edges, err := db.GetEdgesTo(ctx, resourceID, models.AcquisitionEdgeTypes()...)
	if err != nil {
		return nil, err
	}

	paths := make([]Path, len(edges))
	for i, e := range edges {
		paths[i] = Path{SourceID: e.FromID, EdgeType: e.EdgeType, Properties: e.Properties}
	}
	return paths, nil
}

// SceneAssignments describes what a scene contributes: the objectives it
// advances and the resources it provides.
type SceneAssignments struct {
	SceneID    string        `json:"scene_id"`
	Advances   []models.Edge `json:"advances"`
	Provides   []models.Edge `json:"provides"`
	Encounters []string      `json:"encounters"`
}

// GetSceneAssignments returns the objectives a scene advances and the
// resources it (or its encounters) provides.
func (db *GormDB) GetSceneAssignments(ctx context.Context, sceneID string) (*SceneAssignments, error) {
	scene, err := db.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}

	sourceIDs := []string{sceneID}
	encounterIDs := make([]string, 0, len(scene.Encounters))
	for _, enc := range scene.Encounters {
		sourceIDs = append(sourceIDs, enc.ID)
		encounterIDs = append(encounterIDs, enc.ID)
	}

	var advances []models.Edge
	err = db.db.WithContext(ctx).
		Where("from_id IN ? AND edge_type = ?", sourceIDs, models.EdgeAdvances).
		Find(&advances).Error
	if err != nil {
		return nil, storeErr("get scene assignments", err)
	}

	acquisition := models.AcquisitionEdgeTypes()
	provideTypes := append([]models.EdgeType{models.EdgeProvides}, acquisition...)
	var provides []models.Edge
	err = db.db.WithContext(ctx).
		Where("from_id IN ? AND edge_type IN ?", sourceIDs, provideTypes).
		Find(&provides).Error
	if err != nil {
		return nil, storeErr("get scene assignments", err)
	}

	return &SceneAssignments{
		SceneID:    sceneID,
		Advances:   advances,
		Provides:   provides,
		Encounters: encounterIDs,
	}, nil
}

// DeleteCampaign cascade-deletes a campaign objective, its quests, children,
// scenes, encounters, and all edges touching any of those nodes. Individual
// objectives are never deleted outside this path.
func (db *GormDB) DeleteCampaign(ctx context.Context, campaignID string) error {
	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := db.hierarchyTx(tx, campaignID)
		if err != nil {
			return err
		}

		ids := []string{campaign.ID}
		for _, q := range campaign.Quests {
			ids = append(ids, q.ID)
			for _, c := range q.Children {
				ids = append(ids, c.ID)
			}
		}
		for _, s := range campaign.Scenes {
			ids = append(ids, s.ID)
			for _, e := range s.Encounters {
				ids = append(ids, e.ID)
			}
		}

		if err := tx.Where("from_id IN ? OR to_id IN ?", ids, ids).Delete(&models.Edge{}).Error; err != nil {
			return err
		}
		if err := tx.Where("objective_id IN ?", ids).Delete(&models.PlayerProgress{}).Error; err != nil {
			return err
		}
		// Quests, children, scenes, and encounters follow via FK cascade.
		return tx.Delete(&models.CampaignObjective{}, "id = ?", campaignID).Error
	})
	return storeErr("delete campaign", err)
}

func (db *GormDB) hierarchyTx(tx *gorm.DB, campaignID string) (*models.CampaignObjective, error) {
	var campaign models.CampaignObjective
	err := tx.
		Preload("Quests.Children").
		Preload("Scenes.Encounters").
		First(&campaign, "id = ?", campaignID).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// --- property extraction helpers ---

func propString(p models.JSONMap, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func propIntDefault(p models.JSONMap, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func propBoolDefault(p models.JSONMap, key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func propStrings(p models.JSONMap, key string) models.StringList {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make(models.StringList, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return models.StringList{}
	}
}

func propMap(p models.JSONMap, key string) models.JSONMap {
	switch v := p[key].(type) {
	case models.JSONMap:
		return v
	case map[string]any:
		return v
	default:
		return models.JSONMap{}
	}
}
