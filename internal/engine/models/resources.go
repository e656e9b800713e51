// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// Knowledge is an acquirable abstract resource with partial-mastery levels.
// MaxLevel bounds per-player mastery (1-4).
type Knowledge struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `gorm:"not null;type:text;index" json:"name"`
	Domain    string    `gorm:"type:text;index" json:"domain"`
	MaxLevel  int       `gorm:"not null;default:1" json:"max_level"` // 1-4
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Knowledge
func (Knowledge) TableName() string {
	return "knowledge"
}

// Item is an acquirable concrete resource.
type Item struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `gorm:"not null;type:text;index" json:"name"`
	Category  string    `gorm:"type:text;index" json:"category"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Item
func (Item) TableName() string {
	return "items"
}

// RedundancyInfo is computed by the validator, never stored on the node:
// redundancy_paths counts distinct acquisition edges.
type RedundancyInfo struct {
	ResourceID        string `json:"resource_id"`
	ResourceName      string `json:"resource_name"`
	RedundancyPaths   int    `json:"redundancy_paths"`
	HasRedundancy     bool   `json:"has_redundancy"`
	SinglePathWarning bool   `json:"single_path_warning"`
}

// KnowledgeMastery tracks a player's partial-mastery level for one Knowledge
// node. Level only ever increases and clamps at the node's MaxLevel.
type KnowledgeMastery struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	PlayerID    string    `gorm:"not null;type:text;index;uniqueIndex:idx_player_knowledge" json:"player_id"`
	KnowledgeID string    `gorm:"not null;type:text;uniqueIndex:idx_player_knowledge" json:"knowledge_id"`
	Level       int       `gorm:"not null;default:1" json:"level"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for KnowledgeMastery
func (KnowledgeMastery) TableName() string {
	return "knowledge_mastery"
}

// ItemGrant tracks how many of one Item a player holds.
type ItemGrant struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	PlayerID  string    `gorm:"not null;type:text;index;uniqueIndex:idx_player_item" json:"player_id"`
	ItemID    string    `gorm:"not null;type:text;uniqueIndex:idx_player_item" json:"item_id"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for ItemGrant
func (ItemGrant) TableName() string {
	return "item_grants"
}

// LocationVisit records that a player has entered a scene. Backs the
// "location visited" success criterion.
type LocationVisit struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	PlayerID  string    `gorm:"not null;type:text;index;uniqueIndex:idx_player_scene" json:"player_id"`
	SceneID   string    `gorm:"not null;type:text;uniqueIndex:idx_player_scene" json:"scene_id"`
	VisitedAt time.Time `gorm:"autoCreateTime" json:"visited_at"`
}

// TableName returns the table name for LocationVisit
func (LocationVisit) TableName() string {
	return "location_visits"
}
