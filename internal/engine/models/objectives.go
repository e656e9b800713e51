// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"
)

// ObjectiveStatus represents the lifecycle state of an objective.
// Completed is terminal: there is no back-transition outside an explicit
// administrative reset.
type ObjectiveStatus int

const (
	StatusNotStarted ObjectiveStatus = iota
	StatusInProgress
	StatusCompleted
)

// String returns the string representation of ObjectiveStatus
func (s ObjectiveStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// StatusForPercentage derives the status implied by a stored percentage.
// The Completed transition is never derived from percentage alone — callers
// decide completion through the type-specific predicates and pass the result
// explicitly.
func StatusForPercentage(pct float64, completed bool) ObjectiveStatus {
	switch {
	case completed:
		return StatusCompleted
	case pct > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// ChildObjectiveType is the closed set of scene-level objective variants.
// Dispatch on this tag goes through the cascade predicate registry, never
// through free-form strings.
type ChildObjectiveType string

const (
	ChildDiscovery    ChildObjectiveType = "discovery"
	ChildChallenge    ChildObjectiveType = "challenge"
	ChildEvent        ChildObjectiveType = "event"
	ChildConversation ChildObjectiveType = "conversation"
)

// IsValid returns true if the type is a member of the closed set.
func (t ChildObjectiveType) IsValid() bool {
	switch t {
	case ChildDiscovery, ChildChallenge, ChildEvent, ChildConversation:
		return true
	default:
		return false
	}
}

// CampaignObjective is the root of an objective hierarchy. It owns
// QuestObjectives via DECOMPOSES_TO edges and becomes eligible for
// completion only when at least MinimumQuestsRequired of them are Completed.
type CampaignObjective struct {
	ID                    string          `gorm:"primaryKey;type:text" json:"id"`
	Description           string          `gorm:"not null;type:text" json:"description"`
	Status                ObjectiveStatus `gorm:"not null;default:0" json:"status"`
	CompletionPercentage  float64         `gorm:"not null;default:0" json:"completion_percentage"`
	CompletionCriteria    StringList      `gorm:"type:text" json:"completion_criteria"`
	MinimumQuestsRequired int             `gorm:"not null" json:"minimum_quests_required"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Quests []QuestObjective `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"quests,omitempty"`
	Scenes []Scene          `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"scenes,omitempty"`
}

// TableName returns the table name for CampaignObjective
func (CampaignObjective) TableName() string {
	return "campaign_objectives"
}

// QuestObjective is a mid-tier objective. It supports exactly one parent
// campaign objective and decomposes into zero or more child objectives.
type QuestObjective struct {
	ID                   string          `gorm:"primaryKey;type:text" json:"id"`
	CampaignID           string          `gorm:"not null;type:text;index;constraint:OnDelete:CASCADE" json:"campaign_id"`
	Description          string          `gorm:"not null;type:text" json:"description"`
	QuestNumber          int             `gorm:"not null;default:0" json:"quest_number"`
	BloomLevel           int             `gorm:"not null;default:1" json:"bloom_level"` // 1-6
	SuccessCriteria      StringList      `gorm:"type:text" json:"success_criteria"`
	Status               ObjectiveStatus `gorm:"not null;default:0" json:"status"`
	CompletionPercentage float64         `gorm:"not null;default:0" json:"completion_percentage"`
	IsRequired           bool            `gorm:"not null" json:"is_required"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Children []ChildObjective `gorm:"foreignKey:QuestID;constraint:OnDelete:CASCADE" json:"children,omitempty"`
}

// TableName returns the table name for QuestObjective
func (QuestObjective) TableName() string {
	return "quest_objectives"
}

// ChildObjective is a scene-level objective variant. Requirements carries the
// type-specific completion inputs:
//   - discovery/event: none (external encounter signal only)
//   - challenge: "rubric" name; completion needs tier >= configured minimum
//   - conversation: "rubric" name; completion needs score >= configured minimum
//
// Requirements may also carry backing conditions referenced by quest
// success_criteria: "knowledge_id"+"min_level", "item_id"+"min_count",
// "scene_id" (location visited).
type ChildObjective struct {
	ID                   string             `gorm:"primaryKey;type:text" json:"id"`
	QuestID              string             `gorm:"not null;type:text;index;constraint:OnDelete:CASCADE" json:"quest_id"`
	Type                 ChildObjectiveType `gorm:"not null;type:text" json:"type"`
	Description          string             `gorm:"type:text" json:"description"`
	Required             bool               `gorm:"not null" json:"required"`
	Status               ObjectiveStatus    `gorm:"not null;default:0" json:"status"`
	CompletionPercentage float64            `gorm:"not null;default:0" json:"completion_percentage"`
	Requirements         JSONMap            `gorm:"type:text" json:"requirements"`
	RubricName           string             `gorm:"type:text" json:"rubric_name"`
	CreatedAt            time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for ChildObjective
func (ChildObjective) TableName() string {
	return "child_objectives"
}

// Scene groups encounters and is the unit that advances objectives and
// provides resources through typed acquisition edges.
type Scene struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	CampaignID  string    `gorm:"not null;type:text;index;constraint:OnDelete:CASCADE" json:"campaign_id"`
	Title       string    `gorm:"not null;type:text" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Encounters []Encounter `gorm:"foreignKey:SceneID;constraint:OnDelete:CASCADE" json:"encounters,omitempty"`
}

// TableName returns the table name for Scene
func (Scene) TableName() string {
	return "scenes"
}

// EncounterKind classifies an encounter within a scene.
type EncounterKind string

const (
	EncounterNPC       EncounterKind = "npc"
	EncounterDiscovery EncounterKind = "discovery"
	EncounterChallenge EncounterKind = "challenge"
	EncounterEvent     EncounterKind = "event"
)

// IsValid returns true if the kind is a member of the closed set.
func (k EncounterKind) IsValid() bool {
	switch k {
	case EncounterNPC, EncounterDiscovery, EncounterChallenge, EncounterEvent:
		return true
	default:
		return false
	}
}

// Encounter is a single interactable within a scene. Acquisition edges
// originate from encounters.
type Encounter struct {
	ID        string        `gorm:"primaryKey;type:text" json:"id"`
	SceneID   string        `gorm:"not null;type:text;index;constraint:OnDelete:CASCADE" json:"scene_id"`
	Kind      EncounterKind `gorm:"not null;type:text" json:"kind"`
	Name      string        `gorm:"not null;type:text" json:"name"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Encounter
func (Encounter) TableName() string {
	return "encounters"
}
