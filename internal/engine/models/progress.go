// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// ObjectiveKind names the hierarchy level a progress record applies to.
type ObjectiveKind string

const (
	KindCampaign ObjectiveKind = "campaign"
	KindQuest    ObjectiveKind = "quest"
	KindChild    ObjectiveKind = "child"
)

// IsValid returns true if the kind is a member of the closed set.
func (k ObjectiveKind) IsValid() bool {
	switch k {
	case KindCampaign, KindQuest, KindChild:
		return true
	default:
		return false
	}
}

// PlayerProgress is the per-player progress record for one objective.
// Percentage is monotonic: the store clamps every write to
// max(existing, incoming). Metadata carries cascade bookkeeping such as the
// "provisional" flag set when an evaluation fell back to the neutral result.
type PlayerProgress struct {
	ID          string          `gorm:"primaryKey;type:text" json:"id"`
	PlayerID    string          `gorm:"not null;type:text;index;uniqueIndex:idx_player_objective" json:"player_id"`
	ObjectiveID string          `gorm:"not null;type:text;index;uniqueIndex:idx_player_objective" json:"objective_id"`
	Kind        ObjectiveKind   `gorm:"not null;type:text" json:"kind"`
	Percentage  float64         `gorm:"not null;default:0" json:"percentage"`
	Status      ObjectiveStatus `gorm:"not null;default:0" json:"status"`
	Metadata    JSONMap         `gorm:"type:text" json:"metadata"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for PlayerProgress
func (PlayerProgress) TableName() string {
	return "player_progress"
}

// Dimension is one of the seven fixed progression axes.
type Dimension string

const (
	DimensionPhysical      Dimension = "physical"
	DimensionEmotional     Dimension = "emotional"
	DimensionIntellectual  Dimension = "intellectual"
	DimensionSocial        Dimension = "social"
	DimensionSpiritual     Dimension = "spiritual"
	DimensionVocational    Dimension = "vocational"
	DimensionEnvironmental Dimension = "environmental"
)

// AllDimensions returns the seven axes in canonical order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimensionPhysical,
		DimensionEmotional,
		DimensionIntellectual,
		DimensionSocial,
		DimensionSpiritual,
		DimensionVocational,
		DimensionEnvironmental,
	}
}

// IsValid returns true if the dimension is one of the seven axes.
func (d Dimension) IsValid() bool {
	switch d {
	case DimensionPhysical, DimensionEmotional, DimensionIntellectual,
		DimensionSocial, DimensionSpiritual, DimensionVocational, DimensionEnvironmental:
		return true
	default:
		return false
	}
}

// bloomLevelNames maps maturity levels 1-6 onto the Bloom taxonomy.
var bloomLevelNames = [6]string{
	"Remember", "Understand", "Apply", "Analyze", "Evaluate", "Create",
}

// BloomLevelName returns the taxonomy name for a maturity level (1-6).
// Out-of-range levels return "unknown".
func BloomLevelName(level int) string {
	if level < 1 || level > len(bloomLevelNames) {
		return "unknown"
	}
	return bloomLevelNames[level-1]
}

// MaxMaturityLevel is the top of the six-level taxonomy.
const MaxMaturityLevel = 6

// DimensionState holds one player's maturity on one axis.
type DimensionState struct {
	ID               string    `gorm:"primaryKey;type:text" json:"id"`
	PlayerID         string    `gorm:"not null;type:text;index;uniqueIndex:idx_player_dimension" json:"player_id"`
	Dimension        Dimension `gorm:"not null;type:text;uniqueIndex:idx_player_dimension" json:"dimension"`
	Level            int       `gorm:"not null;default:1" json:"level"` // 1-6
	ExperiencePoints int       `gorm:"not null;default:0" json:"experience_points"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for DimensionState
func (DimensionState) TableName() string {
	return "dimension_states"
}
