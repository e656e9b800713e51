// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// EdgeType is the persisted relationship vocabulary. Consumers may query by
// any of these; the engine itself only writes a subset.
type EdgeType string

const (
	EdgeHasObjective      EdgeType = "HAS_OBJECTIVE"
	EdgeDecomposesTo      EdgeType = "DECOMPOSES_TO"
	EdgeSupports          EdgeType = "SUPPORTS"
	EdgeAchieves          EdgeType = "ACHIEVES"
	EdgeAdvances          EdgeType = "ADVANCES"
	EdgeProvides          EdgeType = "PROVIDES"
	EdgeRequiresKnowledge EdgeType = "REQUIRES_KNOWLEDGE"
	EdgeRequiresItem      EdgeType = "REQUIRES_ITEM"
	EdgeTeaches           EdgeType = "TEACHES"
	EdgeGives             EdgeType = "GIVES"
	EdgeReveals           EdgeType = "REVEALS"
	EdgeContains          EdgeType = "CONTAINS"
	EdgeRewards           EdgeType = "REWARDS"
	EdgeGrants            EdgeType = "GRANTS"
	EdgeDevelops          EdgeType = "DEVELOPS"
	EdgeProgress          EdgeType = "PROGRESS"
)

// allEdgeTypes backs IsValid. Order is not significant.
var allEdgeTypes = map[EdgeType]struct{}{
	EdgeHasObjective: {}, EdgeDecomposesTo: {}, EdgeSupports: {},
	EdgeAchieves: {}, EdgeAdvances: {}, EdgeProvides: {},
	EdgeRequiresKnowledge: {}, EdgeRequiresItem: {}, EdgeTeaches: {},
	EdgeGives: {}, EdgeReveals: {}, EdgeContains: {},
	EdgeRewards: {}, EdgeGrants: {}, EdgeDevelops: {}, EdgeProgress: {},
}

// IsValid returns true if the edge type belongs to the persisted vocabulary.
func (t EdgeType) IsValid() bool {
	_, ok := allEdgeTypes[t]
	return ok
}

// AcquisitionEdgeTypes lists the edge types counted as redundancy paths for
// Knowledge/Item resources.
func AcquisitionEdgeTypes() []EdgeType {
	return []EdgeType{EdgeTeaches, EdgeGives, EdgeReveals, EdgeContains, EdgeRewards, EdgeGrants}
}

// IsAcquisition returns true for the teaches/gives/reveals/contains/rewards/grants subset.
func (t EdgeType) IsAcquisition() bool {
	switch t {
	case EdgeTeaches, EdgeGives, EdgeReveals, EdgeContains, EdgeRewards, EdgeGrants:
		return true
	default:
		return false
	}
}

// Edge is a typed directed relationship between two nodes. The relational
// encoding of the objective graph: nodes live in their kind tables, adjacency
// lives here. (from_id, to_id, edge_type) is unique so re-applying an edge
// write merges properties instead of creating duplicates.
type Edge struct {
	ID         string   `gorm:"primaryKey;type:text" json:"id"`
	FromID     string   `gorm:"not null;type:text;index;uniqueIndex:idx_edge_triple" json:"from_id"`
	ToID       string   `gorm:"not null;type:text;index;uniqueIndex:idx_edge_triple" json:"to_id"`
	EdgeType   EdgeType `gorm:"not null;type:text;index;uniqueIndex:idx_edge_triple" json:"edge_type"`
	Properties JSONMap  `gorm:"type:text" json:"properties"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Edge
func (Edge) TableName() string {
	return "edges"
}
