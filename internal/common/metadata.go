// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package common provides shared types used across multiple packages.
package common

// Metadata contains common fields for all messages crossing the engine
// boundary: progress events pushed to session listeners and commands
// arriving from the game loop.
type Metadata struct {
	// EventID uniquely identifies a single emission. Consumers use it to
	// deduplicate at-least-once delivery.
	EventID string `json:"event_id,omitempty"`

	// CampaignID scopes the message to a campaign. Optional.
	CampaignID string `json:"campaign_id,omitempty"`

	// PlayerID scopes the message to a player session. Optional.
	PlayerID string `json:"player_id,omitempty"`

	// IdempotencyKey is used for event deduplication when a cascade step
	// is retried. Events without this key are always processed.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Version indicates the protocol version for backward compatibility.
	// Format: "v{major}.{minor}.{patch}" (e.g., "v1.0.0")
	Version string `json:"version"`
}

// CurrentProtocolVersion defines the current version of the protocol.
// This should be updated when making breaking changes to the protocol.
const CurrentProtocolVersion = "v1.0.0"

// Event represents events the engine broadcasts to session listeners.
// Any type implementing this interface can be sent through the event channel.
type Event interface {
	GetMetadata() Metadata
}
