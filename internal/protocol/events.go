// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the events the engine broadcasts to session
// listeners. Delivery is at-least-once: consumers must treat the carried
// percentage as authoritative state (idempotent overwrite), never as an
// increment, since duplicates and reordering are possible.
package protocol

import (
	"time"

	"github.com/questweave/questweave/internal/common"
	"github.com/questweave/questweave/internal/engine/models"
)

// Re-export common types so event producers only import protocol.
type Metadata = common.Metadata

// Event is re-exported from common.
type Event = common.Event

// CurrentProtocolVersion is re-exported from common.
const CurrentProtocolVersion = common.CurrentProtocolVersion

// EventKind names an outbound event type on the wire.
type EventKind string

const (
	KindObjectiveProgress         EventKind = "objective_progress"
	KindCampaignObjectiveProgress EventKind = "campaign_objective_progress"
	KindObjectiveCompleted        EventKind = "objective_completed"
	KindValidationFailed          EventKind = "validation_failed"
)

// GetIdempotencyKey extracts the idempotency key from any event
func GetIdempotencyKey(event Event) string {
	return event.GetMetadata().IdempotencyKey
}

// ObjectiveProgressEvent is emitted when a child or quest objective's stored
// percentage changes.
type ObjectiveProgressEvent struct {
	Metadata
	Kind          EventKind            `json:"kind"`
	ObjectiveID   string               `json:"objective_id"`
	ObjectiveKind models.ObjectiveKind `json:"objective_kind"`
	Description   string               `json:"description"`
	Percentage    float64              `json:"percentage"`
	Status        string               `json:"status"`
	Provisional   bool                 `json:"provisional,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

func (e ObjectiveProgressEvent) GetMetadata() Metadata {
	return e.Metadata
}

// CampaignObjectiveProgressEvent is emitted when a campaign objective's
// stored percentage changes.
type CampaignObjectiveProgressEvent struct {
	Metadata
	Kind        EventKind `json:"kind"`
	ObjectiveID string    `json:"objective_id"`
	Description string    `json:"description"`
	Percentage  float64   `json:"percentage"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e CampaignObjectiveProgressEvent) GetMetadata() Metadata {
	return e.Metadata
}

// ObjectiveCompletedEvent is emitted exactly when an objective transitions
// to Completed.
type ObjectiveCompletedEvent struct {
	Metadata
	Kind          EventKind            `json:"kind"`
	ObjectiveID   string               `json:"objective_id"`
	ObjectiveKind models.ObjectiveKind `json:"objective_kind"`
	Description   string               `json:"description"`
	Percentage    float64              `json:"percentage"`
	Timestamp     time.Time            `json:"timestamp"`
}

func (e ObjectiveCompletedEvent) GetMetadata() Metadata {
	return e.Metadata
}

// ValidationIssue is one failed check in a validation report: descriptive,
// with a concrete recommendation, never a stack trace.
type ValidationIssue struct {
	Check          string `json:"check"`
	SubjectID      string `json:"subject_id"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

// ValidationFailedEvent is emitted when a campaign validation run reports
// errors.
type ValidationFailedEvent struct {
	Metadata
	Kind      EventKind         `json:"kind"`
	Errors    []ValidationIssue `json:"errors"`
	Warnings  []ValidationIssue `json:"warnings,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func (e ValidationFailedEvent) GetMetadata() Metadata {
	return e.Metadata
}
