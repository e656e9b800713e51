// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package oracle defines the typed contract for the external scoring oracle
// ("rubric judge") and its HTTP implementation. The oracle is the only call
// in the engine with meaningful latency; it is always invoked with a bounded
// timeout and a small retry budget, and callers must be prepared for
// ErrEvaluationUnavailable.
package oracle

import (
	"context"
	"errors"

	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/rubric"
)

// ErrEvaluationUnavailable is returned when the oracle cannot produce a
// score within the configured timeout and retry budget. Callers fall back to
// a neutral evaluation and flag the result provisional.
var ErrEvaluationUnavailable = errors.New("evaluation unavailable")

// IsUnavailable reports whether err means the oracle could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrEvaluationUnavailable)
}

// ScoreRequest carries everything the oracle needs to judge one interaction.
type ScoreRequest struct {
	RubricName    string             `json:"rubric_name"`
	Criteria      []rubric.Criterion `json:"criteria"`
	Interaction   models.JSONMap     `json:"interaction"`
	PlayerContext models.JSONMap     `json:"player_context"`
}

// Scorer is the scoring-oracle contract: free-form interaction data in,
// per-criterion scores out.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (map[string]float64, error)
}
