// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package oracle

import (
	"context"
	"sync"
)

// StaticScorer is a deterministic Scorer for tests and local development.
// It returns fixed scores or a fixed error and counts calls.
type StaticScorer struct {
	mu     sync.Mutex
	Scores map[string]float64
	Err    error
	calls  int
}

// Score returns the configured scores or error.
func (s *StaticScorer) Score(_ context.Context, _ ScoreRequest) (map[string]float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	return s.Scores, nil
}

// Calls returns how many times Score was invoked.
func (s *StaticScorer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
