// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/rubric"
)

func newClient(endpoint string) *HTTPClient {
	return NewHTTPClient(&config.OracleConfig{
		Endpoint:       endpoint,
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
}

func scoreRequest() ScoreRequest {
	return ScoreRequest{
		RubricName: "combat",
		Criteria: []rubric.Criterion{
			{Name: "accuracy", Weight: 0.6},
			{Name: "depth", Weight: 0.4},
		},
		Interaction: models.JSONMap{"transcript": "the player parried and countered"},
	}
}

func TestScoreSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ScoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "combat", req.RubricName)

		json.NewEncoder(w).Encode(map[string]any{
			"scores": map[string]float64{"accuracy": 3.5, "depth": 3.0},
		})
	}))
	defer srv.Close()

	scores, err := newClient(srv.URL).Score(context.Background(), scoreRequest())
	require.NoError(t, err)
	assert.Equal(t, 3.5, scores["accuracy"])
	assert.Equal(t, 3.0, scores["depth"])
}

func TestScoreRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"scores": map[string]float64{"accuracy": 2.0, "depth": 2.0},
		})
	}))
	defer srv.Close()

	scores, err := newClient(srv.URL).Score(context.Background(), scoreRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2.0, scores["accuracy"])
}

func TestScoreExhaustedRetriesAreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Score(context.Background(), scoreRequest())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestScoreOracleErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "rubric not recognized"})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Score(context.Background(), scoreRequest())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestScoreEmptyScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"scores": map[string]float64{}})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Score(context.Background(), scoreRequest())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestScoreRespectsContextCancellation(t *testing.T) {
	// The handler stalls until released so the caller's deadline always
	// fires first. Release happens before Close in cleanup, otherwise Close
	// would wait on the stalled handler.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newClient(srv.URL).Score(ctx, scoreRequest())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
