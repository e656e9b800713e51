// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package rubric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweave/questweave/internal/engine/models"
)

func testCriteria() []Criterion {
	return []Criterion{
		{Name: "accuracy", Weight: 0.5, BloomTarget: 2},
		{Name: "reasoning", Weight: 0.3, BloomTarget: 4},
		{Name: "creativity", Weight: 0.2, BloomTarget: 6},
	}
}

func TestNewRubricValidation(t *testing.T) {
	tests := []struct {
		name     string
		criteria []Criterion
		wantErr  string
	}{
		{
			name:     "valid",
			criteria: testCriteria(),
		},
		{
			name:    "empty criteria",
			wantErr: "at least one criterion",
		},
		{
			name: "weights do not sum to one",
			criteria: []Criterion{
				{Name: "a", Weight: 0.5},
				{Name: "b", Weight: 0.3},
			},
			wantErr: "weights sum to",
		},
		{
			name: "weight sum within tolerance",
			criteria: []Criterion{
				{Name: "a", Weight: 0.5},
				{Name: "b", Weight: 0.5 + 1e-9},
			},
		},
		{
			name: "duplicate criterion",
			criteria: []Criterion{
				{Name: "a", Weight: 0.5},
				{Name: "a", Weight: 0.5},
			},
			wantErr: "duplicate criterion",
		},
		{
			name: "negative weight",
			criteria: []Criterion{
				{Name: "a", Weight: -0.5},
				{Name: "b", Weight: 1.5},
			},
			wantErr: "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRubric("test", tt.criteria)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEvaluateWeightedSum(t *testing.T) {
	r, err := NewRubric("test", testCriteria())
	require.NoError(t, err)

	result, err := r.Evaluate(map[string]float64{
		"accuracy":   4.0,
		"reasoning":  3.0,
		"creativity": 2.0,
	})
	require.NoError(t, err)

	// 0.5*4 + 0.3*3 + 0.2*2 = 3.3
	assert.InDelta(t, 3.3, result.OverallScore, 1e-9)
	assert.Equal(t, 3, result.Tier)
	assert.Equal(t, "Good", result.TierName)
	assert.False(t, result.Provisional)
}

func TestEvaluateScoreBounds(t *testing.T) {
	// For weights summing to 1.0 and scores in [1,4] the overall score must
	// stay within [1,4].
	r, err := NewRubric("test", testCriteria())
	require.NoError(t, err)

	lo, err := r.Evaluate(map[string]float64{"accuracy": 1, "reasoning": 1, "creativity": 1})
	require.NoError(t, err)
	hi, err := r.Evaluate(map[string]float64{"accuracy": 4, "reasoning": 4, "creativity": 4})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, lo.OverallScore, 1.0)
	assert.LessOrEqual(t, hi.OverallScore, 4.0)
	assert.Equal(t, 1, lo.Tier)
	assert.Equal(t, 4, hi.Tier)
}

func TestEvaluateMissingCriterion(t *testing.T) {
	r, err := NewRubric("test", testCriteria())
	require.NoError(t, err)

	_, err = r.Evaluate(map[string]float64{"accuracy": 3.0, "reasoning": 3.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteEvaluation)
	assert.Contains(t, err.Error(), "creativity")
}

func TestEvaluateOutOfRangeScore(t *testing.T) {
	r, err := NewRubric("test", testCriteria())
	require.NoError(t, err)

	_, err = r.Evaluate(map[string]float64{"accuracy": 5.0, "reasoning": 3.0, "creativity": 3.0})
	assert.ErrorIs(t, err, ErrScoreOutOfRange)
}

func TestConfigurableTierBands(t *testing.T) {
	bands := []TierBand{
		{UpTo: 2.5, Tier: 1, Name: "Novice"},
		{UpTo: math.Inf(1), Tier: 2, Name: "Master"},
	}
	r, err := NewRubric("custom", testCriteria(), WithTierBands(bands))
	require.NoError(t, err)

	result, err := r.Evaluate(map[string]float64{"accuracy": 2, "reasoning": 2, "creativity": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tier)
	assert.Equal(t, "Novice", result.TierName)

	result, err = r.Evaluate(map[string]float64{"accuracy": 4, "reasoning": 4, "creativity": 4})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Tier)
	assert.Equal(t, "Master", result.TierName)
}

func TestRewardLookupByTier(t *testing.T) {
	rewards := map[int]Reward{
		3: {
			KnowledgeLevels: map[string]int{"kn-herbs": 2},
			Items:           map[string]int{"it-salve": 1},
			DimensionXP:     map[models.Dimension]int{models.DimensionIntellectual: 40},
		},
	}
	r, err := NewRubric("test", testCriteria(), WithRewards(rewards))
	require.NoError(t, err)

	result, err := r.Evaluate(map[string]float64{"accuracy": 4, "reasoning": 3, "creativity": 2})
	require.NoError(t, err)
	require.Equal(t, 3, result.Tier)
	assert.Equal(t, 2, result.Rewards.KnowledgeLevels["kn-herbs"])
	assert.Equal(t, 1, result.Rewards.Items["it-salve"])
	assert.Equal(t, 40, result.Rewards.DimensionXP[models.DimensionIntellectual])

	// Tiers without a configured reward grant nothing.
	low, err := r.Evaluate(map[string]float64{"accuracy": 1, "reasoning": 1, "creativity": 1})
	require.NoError(t, err)
	assert.Empty(t, low.Rewards.KnowledgeLevels)
}

func TestNeutralResult(t *testing.T) {
	r, err := NewRubric("test", testCriteria())
	require.NoError(t, err)

	neutral := r.NeutralResult()
	assert.Equal(t, 1.0, neutral.OverallScore)
	assert.Equal(t, 1, neutral.Tier)
	assert.True(t, neutral.Provisional)
	assert.Empty(t, neutral.Rewards.DimensionXP)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	r, err := NewRubric("combat", testCriteria())
	require.NoError(t, err)
	reg.Register(r)

	got, err := reg.Get("combat")
	require.NoError(t, err)
	assert.Equal(t, "combat", got.Name())

	_, err = reg.Get("missing")
	assert.Error(t, err)
	assert.Contains(t, reg.Names(), "combat")
}
