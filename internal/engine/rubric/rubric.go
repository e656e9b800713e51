// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rubric implements the rubric evaluation engine: pure scoring of
// weighted criteria onto an overall score, a performance tier, and a reward
// payload. No I/O happens here; construction validates everything that would
// otherwise fail at runtime.
package rubric

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/questweave/questweave/internal/engine/models"
)

// weightTolerance is the permitted deviation of the criterion weight sum
// from 1.0.
const weightTolerance = 1e-6

// Default score range for criterion scores.
const (
	DefaultScoreFloor   = 1.0
	DefaultScoreCeiling = 4.0
)

// ErrIncompleteEvaluation is returned when a criterion score is missing.
// Evaluation never silently defaults a missing criterion to zero.
var ErrIncompleteEvaluation = errors.New("incomplete evaluation")

// ErrScoreOutOfRange is returned when a criterion score falls outside the
// rubric's configured range.
var ErrScoreOutOfRange = errors.New("criterion score out of range")

// Criterion is one weighted evaluation axis.
type Criterion struct {
	Name        string  `json:"name" yaml:"name"`
	Weight      float64 `json:"weight" yaml:"weight"`
	BloomTarget int     `json:"bloom_target" yaml:"bloom_target"` // 1-6
}

// TierBand maps a score threshold onto a performance tier. A score s earns
// the band's tier when s < UpTo; the final band has UpTo = +Inf.
type TierBand struct {
	UpTo float64 `json:"up_to" yaml:"up_to"`
	Tier int     `json:"tier" yaml:"tier"`
	Name string  `json:"name" yaml:"name"`
}

// Reward is the payload granted for reaching a tier. KnowledgeLevels and
// Items map resource IDs to the mastery level and count granted.
// DimensionXP grants experience on the named progression axes.
type Reward struct {
	KnowledgeLevels map[string]int           `json:"knowledge_levels,omitempty" yaml:"knowledge_levels,omitempty"`
	Items           map[string]int           `json:"items,omitempty" yaml:"items,omitempty"`
	DimensionXP     map[models.Dimension]int `json:"dimension_xp,omitempty" yaml:"dimension_xp,omitempty"`
}

// Rubric is a validated, immutable scoring definition.
type Rubric struct {
	name     string
	criteria []Criterion
	bands    []TierBand
	rewards  map[int]Reward // tier → reward
	floor    float64
	ceiling  float64
}

// Option configures optional rubric behavior at construction.
type Option func(*Rubric)

// WithTierBands replaces the default tier bands. Bands must be sorted by
// UpTo; tiers must be positive.
func WithTierBands(bands []TierBand) Option {
	return func(r *Rubric) {
		r.bands = bands
	}
}

// WithRewards sets the tier → reward table.
func WithRewards(rewards map[int]Reward) Option {
	return func(r *Rubric) {
		r.rewards = rewards
	}
}

// WithScoreRange overrides the per-criterion score range.
func WithScoreRange(floor, ceiling float64) Option {
	return func(r *Rubric) {
		r.floor = floor
		r.ceiling = ceiling
	}
}

// defaultBands mirror the standard four tiers. Boundaries are configurable
// per rubric, not engine constants.
func defaultBands() []TierBand {
	return []TierBand{
		{UpTo: 2.0, Tier: 1, Name: "Poor"},
		{UpTo: 3.0, Tier: 2, Name: "Fair"},
		{UpTo: 3.5, Tier: 3, Name: "Good"},
		{UpTo: math.Inf(1), Tier: 4, Name: "Excellent"},
	}
}

// NewRubric builds and validates a rubric. Weight sums outside
// 1.0 ± tolerance, empty criteria, duplicate criterion names, and malformed
// tier bands are construction-time errors — they are never surfaced at
// evaluation time.
func NewRubric(name string, criteria []Criterion, opts ...Option) (*Rubric, error) {
	if name == "" {
		return nil, errors.New("rubric name is required")
	}
	if len(criteria) == 0 {
		return nil, fmt.Errorf("rubric %q: at least one criterion is required", name)
	}

	seen := make(map[string]struct{}, len(criteria))
	var sum float64
	for _, c := range criteria {
		if c.Name == "" {
			return nil, fmt.Errorf("rubric %q: criterion name is required", name)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("rubric %q: duplicate criterion %q", name, c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Weight <= 0 {
			return nil, fmt.Errorf("rubric %q: criterion %q weight must be positive", name, c.Name)
		}
		if c.BloomTarget < 0 || c.BloomTarget > models.MaxMaturityLevel {
			return nil, fmt.Errorf("rubric %q: criterion %q bloom_target must be 0-6", name, c.Name)
		}
		sum += c.Weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return nil, fmt.Errorf("rubric %q: criterion weights sum to %v, want 1.0", name, sum)
	}

	r := &Rubric{
		name:     name,
		criteria: append([]Criterion(nil), criteria...),
		bands:    defaultBands(),
		rewards:  map[int]Reward{},
		floor:    DefaultScoreFloor,
		ceiling:  DefaultScoreCeiling,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.ceiling <= r.floor {
		return nil, fmt.Errorf("rubric %q: score ceiling must exceed floor", name)
	}
	if len(r.bands) == 0 {
		return nil, fmt.Errorf("rubric %q: at least one tier band is required", name)
	}
	if !sort.SliceIsSorted(r.bands, func(i, j int) bool { return r.bands[i].UpTo < r.bands[j].UpTo }) {
		return nil, fmt.Errorf("rubric %q: tier bands must be sorted by up_to", name)
	}
	for _, b := range r.bands {
		if b.Tier < 1 {
			return nil, fmt.Errorf("rubric %q: tier must be >= 1, got %d", name, b.Tier)
		}
	}
	if last := r.bands[len(r.bands)-1]; !math.IsInf(last.UpTo, 1) && last.UpTo < r.ceiling {
		return nil, fmt.Errorf("rubric %q: final tier band must cover the score ceiling", name)
	}

	return r, nil
}

// Name returns the rubric's name.
func (r *Rubric) Name() string { return r.name }

// Criteria returns a copy of the criterion list.
func (r *Rubric) Criteria() []Criterion {
	return append([]Criterion(nil), r.criteria...)
}

// EvaluationResult is the outcome of scoring one interaction.
type EvaluationResult struct {
	OverallScore float64 `json:"overall_score"`
	Tier         int     `json:"tier"`
	TierName     string  `json:"tier_name"`
	Rewards      Reward  `json:"rewards"`

	// Provisional marks a fallback evaluation produced when the scoring
	// oracle was unavailable. Provisional results are eligible for backfill.
	Provisional bool `json:"provisional,omitempty"`
}

// Evaluate computes the weighted overall score, tier, and rewards for a full
// set of criterion scores. A missing criterion fails with
// ErrIncompleteEvaluation; scores outside the configured range fail with
// ErrScoreOutOfRange.
func (r *Rubric) Evaluate(criterionScores map[string]float64) (EvaluationResult, error) {
	var overall float64
	for _, c := range r.criteria {
		score, ok := criterionScores[c.Name]
		if !ok {
			return EvaluationResult{}, fmt.Errorf("rubric %q: criterion %q: %w", r.name, c.Name, ErrIncompleteEvaluation)
		}
		if score < r.floor || score > r.ceiling {
			return EvaluationResult{}, fmt.Errorf("rubric %q: criterion %q score %v outside [%v, %v]: %w",
				r.name, c.Name, score, r.floor, r.ceiling, ErrScoreOutOfRange)
		}
		overall += c.Weight * score
	}

	tier, tierName := r.tierFor(overall)
	return EvaluationResult{
		OverallScore: overall,
		Tier:         tier,
		TierName:     tierName,
		Rewards:      r.rewards[tier],
	}, nil
}

// NeutralResult is the degraded-evaluation fallback used when the scoring
// oracle is unreachable: floor score, lowest tier, no rewards, flagged
// provisional so a later backfill can re-score the interaction.
func (r *Rubric) NeutralResult() EvaluationResult {
	tier, tierName := r.tierFor(r.floor)
	return EvaluationResult{
		OverallScore: r.floor,
		Tier:         tier,
		TierName:     tierName,
		Provisional:  true,
	}
}

// tierFor maps a score onto the first band whose UpTo exceeds it.
func (r *Rubric) tierFor(score float64) (int, string) {
	for _, b := range r.bands {
		if score < b.UpTo {
			return b.Tier, b.Name
		}
	}
	last := r.bands[len(r.bands)-1]
	return last.Tier, last.Name
}
