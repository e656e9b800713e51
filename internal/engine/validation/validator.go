// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package validation implements the Redundancy & Achievability Validator: a
// read-only analysis over the objective graph that classifies resource
// acquisition paths and flags unreachable objectives. It performs no writes
// and is safe to run concurrently with gameplay.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/logger"
	"github.com/questweave/questweave/internal/protocol"
)

// Check names used in report entries.
const (
	CheckAchievability = "Achievability"
	CheckRedundancy    = "Redundancy"
)

// RedundancyTarget is the fraction of resources that should have two or more
// acquisition paths for a campaign to be considered well balanced.
const RedundancyTarget = 0.8

// Stats aggregates coverage counters for a validation run.
type Stats struct {
	ResourcesTotal       int     `json:"resources_total"`
	ResourcesRedundant   int     `json:"resources_redundant"`
	ResourcesSinglePath  int     `json:"resources_single_path"`
	ResourcesUnreachable int     `json:"resources_unreachable"`
	RedundancyPercent    float64 `json:"redundancy_percent"`
	RedundancyTargetMet  bool    `json:"redundancy_target_met"`
	ObjectivesTotal      int     `json:"objectives_total"`
	ObjectivesReachable  int     `json:"objectives_reachable"`
	ReachabilityPercent  float64 `json:"reachability_percent"`
}

// Report is the outcome of one validation run. Passed means zero errors;
// warnings do not block finalization.
type Report struct {
	CampaignID string                     `json:"campaign_id"`
	Timestamp  time.Time                  `json:"timestamp"`
	Passed     bool                       `json:"passed"`
	Errors     []protocol.ValidationIssue `json:"errors"`
	Warnings   []protocol.ValidationIssue `json:"warnings"`
	Stats      Stats                      `json:"stats"`
}

// Validator runs redundancy and achievability checks over one campaign.
type Validator struct {
	store *database.GormDB
}

// NewValidator creates a validator over the given store.
func NewValidator(store *database.GormDB) *Validator {
	return &Validator{store: store}
}

// Validate analyzes a campaign's graph: every resource any objective can
// reach must have at least one acquisition path (zero is an error, exactly
// one a warning), and every campaign/quest objective must be advanced by at
// least one scene.
func (v *Validator) Validate(ctx context.Context, campaignID string) (*Report, error) {
	campaign, err := v.store.GetHierarchy(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		CampaignID: campaignID,
		Timestamp:  time.Now().UTC(),
		Errors:     []protocol.ValidationIssue{},
		Warnings:   []protocol.ValidationIssue{},
	}

	if err := v.checkResources(ctx, campaign, report); err != nil {
		return nil, err
	}
	if err := v.checkObjectiveReachability(ctx, campaign, report); err != nil {
		return nil, err
	}

	report.Passed = len(report.Errors) == 0

	log := logger.GetValidationLogger()
	log.Info().
		Str("campaign_id", campaignID).
		Bool("passed", report.Passed).
		Int("errors", len(report.Errors)).
		Int("warnings", len(report.Warnings)).
		Float64("redundancy_percent", report.Stats.RedundancyPercent).
		Msg("Validation run finished")

	return report, nil
}

// resourceRef is one resource reachable from the campaign, with the node
// kind kept for report wording.
type resourceRef struct {
	ID   string
	Kind string // "knowledge" or "item"
}

// checkResources classifies every reachable Knowledge/Item by its distinct
// acquisition path count.
func (v *Validator) checkResources(ctx context.Context, campaign *models.CampaignObjective, report *Report) error {
	resources, err := v.collectResources(ctx, campaign)
	if err != nil {
		return err
	}

	report.Stats.ResourcesTotal = len(resources)
	for _, res := range resources {
		paths, err := v.store.GetAcquisitionPaths(ctx, res.ID)
		if err != nil {
			return err
		}

		// Distinct sources, not raw edges: two edges from the same encounter
		// are still one way to obtain the resource.
		distinct := lo.UniqBy(paths, func(p database.Path) string { return p.SourceID })

		switch len(distinct) {
		case 0:
			report.Stats.ResourcesUnreachable++
			report.Errors = append(report.Errors, protocol.ValidationIssue{
				Check:          CheckAchievability,
				SubjectID:      res.ID,
				Message:        fmt.Sprintf("%s %q has no acquisition path", res.Kind, res.ID),
				Recommendation: "add at least one scene or encounter that teaches, gives, reveals, contains, rewards, or grants this resource",
			})
		case 1:
			report.Stats.ResourcesSinglePath++
			report.Warnings = append(report.Warnings, protocol.ValidationIssue{
				Check:          CheckRedundancy,
				SubjectID:      res.ID,
				Message:        fmt.Sprintf("%s %q has a single acquisition path via %q", res.Kind, res.ID, distinct[0].SourceID),
				Recommendation: "add an alternate acquisition path so a missed encounter cannot dead-end the campaign",
			})
		default:
			report.Stats.ResourcesRedundant++
		}
	}

	if report.Stats.ResourcesTotal > 0 {
		report.Stats.RedundancyPercent = float64(report.Stats.ResourcesRedundant) / float64(report.Stats.ResourcesTotal) * 100
		report.Stats.RedundancyTargetMet = report.Stats.RedundancyPercent >= RedundancyTarget*100
		if !report.Stats.RedundancyTargetMet {
			report.Warnings = append(report.Warnings, protocol.ValidationIssue{
				Check:          CheckRedundancy,
				SubjectID:      campaign.ID,
				Message:        fmt.Sprintf("only %.0f%% of resources have redundant acquisition paths, target is %.0f%%", report.Stats.RedundancyPercent, RedundancyTarget*100),
				Recommendation: "add alternate acquisition paths until most resources can be obtained more than one way",
			})
		}
	} else {
		report.Stats.RedundancyTargetMet = true
	}

	return nil
}

// collectResources gathers every Knowledge/Item the campaign references:
// requirement edges from child objectives and acquisition edges from scenes
// and encounters.
func (v *Validator) collectResources(ctx context.Context, campaign *models.CampaignObjective) ([]resourceRef, error) {
	seen := map[string]resourceRef{}

	add := func(edges []models.Edge) {
		for _, e := range edges {
			kind := "knowledge"
			if e.EdgeType == models.EdgeRequiresItem || e.EdgeType == models.EdgeGives ||
				e.EdgeType == models.EdgeContains || e.EdgeType == models.EdgeRewards {
				kind = "item"
			}
			if _, ok := seen[e.ToID]; ok {
				continue
			}
			seen[e.ToID] = resourceRef{ID: e.ToID, Kind: kind}
		}
	}

	for _, quest := range campaign.Quests {
		for _, child := range quest.Children {
			edges, err := v.store.GetEdgesFrom(ctx, child.ID, models.EdgeRequiresKnowledge, models.EdgeRequiresItem)
			if err != nil {
				return nil, err
			}
			add(edges)
		}
	}

	acquisition := models.AcquisitionEdgeTypes()
	for _, scene := range campaign.Scenes {
		sourceIDs := []string{scene.ID}
		for _, enc := range scene.Encounters {
			sourceIDs = append(sourceIDs, enc.ID)
		}
		for _, id := range sourceIDs {
			edges, err := v.store.GetEdgesFrom(ctx, id, acquisition...)
			if err != nil {
				return nil, err
			}
			add(edges)
		}
	}

	return lo.Values(seen), nil
}

// checkObjectiveReachability verifies every campaign and quest objective is
// advanced by at least one scene or encounter.
func (v *Validator) checkObjectiveReachability(ctx context.Context, campaign *models.CampaignObjective, report *Report) error {
	type objective struct {
		ID          string
		Description string
		Level       string
	}

	objectives := []objective{{ID: campaign.ID, Description: campaign.Description, Level: "campaign objective"}}
	for _, quest := range campaign.Quests {
		objectives = append(objectives, objective{ID: quest.ID, Description: quest.Description, Level: "quest objective"})
	}

	report.Stats.ObjectivesTotal = len(objectives)
	for _, obj := range objectives {
		advances, err := v.store.GetEdgesTo(ctx, obj.ID, models.EdgeAdvances)
		if err != nil {
			return err
		}
		if len(advances) == 0 {
			report.Errors = append(report.Errors, protocol.ValidationIssue{
				Check:          CheckAchievability,
				SubjectID:      obj.ID,
				Message:        fmt.Sprintf("unachievable: no scene advances %s %q", obj.Level, obj.ID),
				Recommendation: "link at least one scene or encounter to this objective with an ADVANCES edge",
			})
			continue
		}
		report.Stats.ObjectivesReachable++
	}

	if report.Stats.ObjectivesTotal > 0 {
		report.Stats.ReachabilityPercent = float64(report.Stats.ObjectivesReachable) / float64(report.Stats.ObjectivesTotal) * 100
	}
	return nil
}
