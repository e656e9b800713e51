// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/questweave/questweave/internal/common"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/rubric"
	"github.com/questweave/questweave/internal/engine/validation"
	"github.com/questweave/questweave/internal/logger"
	"github.com/questweave/questweave/internal/protocol"
)

// ErrCampaignInvalid is returned when a campaign imports but fails the
// redundancy/achievability validation gate. The graph is written (authors
// iterate on it), but the campaign must not be finalized for play.
var ErrCampaignInvalid = errors.New("campaign failed validation")

// Importer performs the one-time bulk write of a campaign definition into
// the graph store. Every write is an idempotent merge, so re-importing an
// edited definition updates descriptions and structure without touching
// player progress.
type Importer struct {
	store   *database.GormDB
	rubrics *rubric.Registry
	events  chan<- common.Event
}

// NewImporter creates an importer over the given store and rubric registry.
func NewImporter(store *database.GormDB, rubrics *rubric.Registry) *Importer {
	return &Importer{store: store, rubrics: rubrics}
}

// WithEvents attaches an event channel; failed validation gates are then
// broadcast to session listeners. Emission is non-blocking.
func (imp *Importer) WithEvents(events chan<- common.Event) *Importer {
	imp.events = events
	return imp
}

// Import writes the campaign graph, registers its rubrics, and runs the
// validation gate. A failed report is returned alongside ErrCampaignInvalid.
func (imp *Importer) Import(ctx context.Context, cf *CampaignFile) (*validation.Report, error) {
	log := logger.GetEngineLogger()

	rubrics, err := cf.BuildRubrics()
	if err != nil {
		return nil, err
	}
	for _, r := range rubrics {
		imp.rubrics.Register(r)
	}

	if err := imp.writeNodes(ctx, cf); err != nil {
		return nil, err
	}
	if err := imp.writeEdges(ctx, cf); err != nil {
		return nil, err
	}

	log.Info().
		Str("campaign_id", cf.Campaign.ID).
		Int("quests", len(cf.Quests)).
		Int("scenes", len(cf.Scenes)).
		Int("rubrics", len(cf.Rubrics)).
		Msg("Campaign definition imported")

	report, err := validation.NewValidator(imp.store).Validate(ctx, cf.Campaign.ID)
	if err != nil {
		return nil, err
	}
	if !report.Passed {
		imp.emitValidationFailed(cf.Campaign.ID, report)
		return report, fmt.Errorf("%w: %d errors", ErrCampaignInvalid, len(report.Errors))
	}
	return report, nil
}

func (imp *Importer) emitValidationFailed(campaignID string, report *validation.Report) {
	if imp.events == nil {
		return
	}

	event := protocol.ValidationFailedEvent{
		Metadata: protocol.Metadata{
			EventID:    uuid.New().String(),
			CampaignID: campaignID,
			Version:    protocol.CurrentProtocolVersion,
		},
		Kind:      protocol.KindValidationFailed,
		Errors:    report.Errors,
		Warnings:  report.Warnings,
		Timestamp: time.Now().UTC(),
	}

	select {
	case imp.events <- event:
	default:
		log := logger.GetEngineLogger()
		log.Warn().
			Str("campaign_id", campaignID).
			Msg("Event channel full, dropping validation failure event")
	}
}

func (imp *Importer) writeNodes(ctx context.Context, cf *CampaignFile) error {
	if err := imp.store.UpsertNode(ctx, "campaign_objective", cf.Campaign.ID, models.JSONMap{
		"description":             cf.Campaign.Description,
		"completion_criteria":     cf.Campaign.CompletionCriteria,
		"minimum_quests_required": cf.Campaign.MinimumQuestsRequired,
	}); err != nil {
		return err
	}

	for _, q := range cf.Quests {
		if err := imp.store.UpsertNode(ctx, "quest_objective", q.ID, models.JSONMap{
			"campaign_id":      cf.Campaign.ID,
			"description":      q.Description,
			"quest_number":     q.QuestNumber,
			"bloom_level":      q.BloomLevel,
			"success_criteria": q.SuccessCriteria,
			"is_required":      boolOrTrue(q.IsRequired),
		}); err != nil {
			return err
		}
		for _, c := range q.Children {
			if err := imp.store.UpsertNode(ctx, "child_objective", c.ID, models.JSONMap{
				"quest_id":    q.ID,
				"type":        c.Type,
				"description": c.Description,
				"required":    boolOrTrue(c.Required),
				"rubric_name": c.Rubric,
			}); err != nil {
				return err
			}
		}
	}

	for _, k := range cf.Knowledge {
		if err := imp.store.UpsertNode(ctx, "knowledge", k.ID, models.JSONMap{
			"name":      k.Name,
			"domain":    k.Domain,
			"max_level": k.MaxLevel,
		}); err != nil {
			return err
		}
	}
	for _, it := range cf.Items {
		if err := imp.store.UpsertNode(ctx, "item", it.ID, models.JSONMap{
			"name":     it.Name,
			"category": it.Category,
		}); err != nil {
			return err
		}
	}

	for _, s := range cf.Scenes {
		if err := imp.store.UpsertNode(ctx, "scene", s.ID, models.JSONMap{
			"campaign_id": cf.Campaign.ID,
			"title":       s.Title,
			"description": s.Description,
		}); err != nil {
			return err
		}
		for _, e := range s.Encounters {
			if err := imp.store.UpsertNode(ctx, "encounter", e.ID, models.JSONMap{
				"scene_id": s.ID,
				"kind":     e.Kind,
				"name":     e.Name,
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

func (imp *Importer) writeEdges(ctx context.Context, cf *CampaignFile) error {
	for _, q := range cf.Quests {
		// Structural hierarchy, both directions.
		if err := imp.store.UpsertEdge(ctx, cf.Campaign.ID, q.ID, models.EdgeDecomposesTo, nil); err != nil {
			return err
		}
		if err := imp.store.UpsertEdge(ctx, q.ID, cf.Campaign.ID, models.EdgeSupports, nil); err != nil {
			return err
		}
		for _, c := range q.Children {
			if err := imp.store.UpsertEdge(ctx, q.ID, c.ID, models.EdgeHasObjective, nil); err != nil {
				return err
			}
			if err := imp.store.UpsertEdge(ctx, c.ID, q.ID, models.EdgeAchieves, nil); err != nil {
				return err
			}
			for _, kid := range c.RequiresKnowledge {
				if err := imp.store.UpsertEdge(ctx, c.ID, kid, models.EdgeRequiresKnowledge, nil); err != nil {
					return err
				}
			}
			for _, iid := range c.RequiresItems {
				if err := imp.store.UpsertEdge(ctx, c.ID, iid, models.EdgeRequiresItem, nil); err != nil {
					return err
				}
			}
		}
	}

	writeProvides := func(fromID string, provides []ProvideDef) error {
		for _, p := range provides {
			if err := imp.store.UpsertEdge(ctx, fromID, p.Resource, models.EdgeType(p.Via), nil); err != nil {
				return err
			}
		}
		return nil
	}
	writeAdvances := func(fromID string, advances []string) error {
		for _, target := range advances {
			if err := imp.store.UpsertEdge(ctx, fromID, target, models.EdgeAdvances, nil); err != nil {
				return err
			}
		}
		return nil
	}

	for _, s := range cf.Scenes {
		if err := writeAdvances(s.ID, s.Advances); err != nil {
			return err
		}
		if err := writeProvides(s.ID, s.Provides); err != nil {
			return err
		}
		for _, objID := range s.Objectives {
			if err := imp.store.UpsertEdge(ctx, s.ID, objID, models.EdgeHasObjective, nil); err != nil {
				return err
			}
		}
		for _, e := range s.Encounters {
			if err := writeAdvances(e.ID, e.Advances); err != nil {
				return err
			}
			if err := writeProvides(e.ID, e.Provides); err != nil {
				return err
			}
			for _, d := range e.Develops {
				if err := imp.store.UpsertEdge(ctx, e.ID, d, models.EdgeDevelops, nil); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func boolOrTrue(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}
