// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/questweave/questweave/internal/cli"
	"github.com/questweave/questweave/internal/engine/cascade"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/query"

	"github.com/go-chi/chi/v5"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	queries        *query.Service
	tracker        *cascade.Tracker
	importer       *cli.Importer
	focusDimension int
}

// NewHandlers creates the handler set. focusDimensions is the default focus
// recommendation count when the request does not override it.
func NewHandlers(queries *query.Service, tracker *cascade.Tracker, importer *cli.Importer, focusDimensions int) *Handlers {
	return &Handlers{queries: queries, tracker: tracker, importer: importer, focusDimension: focusDimensions}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeReadError maps store errors onto HTTP statuses for read endpoints.
func writeReadError(w http.ResponseWriter, err error, subject string) {
	if database.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": subject + " not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load " + subject, "context": err.Error()})
}

// --- GET handlers (stateless reads through the query service) ---

// GetHierarchy handles GET /api/v1/campaigns/{id}/hierarchy
func (h *Handlers) GetHierarchy(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	campaign, err := h.queries.GetObjectiveHierarchy(r.Context(), campaignID)
	if err != nil {
		writeReadError(w, err, "campaign")
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// GetValidation handles GET /api/v1/campaigns/{id}/validation
func (h *Handlers) GetValidation(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	report, err := h.queries.GetValidationReport(r.Context(), campaignID)
	if err != nil {
		writeReadError(w, err, "campaign")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetSceneObjectives handles GET /api/v1/scenes/{id}/objectives
func (h *Handlers) GetSceneObjectives(w http.ResponseWriter, r *http.Request) {
	sceneID := chi.URLParam(r, "id")

	assignments, err := h.queries.GetSceneObjectives(r.Context(), sceneID)
	if err != nil {
		writeReadError(w, err, "scene")
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

// GetAcquisitionPaths handles GET /api/v1/resources/{id}/paths
func (h *Handlers) GetAcquisitionPaths(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "id")

	paths, err := h.queries.GetAcquisitionPaths(r.Context(), resourceID)
	if err != nil {
		writeReadError(w, err, "resource")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource_id": resourceID,
		"paths":       paths,
		"path_count":  len(paths),
	})
}

// GetDimensions handles GET /api/v1/players/{id}/dimensions
func (h *Handlers) GetDimensions(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "id")

	progress, err := h.queries.GetDimensionalProgress(r.Context(), playerID)
	if err != nil {
		writeReadError(w, err, "player dimensions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_id":  playerID,
		"dimensions": progress,
	})
}

// GetFocusDimensions handles GET /api/v1/players/{id}/dimensions/focus
func (h *Handlers) GetFocusDimensions(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "id")

	n := h.focusDimension
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 7 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be an integer between 1 and 7"})
			return
		}
		n = parsed
	}

	focus, err := h.queries.GetFocusDimensions(r.Context(), playerID, n)
	if err != nil {
		writeReadError(w, err, "player dimensions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_id": playerID,
		"focus":     focus,
	})
}

// GetPlayerProgress handles GET /api/v1/players/{id}/progress/{objectiveId}
func (h *Handlers) GetPlayerProgress(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "id")
	objectiveID := chi.URLParam(r, "objectiveId")

	progress, err := h.queries.GetPlayerProgress(r.Context(), playerID, objectiveID)
	if err != nil {
		writeReadError(w, err, "progress")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// --- POST handlers (mutations through the cascade tracker) ---

// actionRequest is the JSON body for the game-loop action entry point.
type actionRequest struct {
	ChildObjectiveID string         `json:"child_objective_id"`
	SceneID          string         `json:"scene_id,omitempty"`
	Succeeded        bool           `json:"succeeded"`
	Interaction      models.JSONMap `json:"interaction,omitempty"`
	PlayerContext    models.JSONMap `json:"player_context,omitempty"`
}

// PostAction handles POST /api/v1/players/{id}/actions. A deferred progress
// write (store retries exhausted) still returns the evaluation with 202 so
// the game loop can surface the outcome and retry later.
func (h *Handlers) PostAction(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "id")

	var body actionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}
	body.ChildObjectiveID = strings.TrimSpace(body.ChildObjectiveID)
	if body.ChildObjectiveID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "child_objective_id is required"})
		return
	}

	outcome, err := h.tracker.HandleAction(r.Context(), cascade.ActionInput{
		PlayerID:         playerID,
		ChildObjectiveID: body.ChildObjectiveID,
		SceneID:          body.SceneID,
		Succeeded:        body.Succeeded,
		Interaction:      body.Interaction,
		PlayerContext:    body.PlayerContext,
	})
	if err != nil {
		switch {
		case errors.Is(err, cascade.ErrUpdateDeferred):
			writeJSON(w, http.StatusAccepted, map[string]interface{}{
				"status":  "objective update deferred",
				"outcome": outcome,
			})
		case database.IsNotFound(err):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "child objective not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// PostImportCampaign handles POST /api/v1/campaigns/import. The body is a
// campaign definition YAML, the same format cmd/seed reads from disk. The
// graph is written even when validation fails (authors iterate on it), but
// a failed report comes back as 422 so callers know the campaign is not
// finalized.
func (h *Handlers) PostImportCampaign(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	cf, err := cli.ParseCampaign(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	report, err := h.importer.Import(r.Context(), cf)
	if err != nil {
		if errors.Is(err, cli.ErrCampaignInvalid) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":  err.Error(),
				"report": report,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"campaign_id": cf.Campaign.ID,
		"report":      report,
	})
}

// PostCascadeCheck handles POST /api/v1/players/{id}/cascade/{objectiveId}:
// an explicit recomputation of a quest or campaign objective from source
// facts, safe to call repeatedly.
func (h *Handlers) PostCascadeCheck(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "id")
	objectiveID := chi.URLParam(r, "objectiveId")

	if err := h.tracker.CheckCascade(r.Context(), playerID, objectiveID); err != nil {
		switch {
		case errors.Is(err, cascade.ErrUpdateDeferred):
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "objective update deferred"})
		case database.IsNotFound(err):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "objective not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "checked"})
}
