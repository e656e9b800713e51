// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli loads campaign definition files: the bulk-write format the
// content decomposition step produces. Files are validated on load; any
// malformed reference or rubric is a construction-time error, never a
// runtime surprise.
package cli

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/questweave/questweave/internal/engine/models"
	"github.com/questweave/questweave/internal/engine/rubric"
)

// CampaignFile represents a campaign definition YAML file.
type CampaignFile struct {
	Campaign  CampaignDef   `yaml:"campaign"`
	Quests    []QuestDef    `yaml:"quests"`
	Knowledge []ResourceDef `yaml:"knowledge"`
	Items     []ResourceDef `yaml:"items"`
	Scenes    []SceneDef    `yaml:"scenes"`
	Rubrics   []RubricDef   `yaml:"rubrics"`
}

// CampaignDef is the root objective block.
type CampaignDef struct {
	ID                    string   `yaml:"id"`
	Description           string   `yaml:"description"`
	CompletionCriteria    []string `yaml:"completion_criteria"`
	MinimumQuestsRequired int      `yaml:"minimum_quests_required"`
}

// QuestDef is one quest objective with its children.
type QuestDef struct {
	ID              string     `yaml:"id"`
	Description     string     `yaml:"description"`
	QuestNumber     int        `yaml:"quest_number"`
	BloomLevel      int        `yaml:"bloom_level"`
	IsRequired      *bool      `yaml:"is_required"` // nil means true
	SuccessCriteria []string   `yaml:"success_criteria"`
	Children        []ChildDef `yaml:"children"`
}

// ChildDef is one scene-level objective.
type ChildDef struct {
	ID                string   `yaml:"id"`
	Type              string   `yaml:"type"` // discovery|challenge|event|conversation
	Description       string   `yaml:"description"`
	Required          *bool    `yaml:"required"` // nil means true
	Rubric            string   `yaml:"rubric"`
	RequiresKnowledge []string `yaml:"requires_knowledge"`
	RequiresItems     []string `yaml:"requires_items"`
}

// ResourceDef declares a Knowledge or Item node.
type ResourceDef struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Domain   string `yaml:"domain"`    // knowledge only
	MaxLevel int    `yaml:"max_level"` // knowledge only, 1-4
	Category string `yaml:"category"`  // items only
}

// ProvideDef is one acquisition edge declaration.
type ProvideDef struct {
	Resource string `yaml:"resource"`
	Via      string `yaml:"via"` // TEACHES|GIVES|REVEALS|CONTAINS|REWARDS|GRANTS
}

// EncounterDef is one interactable within a scene.
type EncounterDef struct {
	ID       string       `yaml:"id"`
	Kind     string       `yaml:"kind"` // npc|discovery|challenge|event
	Name     string       `yaml:"name"`
	Advances []string     `yaml:"advances"`
	Provides []ProvideDef `yaml:"provides"`
	Develops []string     `yaml:"develops"` // dimension names
}

// SceneDef groups encounters and declares what the scene advances/provides.
type SceneDef struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Advances    []string       `yaml:"advances"`
	Provides    []ProvideDef   `yaml:"provides"`
	Objectives  []string       `yaml:"objectives"` // child objectives played out here
	Encounters  []EncounterDef `yaml:"encounters"`
}

// RubricDef is a rubric template: criteria plus tier bands and rewards.
type RubricDef struct {
	Name      string                `yaml:"name"`
	Criteria  []rubric.Criterion    `yaml:"criteria"`
	TierBands []rubric.TierBand     `yaml:"tier_bands"`
	Rewards   map[int]rubric.Reward `yaml:"rewards"`
}

// LoadCampaignFile loads and validates a campaign definition file.
func LoadCampaignFile(path string) (*CampaignFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign file: %w", err)
	}
	return ParseCampaign(data)
}

// ParseCampaign parses and validates a campaign definition from raw YAML.
func ParseCampaign(data []byte) (*CampaignFile, error) {
	var cf CampaignFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse campaign YAML: %w", err)
	}

	if err := cf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid campaign definition: %w", err)
	}
	return &cf, nil
}

// Validate checks structural integrity: unique IDs, closed-set tags, and
// every cross-reference resolving to a declared node. Rubric weight sums are
// checked by BuildRubrics.
func (cf *CampaignFile) Validate() error {
	if cf.Campaign.ID == "" {
		return errors.New("campaign id is required")
	}
	if cf.Campaign.Description == "" {
		return errors.New("campaign description is required")
	}
	if cf.Campaign.MinimumQuestsRequired < 1 {
		return fmt.Errorf("campaign %s: minimum_quests_required must be at least 1", cf.Campaign.ID)
	}
	if len(cf.Quests) == 0 {
		return fmt.Errorf("campaign %s: at least one quest is required", cf.Campaign.ID)
	}
	if cf.Campaign.MinimumQuestsRequired > len(cf.Quests) {
		return fmt.Errorf("campaign %s: minimum_quests_required %d exceeds quest count %d",
			cf.Campaign.ID, cf.Campaign.MinimumQuestsRequired, len(cf.Quests))
	}

	ids := map[string]string{cf.Campaign.ID: "campaign"}
	declare := func(id, kind string) error {
		if id == "" {
			return fmt.Errorf("%s id is required", kind)
		}
		if prev, dup := ids[id]; dup {
			return fmt.Errorf("duplicate id %q (%s and %s)", id, prev, kind)
		}
		ids[id] = kind
		return nil
	}

	rubricNames := map[string]struct{}{}
	for _, r := range cf.Rubrics {
		if r.Name == "" {
			return errors.New("rubric name is required")
		}
		if _, dup := rubricNames[r.Name]; dup {
			return fmt.Errorf("duplicate rubric %q", r.Name)
		}
		rubricNames[r.Name] = struct{}{}
	}

	knowledgeIDs := map[string]struct{}{}
	for _, k := range cf.Knowledge {
		if err := declare(k.ID, "knowledge"); err != nil {
			return err
		}
		if k.MaxLevel < 1 || k.MaxLevel > 4 {
			return fmt.Errorf("knowledge %s: max_level must be 1-4, got %d", k.ID, k.MaxLevel)
		}
		knowledgeIDs[k.ID] = struct{}{}
	}
	itemIDs := map[string]struct{}{}
	for _, it := range cf.Items {
		if err := declare(it.ID, "item"); err != nil {
			return err
		}
		itemIDs[it.ID] = struct{}{}
	}

	objectiveIDs := map[string]struct{}{cf.Campaign.ID: {}}
	for _, q := range cf.Quests {
		if err := declare(q.ID, "quest"); err != nil {
			return err
		}
		if q.BloomLevel < 0 || q.BloomLevel > models.MaxMaturityLevel {
			return fmt.Errorf("quest %s: bloom_level must be 0-6, got %d", q.ID, q.BloomLevel)
		}
		objectiveIDs[q.ID] = struct{}{}

		for _, c := range q.Children {
			if err := declare(c.ID, "child objective"); err != nil {
				return err
			}
			childType := models.ChildObjectiveType(c.Type)
			if !childType.IsValid() {
				return fmt.Errorf("child objective %s: unknown type %q", c.ID, c.Type)
			}
			needsRubric := childType == models.ChildChallenge || childType == models.ChildConversation
			if needsRubric && c.Rubric == "" {
				return fmt.Errorf("child objective %s: type %s requires a rubric", c.ID, c.Type)
			}
			if c.Rubric != "" {
				if _, ok := rubricNames[c.Rubric]; !ok {
					return fmt.Errorf("child objective %s: rubric %q is not declared", c.ID, c.Rubric)
				}
			}
			for _, kid := range c.RequiresKnowledge {
				if _, ok := knowledgeIDs[kid]; !ok {
					return fmt.Errorf("child objective %s: requires unknown knowledge %q", c.ID, kid)
				}
			}
			for _, iid := range c.RequiresItems {
				if _, ok := itemIDs[iid]; !ok {
					return fmt.Errorf("child objective %s: requires unknown item %q", c.ID, iid)
				}
			}
			objectiveIDs[c.ID] = struct{}{}
		}
	}

	checkProvides := func(owner string, provides []ProvideDef) error {
		for _, p := range provides {
			edgeType := models.EdgeType(p.Via)
			if !edgeType.IsAcquisition() {
				return fmt.Errorf("%s: %q is not an acquisition edge type", owner, p.Via)
			}
			_, isKnowledge := knowledgeIDs[p.Resource]
			_, isItem := itemIDs[p.Resource]
			if !isKnowledge && !isItem {
				return fmt.Errorf("%s: provides unknown resource %q", owner, p.Resource)
			}
		}
		return nil
	}
	checkAdvances := func(owner string, advances []string) error {
		for _, target := range advances {
			if _, ok := objectiveIDs[target]; !ok {
				return fmt.Errorf("%s: advances unknown objective %q", owner, target)
			}
		}
		return nil
	}

	for _, s := range cf.Scenes {
		if err := declare(s.ID, "scene"); err != nil {
			return err
		}
		if s.Title == "" {
			return fmt.Errorf("scene %s: title is required", s.ID)
		}
		if err := checkAdvances("scene "+s.ID, s.Advances); err != nil {
			return err
		}
		if err := checkProvides("scene "+s.ID, s.Provides); err != nil {
			return err
		}
		for _, objID := range s.Objectives {
			if _, ok := objectiveIDs[objID]; !ok {
				return fmt.Errorf("scene %s: references unknown objective %q", s.ID, objID)
			}
		}
		for _, e := range s.Encounters {
			if err := declare(e.ID, "encounter"); err != nil {
				return err
			}
			if !models.EncounterKind(e.Kind).IsValid() {
				return fmt.Errorf("encounter %s: unknown kind %q", e.ID, e.Kind)
			}
			if err := checkAdvances("encounter "+e.ID, e.Advances); err != nil {
				return err
			}
			if err := checkProvides("encounter "+e.ID, e.Provides); err != nil {
				return err
			}
			for _, d := range e.Develops {
				if !models.Dimension(d).IsValid() {
					return fmt.Errorf("encounter %s: unknown dimension %q", e.ID, d)
				}
			}
		}
	}

	return nil
}

// BuildRubrics constructs validated rubrics from the file's templates.
// Weight sums and band shapes are enforced by the rubric engine.
func (cf *CampaignFile) BuildRubrics() ([]*rubric.Rubric, error) {
	out := make([]*rubric.Rubric, 0, len(cf.Rubrics))
	for _, def := range cf.Rubrics {
		opts := []rubric.Option{rubric.WithRewards(def.Rewards)}
		if len(def.TierBands) > 0 {
			opts = append(opts, rubric.WithTierBands(def.TierBands))
		}
		r, err := rubric.NewRubric(def.Name, def.Criteria, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
