// Package catalog loads the static reference data (pillars, traits,
// challenges with their trait weights, and the reward catalog) from YAML.
package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"brightsteps/internal/models"
)

// File is the YAML document layout
type File struct {
	Pillars    []PillarEntry    `yaml:"pillars"`
	Traits     []TraitEntry     `yaml:"traits"`
	Challenges []ChallengeEntry `yaml:"challenges"`
	Rewards    []RewardEntry    `yaml:"rewards"`
}

type PillarEntry struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type TraitEntry struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	PillarID int    `yaml:"pillar_id"`
}

// ChallengeEntry carries steps in any of the accepted encodings; they are
// normalized by models.Steps while decoding.
type ChallengeEntry struct {
	ID          int64         `yaml:"id"`
	PillarID    int           `yaml:"pillar_id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	AgeRange    string        `yaml:"age_range"`
	Steps       models.Steps  `yaml:"steps"`
	Traits      []WeightEntry `yaml:"traits"`
}

type WeightEntry struct {
	TraitID int64   `yaml:"trait_id"`
	Weight  float64 `yaml:"weight"`
}

type RewardEntry struct {
	ID            int64  `yaml:"id"`
	Type          string `yaml:"type"`
	CriteriaValue int    `yaml:"criteria_value"`
	PillarID      *int   `yaml:"pillar_id"`
	Icon          string `yaml:"icon"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
}

// Catalog is the validated, model-typed form of a catalog file
type Catalog struct {
	Pillars    []models.Pillar
	Traits     []models.Trait
	Challenges []models.Challenge
	Weights    map[int64][]models.ChallengeTraitWeight
	Rewards    []models.RewardDefinition
}

// LoadFile reads and validates a catalog file
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a catalog document. Unknown keys are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return file.build()
}

func (f File) build() (*Catalog, error) {
	c := &Catalog{Weights: make(map[int64][]models.ChallengeTraitWeight)}

	pillars := make(map[int]bool)
	for _, p := range f.Pillars {
		if !models.ValidPillar(p.ID) {
			return nil, fmt.Errorf("pillar %d: id must be in 1..%d", p.ID, models.PillarCount)
		}
		if pillars[p.ID] {
			return nil, fmt.Errorf("pillar %d: duplicate id", p.ID)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("pillar %d: name is required", p.ID)
		}
		pillars[p.ID] = true
		c.Pillars = append(c.Pillars, models.Pillar{ID: p.ID, Name: p.Name})
	}

	traits := make(map[int64]bool)
	for _, t := range f.Traits {
		if t.ID <= 0 || traits[t.ID] {
			return nil, fmt.Errorf("trait %d: id must be positive and unique", t.ID)
		}
		if !models.ValidPillar(t.PillarID) {
			return nil, fmt.Errorf("trait %d: unknown pillar %d", t.ID, t.PillarID)
		}
		if t.Name == "" {
			return nil, fmt.Errorf("trait %d: name is required", t.ID)
		}
		traits[t.ID] = true
		c.Traits = append(c.Traits, models.Trait{ID: t.ID, Name: t.Name, PillarID: t.PillarID})
	}

	challenges := make(map[int64]bool)
	for _, ch := range f.Challenges {
		if ch.ID <= 0 || challenges[ch.ID] {
			return nil, fmt.Errorf("challenge %d: id must be positive and unique", ch.ID)
		}
		if !models.ValidPillar(ch.PillarID) {
			return nil, fmt.Errorf("challenge %d: unknown pillar %d", ch.ID, ch.PillarID)
		}
		if ch.Title == "" || ch.AgeRange == "" {
			return nil, fmt.Errorf("challenge %d: title and age_range are required", ch.ID)
		}
		challenges[ch.ID] = true

		steps := ch.Steps
		if steps == nil {
			steps = models.Steps{}
		}
		c.Challenges = append(c.Challenges, models.Challenge{
			ID:          ch.ID,
			PillarID:    ch.PillarID,
			Title:       ch.Title,
			Description: ch.Description,
			AgeRange:    ch.AgeRange,
			Steps:       steps,
		})

		seen := make(map[int64]bool)
		for _, w := range ch.Traits {
			if !traits[w.TraitID] {
				return nil, fmt.Errorf("challenge %d: unknown trait %d", ch.ID, w.TraitID)
			}
			if seen[w.TraitID] {
				return nil, fmt.Errorf("challenge %d: trait %d weighted twice", ch.ID, w.TraitID)
			}
			seen[w.TraitID] = true
			weight := models.ChallengeTraitWeight{ChallengeID: ch.ID, TraitID: w.TraitID, Weight: w.Weight}
			if err := weight.Validate(); err != nil {
				return nil, err
			}
			c.Weights[ch.ID] = append(c.Weights[ch.ID], weight)
		}
	}

	rewards := make(map[int64]bool)
	for _, r := range f.Rewards {
		if r.ID <= 0 || rewards[r.ID] {
			return nil, fmt.Errorf("reward %d: id must be positive and unique", r.ID)
		}
		rewards[r.ID] = true
		def := models.RewardDefinition{
			ID:            r.ID,
			Type:          models.RewardType(r.Type),
			CriteriaValue: r.CriteriaValue,
			PillarID:      r.PillarID,
			Icon:          r.Icon,
			Title:         r.Title,
			Description:   r.Description,
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("reward %d: %w", r.ID, err)
		}
		c.Rewards = append(c.Rewards, def)
	}

	return c, nil
}
