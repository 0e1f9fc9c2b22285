package models

import (
	"fmt"
	"time"
)

// PillarCount is the number of fixed skill pillars
const PillarCount = 5

// Pillar is one of the five fixed skill domains
type Pillar struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ValidPillar reports whether id names one of the fixed pillars
func ValidPillar(id int) bool {
	return id >= 1 && id <= PillarCount
}

// Challenge represents a daily activity a child can complete
type Challenge struct {
	ID          int64     `json:"id"`
	PillarID    int       `json:"pillar_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AgeRange    string    `json:"age_range"`
	Steps       Steps     `json:"steps"`
	CreatedAt   time.Time `json:"created_at"`
}

// Trait is a skill dimension inside a pillar
type Trait struct {
	ID       int64
	Name     string
	PillarID int
}

// ChallengeTraitWeight declares how strongly a challenge feeds a trait
type ChallengeTraitWeight struct {
	ChallengeID int64
	TraitID     int64
	Weight      float64 // 0..1
}

// Validate rejects weights outside 0..1
func (w ChallengeTraitWeight) Validate() error {
	if w.Weight < 0 || w.Weight > 1 {
		return fmt.Errorf("weight %v for challenge %d trait %d is outside 0..1", w.Weight, w.ChallengeID, w.TraitID)
	}
	return nil
}
