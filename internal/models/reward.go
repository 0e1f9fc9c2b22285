package models

import "fmt"

// RewardType selects which aggregate metric a reward is measured against
type RewardType string

const (
	RewardMilestone RewardType = "milestone"
	RewardStreak    RewardType = "streak"
	RewardPillar    RewardType = "pillar"
)

// RewardTypeOrder is the display order of reward types
var RewardTypeOrder = []RewardType{RewardMilestone, RewardStreak, RewardPillar}

// RewardDefinition is an entry in the static trophy catalog
type RewardDefinition struct {
	ID            int64      `json:"id"`
	Type          RewardType `json:"type"`
	CriteriaValue int        `json:"criteria_value"`
	PillarID      *int       `json:"pillar_id,omitempty"`
	Icon          string     `json:"icon"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
}

// Validate checks the reward type and its pillar reference
func (r RewardDefinition) Validate() error {
	switch r.Type {
	case RewardMilestone, RewardStreak:
		return nil
	case RewardPillar:
		if r.PillarID == nil || !ValidPillar(*r.PillarID) {
			return fmt.Errorf("pillar reward %q needs a pillar_id in 1..%d", r.Title, PillarCount)
		}
		return nil
	default:
		return fmt.Errorf("unknown reward type %q", r.Type)
	}
}
