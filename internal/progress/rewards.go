package progress

import (
	"sort"

	"brightsteps/internal/models"
)

// MilestoneLadderStep is the fixed checkpoint shown alongside catalog rewards
const MilestoneLadderStep = 20

// MilestoneProgress is the always-present ladder indicator
type MilestoneProgress struct {
	Current    int `json:"current"`
	Next       int `json:"next"`
	Percentage int `json:"percentage"`
}

// MilestoneLadder measures completed challenges against the fixed checkpoint
func MilestoneLadder(milestonesCompleted int) MilestoneProgress {
	pct := percentOf(milestonesCompleted, MilestoneLadderStep)
	if pct > 100 {
		pct = 100
	}
	return MilestoneProgress{
		Current:    milestonesCompleted,
		Next:       MilestoneLadderStep,
		Percentage: pct,
	}
}

// NextReward is the closest reward not yet earned
type NextReward struct {
	models.RewardDefinition
	Current  int `json:"current"`
	Progress int `json:"progress"`
}

// RewardsState lists earned rewards in display order plus the next target
type RewardsState struct {
	Earned []models.RewardDefinition `json:"earned"`
	Next   *NextReward               `json:"next"`
}

// RewardMetric is the aggregate value a reward of this type is judged on
func RewardMetric(r models.RewardDefinition, agg Aggregates) int {
	switch r.Type {
	case models.RewardMilestone:
		return agg.MilestonesCompleted
	case models.RewardStreak:
		return agg.LongestStreak
	case models.RewardPillar:
		if r.PillarID == nil {
			return 0
		}
		return agg.PillarProgress[*r.PillarID].Completed
	default:
		return 0
	}
}

// IsEarned reports whether the aggregates meet the reward's criteria
func IsEarned(r models.RewardDefinition, agg Aggregates) bool {
	return RewardMetric(r, agg) >= r.CriteriaValue
}

func typeRank(t models.RewardType) int {
	for i, rt := range models.RewardTypeOrder {
		if rt == t {
			return i
		}
	}
	return len(models.RewardTypeOrder)
}

// SortRewards orders rewards by type, then criteria ascending. Equal
// criteria keep catalog order.
func SortRewards(defs []models.RewardDefinition) []models.RewardDefinition {
	sorted := make([]models.RewardDefinition, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := typeRank(sorted[i].Type), typeRank(sorted[j].Type)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].CriteriaValue < sorted[j].CriteriaValue
	})
	return sorted
}

// EvaluateRewards splits the catalog into earned rewards and the next one to
// chase. The next reward has the smallest remaining gap; ties go to the
// earlier reward in display order. Next is nil once everything is earned.
func EvaluateRewards(defs []models.RewardDefinition, agg Aggregates) RewardsState {
	state := RewardsState{Earned: []models.RewardDefinition{}}

	bestGap := 0
	for _, r := range SortRewards(defs) {
		metric := RewardMetric(r, agg)
		if metric >= r.CriteriaValue {
			state.Earned = append(state.Earned, r)
			continue
		}

		gap := r.CriteriaValue - metric
		if state.Next != nil && gap >= bestGap {
			continue
		}
		bestGap = gap
		state.Next = &NextReward{
			RewardDefinition: r,
			Current:          metric,
			Progress:         rewardProgress(metric, r.CriteriaValue),
		}
	}
	return state
}

// rewardProgress is floor(metric*100/criteria) held inside [0,100)
func rewardProgress(metric, criteria int) int {
	pct := percentOf(metric, criteria)
	if pct >= 100 {
		return 99
	}
	return pct
}

// NewlyEarned lists rewards earned in after but not in before
func NewlyEarned(before, after RewardsState) []models.RewardDefinition {
	had := make(map[int64]struct{}, len(before.Earned))
	for _, r := range before.Earned {
		had[r.ID] = struct{}{}
	}

	var fresh []models.RewardDefinition
	for _, r := range after.Earned {
		if _, ok := had[r.ID]; !ok {
			fresh = append(fresh, r)
		}
	}
	return fresh
}
