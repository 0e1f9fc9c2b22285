package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps/internal/models"
)

func pillarPtr(p int) *int { return &p }

func rewardIDs(defs []models.RewardDefinition) []int64 {
	ids := make([]int64, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestScenarioMilestoneRewards(t *testing.T) {
	defs := []models.RewardDefinition{
		{ID: 1, Type: models.RewardMilestone, CriteriaValue: 10, Title: "Ten"},
		{ID: 2, Type: models.RewardMilestone, CriteriaValue: 5, Title: "Five"},
	}
	state := EvaluateRewards(defs, Aggregates{MilestonesCompleted: 7})

	assert.Equal(t, []int64{2}, rewardIDs(state.Earned))
	require.NotNil(t, state.Next)
	assert.Equal(t, int64(1), state.Next.ID)
	assert.Equal(t, 70, state.Next.Progress)
	assert.Equal(t, 7, state.Next.Current)
}

func TestRewardTypesUseTheirMetric(t *testing.T) {
	agg := Aggregates{
		MilestonesCompleted: 3,
		LongestStreak:       4,
		CurrentStreak:       1,
		PillarProgress:      map[int]PillarStat{2: {Completed: 2, Total: 5}},
	}
	tests := []struct {
		name   string
		reward models.RewardDefinition
		want   bool
	}{
		{"milestone met", models.RewardDefinition{Type: models.RewardMilestone, CriteriaValue: 3}, true},
		{"milestone short", models.RewardDefinition{Type: models.RewardMilestone, CriteriaValue: 4}, false},
		{"streak uses longest", models.RewardDefinition{Type: models.RewardStreak, CriteriaValue: 4}, true},
		{"streak short", models.RewardDefinition{Type: models.RewardStreak, CriteriaValue: 5}, false},
		{"pillar met", models.RewardDefinition{Type: models.RewardPillar, CriteriaValue: 2, PillarID: pillarPtr(2)}, true},
		{"other pillar", models.RewardDefinition{Type: models.RewardPillar, CriteriaValue: 1, PillarID: pillarPtr(4)}, false},
		{"zero criteria", models.RewardDefinition{Type: models.RewardPillar, CriteriaValue: 0, PillarID: pillarPtr(5)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEarned(tt.reward, agg))
		})
	}
}

func TestSortRewardsIsStable(t *testing.T) {
	defs := []models.RewardDefinition{
		{ID: 1, Type: models.RewardStreak, CriteriaValue: 7},
		{ID: 2, Type: models.RewardMilestone, CriteriaValue: 10},
		{ID: 3, Type: models.RewardPillar, CriteriaValue: 1, PillarID: pillarPtr(1)},
		{ID: 4, Type: models.RewardMilestone, CriteriaValue: 5},
		{ID: 5, Type: models.RewardStreak, CriteriaValue: 3},
		{ID: 6, Type: models.RewardMilestone, CriteriaValue: 5},
	}
	sorted := SortRewards(defs)
	assert.Equal(t, []int64{4, 6, 2, 5, 1, 3}, rewardIDs(sorted))
	// input untouched
	assert.Equal(t, int64(1), defs[0].ID)
}

func TestNextRewardPicksSmallestGap(t *testing.T) {
	defs := []models.RewardDefinition{
		{ID: 1, Type: models.RewardMilestone, CriteriaValue: 10},
		{ID: 2, Type: models.RewardStreak, CriteriaValue: 5},
		{ID: 3, Type: models.RewardPillar, CriteriaValue: 3, PillarID: pillarPtr(1)},
	}
	agg := Aggregates{
		MilestonesCompleted: 4, // gap 6
		LongestStreak:       3, // gap 2
		PillarProgress:      map[int]PillarStat{1: {Completed: 1}}, // gap 2, later in display order
	}
	state := EvaluateRewards(defs, agg)
	require.NotNil(t, state.Next)
	assert.Equal(t, int64(2), state.Next.ID)
	assert.Equal(t, 60, state.Next.Progress)
	assert.Empty(t, state.Earned)
}

func TestNextRewardAbsentWhenAllEarned(t *testing.T) {
	defs := []models.RewardDefinition{
		{ID: 1, Type: models.RewardMilestone, CriteriaValue: 1},
		{ID: 2, Type: models.RewardStreak, CriteriaValue: 1},
	}
	state := EvaluateRewards(defs, Aggregates{MilestonesCompleted: 5, LongestStreak: 2})
	assert.Nil(t, state.Next)
	assert.Len(t, state.Earned, 2)

	empty := EvaluateRewards(nil, Aggregates{})
	assert.Nil(t, empty.Next)
	assert.NotNil(t, empty.Earned)
}

func TestRewardProgressStaysBelowHundred(t *testing.T) {
	defs := []models.RewardDefinition{{ID: 1, Type: models.RewardMilestone, CriteriaValue: 1000}}
	state := EvaluateRewards(defs, Aggregates{MilestonesCompleted: 999})
	require.NotNil(t, state.Next)
	assert.Equal(t, 99, state.Next.Progress)
}

func TestMilestoneLadder(t *testing.T) {
	assert.Equal(t, MilestoneProgress{Current: 0, Next: 20, Percentage: 0}, MilestoneLadder(0))
	assert.Equal(t, MilestoneProgress{Current: 7, Next: 20, Percentage: 35}, MilestoneLadder(7))
	assert.Equal(t, MilestoneProgress{Current: 26, Next: 20, Percentage: 100}, MilestoneLadder(26))
}

func TestNewlyEarned(t *testing.T) {
	before := RewardsState{Earned: []models.RewardDefinition{{ID: 1}}}
	after := RewardsState{Earned: []models.RewardDefinition{{ID: 1}, {ID: 4}}}
	assert.Equal(t, []int64{4}, rewardIDs(NewlyEarned(before, after)))
	assert.Empty(t, NewlyEarned(after, after))
}
