package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps/internal/models"
)

var taxonomy = []models.Trait{
	{ID: 1, Name: "Self-Reliance", PillarID: 1},
	{ID: 2, Name: "Persistence", PillarID: 2},
	{ID: 3, Name: "Speaking Up", PillarID: 3},
}

func TestScenarioTraitReachesDiamond(t *testing.T) {
	scores := []models.TraitScore{{TraitID: 1, Score: 94}}
	deltas, err := ComputeXPDeltas([]models.ChallengeTraitWeight{{TraitID: 1, Weight: 0.55}}, 5)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	scores[0].Score += float64(deltas[0].Delta)
	require.Equal(t, 100.0, scores[0].Score)

	panel := AssembleTraitPanel(taxonomy[:1], scores, nil, day(18), DefaultOptions())
	require.Len(t, panel.Traits, 1)
	assert.Equal(t, TierDiamond, panel.Traits[0].Tier)
	assert.Nil(t, panel.Traits[0].NextTier)
	assert.Nil(t, panel.NextTraitToMaster)
}

func TestAssembleTraitPanel(t *testing.T) {
	scores := []models.TraitScore{
		{TraitID: 1, Score: 120},
		{TraitID: 2, Score: 30},
		{TraitID: 9, Score: 4}, // scored but not in taxonomy
	}
	awards := []models.XPAward{
		{TraitID: 2, Delta: 6, AwardedAt: day(17)},
		{TraitID: 1, Delta: 9, AwardedAt: day(16)},
		{TraitID: 1, Delta: 50, AwardedAt: day(2)},
	}

	panel := AssembleTraitPanel(taxonomy, scores, awards, day(18), DefaultOptions())

	require.Len(t, panel.Traits, 4)
	assert.Equal(t, []int64{1, 2, 3, 9}, []int64{
		panel.Traits[0].TraitID, panel.Traits[1].TraitID, panel.Traits[2].TraitID, panel.Traits[3].TraitID,
	})
	assert.Equal(t, TierDiamond, panel.Traits[0].Tier)
	assert.Equal(t, TierSilver, panel.Traits[1].Tier)
	assert.Equal(t, TierBronze, panel.Traits[2].Tier)
	assert.Equal(t, 0.0, panel.Traits[2].Score)
	assert.Equal(t, 9, panel.Traits[0].RecentXP)

	assert.Equal(t, 154.0, panel.ProfileLevel.TotalXP)
	assert.Equal(t, TierBronze, panel.ProfileLevel.Tier)

	require.NotNil(t, panel.FastestGrowing)
	assert.Equal(t, int64(1), panel.FastestGrowing.TraitID)
	require.NotNil(t, panel.MostImproved)
	assert.Equal(t, int64(2), panel.MostImproved.TraitID)

	// trait 2 needs 5 to reach Gold, trait 9 needs 11, trait 3 needs 15
	require.NotNil(t, panel.NextTraitToMaster)
	assert.Equal(t, int64(2), panel.NextTraitToMaster.TraitID)
	assert.Equal(t, 5.0, panel.NextTraitToMaster.NextTier.XPRemaining)
}

func TestMostImprovedIgnoresXPAfterAsOf(t *testing.T) {
	scores := []models.TraitScore{{TraitID: 1, Score: 30}, {TraitID: 2, Score: 30}}
	awards := []models.XPAward{
		{TraitID: 1, Delta: 10, AwardedAt: day(16)},
		{TraitID: 2, Delta: 10, AwardedAt: day(16)},
		{TraitID: 2, Delta: 15, AwardedAt: day(20)},
	}

	// as of the 18th trait 1 went 20 -> 30 and trait 2 went 5 -> 15
	panel := AssembleTraitPanel(taxonomy, scores, awards, day(18), DefaultOptions())
	require.NotNil(t, panel.MostImproved)
	assert.Equal(t, int64(2), panel.MostImproved.TraitID)
	assert.Equal(t, 10, panel.MostImproved.RecentXP)
	assert.Equal(t, 2.0, panel.MostImproved.Growth)
}

func TestNextTraitToMasterTieUsesLowestID(t *testing.T) {
	scores := []models.TraitScore{{TraitID: 3, Score: 10}, {TraitID: 2, Score: 10}}
	panel := AssembleTraitPanel(taxonomy, scores, nil, day(18), DefaultOptions())
	require.NotNil(t, panel.NextTraitToMaster)
	assert.Equal(t, int64(2), panel.NextTraitToMaster.TraitID)
	assert.Nil(t, panel.FastestGrowing)
	assert.Nil(t, panel.MostImproved)
}

func TestAssembleDashboard(t *testing.T) {
	catalog := []models.Challenge{
		{ID: 1, PillarID: 1}, {ID: 2, PillarID: 1}, {ID: 3, PillarID: 2},
	}
	events := []models.CompletionEvent{
		done(1, 1, day(16)), done(2, 1, day(17)), done(3, 2, day(18)),
	}
	rewards := []models.RewardDefinition{
		{ID: 1, Type: models.RewardMilestone, CriteriaValue: 3},
		{ID: 2, Type: models.RewardStreak, CriteriaValue: 5},
		{ID: 3, Type: models.RewardPillar, CriteriaValue: 2, PillarID: pillarPtr(1)},
	}

	dash := Assemble(Inputs{
		Events:  events,
		Catalog: catalog,
		Rewards: rewards,
		Traits:  taxonomy,
		AsOf:    day(18),
	}, DefaultOptions())

	assert.Equal(t, 3, dash.Summary.MilestonesCompleted)
	assert.Equal(t, 3, dash.Summary.CurrentStreak)
	assert.Equal(t, 3, dash.Summary.LongestStreak)
	assert.Equal(t, 1, dash.Summary.WeeklyChallenges)
	assert.Equal(t, PillarStat{Completed: 2, Total: 2, Percentage: 100}, dash.Summary.PillarProgress[1])
	assert.Equal(t, MilestoneProgress{Current: 3, Next: 20, Percentage: 15}, dash.Summary.MilestoneProgress)

	assert.Equal(t, []int64{1, 3}, rewardIDs(dash.Rewards.Earned))
	require.NotNil(t, dash.Rewards.Next)
	assert.Equal(t, int64(2), dash.Rewards.Next.ID)
	assert.Equal(t, 60, dash.Rewards.Next.Progress)

	assert.Len(t, dash.Traits.Traits, 3)
	assert.Equal(t, TierBronze, dash.Traits.ProfileLevel.Tier)
}
