package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps/internal/models"
)

func intPtr(v int) *int { return &v }

func TestXPDelta(t *testing.T) {
	tests := []struct {
		name    string
		feeling int
		weight  float64
		want    int
	}{
		{"feeling 5 half weight rounds half up", 5, 0.5, 6},
		{"neutral full weight", 3, 1.0, 9},
		{"feeling 1 full weight", 1, 1.0, 7},
		{"feeling 5 full weight", 5, 1.0, 11},
		{"feeling 4 quarter weight is exactly 2.5", 4, 0.25, 3},
		{"small weight rounds down", 3, 0.05, 0},
		{"feeling 2 weight 0.35", 2, 0.35, 3},
		{"zero weight", 5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, XPDelta(tt.feeling, tt.weight))
		})
	}
}

func TestComputeXPDeltasScenario(t *testing.T) {
	weights := []models.ChallengeTraitWeight{{ChallengeID: 3, TraitID: 8, Weight: 0.5}}
	deltas, err := ComputeXPDeltas(weights, 5)
	require.NoError(t, err)
	assert.Equal(t, []TraitDelta{{TraitID: 8, Delta: 6}}, deltas)
}

func TestComputeXPDeltasOrdersAndMerges(t *testing.T) {
	weights := []models.ChallengeTraitWeight{
		{ChallengeID: 1, TraitID: 9, Weight: 1},
		{ChallengeID: 1, TraitID: 2, Weight: 0.5},
		{ChallengeID: 1, TraitID: 4, Weight: 0.01},
	}
	deltas, err := ComputeXPDeltas(weights, 3)
	require.NoError(t, err)
	assert.Equal(t, []TraitDelta{{TraitID: 2, Delta: 5}, {TraitID: 9, Delta: 9}}, deltas)
}

func TestComputeXPDeltasWithoutWeights(t *testing.T) {
	deltas, err := ComputeXPDeltas(nil, DefaultFeeling)
	require.NoError(t, err)
	assert.Empty(t, deltas)
}

func TestComputeXPDeltasRejectsBadInput(t *testing.T) {
	_, err := ComputeXPDeltas(nil, 6)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = ComputeXPDeltas([]models.ChallengeTraitWeight{
		{TraitID: 1, Weight: 0.5},
		{TraitID: 2, Weight: -0.2},
	}, 3)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestResolveFeeling(t *testing.T) {
	f, err := ResolveFeeling(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFeeling, f)

	f, err = ResolveFeeling(nil, intPtr(5))
	require.NoError(t, err)
	assert.Equal(t, 5, f)

	f, err = ResolveFeeling(intPtr(2), intPtr(5))
	require.NoError(t, err)
	assert.Equal(t, 2, f)

	_, err = ResolveFeeling(intPtr(0), nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestClassifyTraitTierBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{0, TierBronze},
		{14, TierBronze},
		{15, TierSilver},
		{34, TierSilver},
		{35, TierGold},
		{59.5, TierGold},
		{60, TierPlatinum},
		{99, TierPlatinum},
		{100, TierDiamond},
		{450, TierDiamond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyTier(tt.score, TraitTiers), "score %v", tt.score)
	}
}

func TestNextTier(t *testing.T) {
	next := NextTier(12, TraitTiers)
	require.NotNil(t, next)
	assert.Equal(t, TierSilver, next.Tier)
	assert.Equal(t, 3.0, next.XPRemaining)

	next = NextTier(15, TraitTiers)
	require.NotNil(t, next)
	assert.Equal(t, TierGold, next.Tier)
	assert.Equal(t, 20.0, next.XPRemaining)

	assert.Nil(t, NextTier(100, TraitTiers))
}

func TestComputeProfileLevel(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   ProfileLevel
	}{
		{"empty", nil, ProfileLevel{TotalXP: 0, Tier: TierBronze, NextLevelXP: 200, Percentage: 0}},
		{"silver", []float64{150, 100}, ProfileLevel{TotalXP: 250, Tier: TierSilver, NextLevelXP: 400, Percentage: 62}},
		{"exactly diamond", []float64{1000}, ProfileLevel{TotalXP: 1000, Tier: TierDiamond, NextLevelXP: 1200, Percentage: 83}},
		{"past the ceiling", []float64{900, 600}, ProfileLevel{TotalXP: 1500, Tier: TierDiamond, NextLevelXP: 1200, Percentage: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var scores []models.TraitScore
			for i, s := range tt.scores {
				scores = append(scores, models.TraitScore{TraitID: int64(i + 1), Score: s})
			}
			assert.Equal(t, tt.want, ComputeProfileLevel(scores))
		})
	}
}

func TestRecentXPWindow(t *testing.T) {
	asOf := day(18)
	awards := []models.XPAward{
		{TraitID: 1, Delta: 5, AwardedAt: day(17)},
		{TraitID: 1, Delta: 4, AwardedAt: day(11)}, // exactly seven days back, inside
		{TraitID: 1, Delta: 9, AwardedAt: day(10)}, // outside
		{TraitID: 2, Delta: 3, AwardedAt: day(19)}, // future
	}
	recent := RecentXP(awards, asOf, 7*24*time.Hour)
	assert.Equal(t, map[int64]int{1: 9}, recent)
}

func TestTrendTiesBreakOnTraitID(t *testing.T) {
	recent := map[int64]int{7: 10, 3: 10, 5: 4}
	names := map[int64]string{3: "Curiosity", 5: "Grit", 7: "Kindness"}

	fastest := FastestGrowing(recent, names)
	require.NotNil(t, fastest)
	assert.Equal(t, int64(3), fastest.TraitID)
	assert.Equal(t, "Curiosity", fastest.TraitName)

	// trait 5 grew from 1 to 5, the others from 40 to 50
	baseline := map[int64]float64{3: 40, 5: 1, 7: 40}
	improved := MostImproved(recent, baseline, names)
	require.NotNil(t, improved)
	assert.Equal(t, int64(5), improved.TraitID)

	assert.Nil(t, FastestGrowing(map[int64]int{}, names))
	assert.Nil(t, MostImproved(nil, baseline, names))
}

func TestScoresAt(t *testing.T) {
	scores := map[int64]float64{1: 30, 2: 30}
	awards := []models.XPAward{
		{TraitID: 1, Delta: 10, AwardedAt: day(16)},
		{TraitID: 2, Delta: 10, AwardedAt: day(11)}, // at the cutoff, taken back
		{TraitID: 2, Delta: 15, AwardedAt: day(20)},
		{TraitID: 1, Delta: 7, AwardedAt: day(5)}, // before the cutoff, kept
	}

	got := ScoresAt(scores, awards, day(11))
	assert.Equal(t, map[int64]float64{1: 20, 2: 5}, got)
	assert.Equal(t, 30.0, scores[1], "input map is not modified")
}
