package progress

import (
	"sort"
	"time"

	"brightsteps/internal/models"
)

// ProgressSummary is the dashboard payload derived from the completion log
type ProgressSummary struct {
	MilestonesCompleted int                `json:"milestones_completed"`
	CurrentStreak       int                `json:"current_streak"`
	LongestStreak       int                `json:"longest_streak"`
	WeeklyChallenges    int                `json:"weekly_challenges"`
	PillarProgress      map[int]PillarStat `json:"pillar_progress"`
	MilestoneProgress   MilestoneProgress  `json:"milestone_progress"`
}

// SummaryFromAggregates shapes aggregates into the summary payload
func SummaryFromAggregates(agg Aggregates) ProgressSummary {
	return ProgressSummary{
		MilestonesCompleted: agg.MilestonesCompleted,
		CurrentStreak:       agg.CurrentStreak,
		LongestStreak:       agg.LongestStreak,
		WeeklyChallenges:    agg.WeeklyChallenges,
		PillarProgress:      agg.PillarProgress,
		MilestoneProgress:   MilestoneLadder(agg.MilestonesCompleted),
	}
}

// TraitStatus is one row of the trait panel
type TraitStatus struct {
	TraitID   int64         `json:"trait_id"`
	TraitName string        `json:"trait_name"`
	PillarID  int           `json:"pillar_id"`
	Score     float64       `json:"score"`
	Tier      Tier          `json:"tier"`
	NextTier  *NextTierInfo `json:"next_tier"`
	RecentXP  int           `json:"recent_xp"`
}

// TraitPanel is the trait and level view for one child
type TraitPanel struct {
	Traits            []TraitStatus `json:"traits"`
	ProfileLevel      ProfileLevel  `json:"profile_level"`
	MostImproved      *TraitTrend   `json:"most_improved"`
	FastestGrowing    *TraitTrend   `json:"fastest_growing"`
	NextTraitToMaster *TraitStatus  `json:"next_trait_to_master"`
}

// AssembleTraitPanel classifies every trait of the taxonomy (plus any scored
// trait outside it) and picks the trend highlights.
func AssembleTraitPanel(traits []models.Trait, scores []models.TraitScore, awards []models.XPAward, asOf time.Time, opts Options) TraitPanel {
	byTrait := make(map[int64]float64, len(scores))
	for _, s := range scores {
		byTrait[s.TraitID] += s.Score
	}

	names := make(map[int64]string, len(traits))
	rows := make(map[int64]models.Trait, len(traits))
	for _, t := range traits {
		names[t.ID] = t.Name
		rows[t.ID] = t
	}
	for id := range byTrait {
		if _, ok := rows[id]; !ok {
			rows[id] = models.Trait{ID: id}
		}
	}

	recent := RecentXP(awards, asOf, opts.TrendWindow)

	panel := TraitPanel{Traits: make([]TraitStatus, 0, len(rows))}
	for _, t := range rows {
		score := byTrait[t.ID]
		panel.Traits = append(panel.Traits, TraitStatus{
			TraitID:   t.ID,
			TraitName: t.Name,
			PillarID:  t.PillarID,
			Score:     score,
			Tier:      ClassifyTier(score, TraitTiers),
			NextTier:  NextTier(score, TraitTiers),
			RecentXP:  recent[t.ID],
		})
	}
	sort.Slice(panel.Traits, func(i, j int) bool { return panel.Traits[i].TraitID < panel.Traits[j].TraitID })

	panel.ProfileLevel = ComputeProfileLevel(scores)
	panel.FastestGrowing = FastestGrowing(recent, names)
	panel.MostImproved = MostImproved(recent, ScoresAt(byTrait, awards, asOf.Add(-opts.TrendWindow)), names)
	panel.NextTraitToMaster = nextTraitToMaster(panel.Traits)
	return panel
}

// nextTraitToMaster is the non-Diamond trait closest to its next tier
func nextTraitToMaster(traits []TraitStatus) *TraitStatus {
	var best *TraitStatus
	for i := range traits {
		t := traits[i]
		if t.NextTier == nil {
			continue
		}
		// traits are sorted by id, so strict comparison keeps the lowest id on ties
		if best == nil || t.NextTier.XPRemaining < best.NextTier.XPRemaining {
			best = &t
		}
	}
	return best
}

// Inputs is everything the assembler needs for one child. The caller fetches it.
type Inputs struct {
	Events  []models.CompletionEvent
	Catalog []models.Challenge
	Rewards []models.RewardDefinition
	Traits  []models.Trait
	Scores  []models.TraitScore
	Awards  []models.XPAward
	AsOf    time.Time
}

// Dashboard composes the summary, rewards and trait panel
type Dashboard struct {
	Summary ProgressSummary `json:"summary"`
	Rewards RewardsState    `json:"rewards"`
	Traits  TraitPanel      `json:"traits"`
}

// Assemble runs the aggregator, reward evaluator and trait calculator over
// one set of inputs. It performs no I/O.
func Assemble(in Inputs, opts Options) Dashboard {
	agg := Aggregate(in.Events, in.Catalog, in.AsOf, opts)
	return Dashboard{
		Summary: SummaryFromAggregates(agg),
		Rewards: EvaluateRewards(in.Rewards, agg),
		Traits:  AssembleTraitPanel(in.Traits, in.Scores, in.Awards, in.AsOf, opts),
	}
}
