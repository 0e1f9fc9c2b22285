package progress

import (
	"math"
	"sort"
	"time"

	"brightsteps/internal/models"
)

const (
	// BaseXP is the XP a full-weight trait earns at a 1.0 multiplier
	BaseXP = 10
	// DefaultFeeling applies when neither the request nor the stored event has one
	DefaultFeeling = 3
	MinFeeling     = 1
	MaxFeeling     = 5
	// ProfileCeilingXP is the progress bar target once Diamond is reached
	ProfileCeilingXP = 1200

	// roundingGuard absorbs float error so exact halves round up
	roundingGuard = 1e-9
)

// Tier is a discrete XP classification
type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
	TierDiamond  Tier = "Diamond"
)

// TierThreshold is the minimum XP for a tier
type TierThreshold struct {
	Tier  Tier
	MinXP float64
}

// TraitTiers classify a single trait score
var TraitTiers = []TierThreshold{
	{TierBronze, 0},
	{TierSilver, 15},
	{TierGold, 35},
	{TierPlatinum, 60},
	{TierDiamond, 100},
}

// ProfileTiers classify the sum of all trait scores
var ProfileTiers = []TierThreshold{
	{TierBronze, 0},
	{TierSilver, 200},
	{TierGold, 400},
	{TierPlatinum, 700},
	{TierDiamond, 1000},
}

// ValidateFeeling rejects ratings outside 1..5
func ValidateFeeling(feeling int) error {
	if feeling < MinFeeling || feeling > MaxFeeling {
		return InvalidInput("validate feeling", "feeling %d is outside %d..%d", feeling, MinFeeling, MaxFeeling)
	}
	return nil
}

// ResolveFeeling picks the rating used for XP: the requested one, else the
// one stored on the event, else DefaultFeeling.
func ResolveFeeling(requested, recorded *int) (int, error) {
	switch {
	case requested != nil:
		return *requested, ValidateFeeling(*requested)
	case recorded != nil:
		return *recorded, ValidateFeeling(*recorded)
	default:
		return DefaultFeeling, nil
	}
}

// XPDelta is round-half-up(BaseXP * (0.6 + 0.1*feeling) * weight), never negative
func XPDelta(feeling int, weight float64) int {
	// BaseXP*(6+feeling)/10 keeps the multiplier exact in tenths
	raw := float64(BaseXP*(6+feeling)) * weight / 10
	delta := int(math.Floor(raw + 0.5 + roundingGuard))
	if delta < 0 {
		return 0
	}
	return delta
}

// TraitDelta is the XP one completion adds to one trait
type TraitDelta struct {
	TraitID int64 `json:"trait_id"`
	Delta   int   `json:"delta"`
}

// ComputeXPDeltas converts one completion into per-trait XP. Input is
// validated before anything is computed so a bad weight rejects the whole
// event. Traits whose delta rounds to zero are omitted; a challenge without
// weights yields no deltas.
func ComputeXPDeltas(weights []models.ChallengeTraitWeight, feeling int) ([]TraitDelta, error) {
	if err := ValidateFeeling(feeling); err != nil {
		return nil, err
	}
	for _, w := range weights {
		if math.IsNaN(w.Weight) || w.Validate() != nil {
			return nil, InvalidInput("compute xp", "challenge %d trait %d has weight %v", w.ChallengeID, w.TraitID, w.Weight)
		}
	}

	byTrait := make(map[int64]int, len(weights))
	for _, w := range weights {
		byTrait[w.TraitID] += XPDelta(feeling, w.Weight)
	}

	deltas := make([]TraitDelta, 0, len(byTrait))
	for traitID, d := range byTrait {
		if d > 0 {
			deltas = append(deltas, TraitDelta{TraitID: traitID, Delta: d})
		}
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].TraitID < deltas[j].TraitID })
	return deltas, nil
}

// TraitAward is the outcome of applying XP to one trait
type TraitAward struct {
	TraitID  int64   `json:"trait_id"`
	Delta    int     `json:"delta"`
	NewTotal float64 `json:"new_total"`
}

// ClassifyTier returns the highest tier whose threshold the score meets
func ClassifyTier(score float64, ladder []TierThreshold) Tier {
	tier := ladder[0].Tier
	for _, t := range ladder {
		if score >= t.MinXP {
			tier = t.Tier
		}
	}
	return tier
}

// NextTierInfo describes the next threshold above a score
type NextTierInfo struct {
	Tier        Tier    `json:"tier"`
	Threshold   float64 `json:"threshold"`
	XPRemaining float64 `json:"xp_remaining"`
}

// NextTier returns the smallest threshold above score, or nil at the top tier
func NextTier(score float64, ladder []TierThreshold) *NextTierInfo {
	for _, t := range ladder {
		if t.MinXP > score {
			return &NextTierInfo{Tier: t.Tier, Threshold: t.MinXP, XPRemaining: t.MinXP - score}
		}
	}
	return nil
}

// ProfileLevel summarizes XP across all traits
type ProfileLevel struct {
	TotalXP     float64 `json:"total_xp"`
	Tier        Tier    `json:"tier"`
	NextLevelXP float64 `json:"next_level_xp"`
	Percentage  int     `json:"percentage"`
}

// ComputeProfileLevel classifies the summed trait XP. Past the last
// threshold the target is ProfileCeilingXP and the percentage stops at 100.
func ComputeProfileLevel(scores []models.TraitScore) ProfileLevel {
	total := 0.0
	for _, s := range scores {
		total += s.Score
	}

	next := float64(ProfileCeilingXP)
	if info := NextTier(total, ProfileTiers); info != nil {
		next = info.Threshold
	}

	pct := int(math.Floor(total * 100 / next))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	return ProfileLevel{
		TotalXP:     total,
		Tier:        ClassifyTier(total, ProfileTiers),
		NextLevelXP: next,
		Percentage:  pct,
	}
}

// RecentXP sums ledger deltas per trait awarded within the window ending at asOf
func RecentXP(awards []models.XPAward, asOf time.Time, window time.Duration) map[int64]int {
	since := asOf.Add(-window)
	recent := make(map[int64]int)
	for _, a := range awards {
		if a.AwardedAt.Before(since) || a.AwardedAt.After(asOf) {
			continue
		}
		recent[a.TraitID] += a.Delta
	}
	return recent
}

// TraitTrend names the trait that won a trend comparison
type TraitTrend struct {
	TraitID   int64   `json:"trait_id"`
	TraitName string  `json:"trait_name"`
	RecentXP  int     `json:"recent_xp"`
	Growth    float64 `json:"growth"`
}

// pickTrend returns the trait with the highest value; ties go to the lowest
// trait id so map iteration order never matters
func pickTrend(recent map[int64]int, value func(traitID int64, xp int) float64) (int64, float64, bool) {
	var bestID int64
	var best float64
	found := false
	for traitID, xp := range recent {
		if xp <= 0 {
			continue
		}
		v := value(traitID, xp)
		if !found || v > best || (v == best && traitID < bestID) {
			bestID, best, found = traitID, v, true
		}
	}
	return bestID, best, found
}

// FastestGrowing is the trait with the most XP inside the trend window
func FastestGrowing(recent map[int64]int, names map[int64]string) *TraitTrend {
	id, v, ok := pickTrend(recent, func(_ int64, xp int) float64 { return float64(xp) })
	if !ok {
		return nil
	}
	return &TraitTrend{TraitID: id, TraitName: names[id], RecentXP: recent[id], Growth: v}
}

// ScoresAt rewinds current scores to the given instant by taking back every
// ledger delta awarded at or after it, including awards later than any as-of
// date the caller is evaluating.
func ScoresAt(scores map[int64]float64, awards []models.XPAward, at time.Time) map[int64]float64 {
	out := make(map[int64]float64, len(scores))
	for id, v := range scores {
		out[id] = v
	}
	for _, a := range awards {
		if !a.AwardedAt.Before(at) {
			out[a.TraitID] -= float64(a.Delta)
		}
	}
	return out
}

// MostImproved is the trait whose recent XP is largest relative to its
// baseline, the score it held when the trend window opened. Baselines under
// 1 count as 1.
func MostImproved(recent map[int64]int, baseline map[int64]float64, names map[int64]string) *TraitTrend {
	id, v, ok := pickTrend(recent, func(traitID int64, xp int) float64 {
		before := baseline[traitID]
		if before < 1 {
			before = 1
		}
		return float64(xp) / before
	})
	if !ok {
		return nil
	}
	return &TraitTrend{TraitID: id, TraitName: names[id], RecentXP: recent[id], Growth: v}
}
