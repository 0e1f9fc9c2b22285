// Package progress turns a child's completion history into streaks, pillar
// progress, reward state and trait XP. Everything here is pure: callers fetch
// the inputs and persist the outputs.
package progress

import (
	"sort"
	"time"

	"brightsteps/internal/models"
)

// Options holds the calendar policy shared by all computations
type Options struct {
	// Location decides where calendar days begin. Nil means UTC.
	Location *time.Location
	// WeekStart is the first day of a counting week.
	WeekStart time.Weekday
	// TrendWindow is how far back recent XP is summed for trait trends.
	TrendWindow time.Duration
}

// DefaultOptions uses UTC days, Sunday weeks and a seven day trend window
func DefaultOptions() Options {
	return Options{
		Location:    time.UTC,
		WeekStart:   time.Sunday,
		TrendWindow: 7 * 24 * time.Hour,
	}
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// PillarStat is the completion ratio for one pillar
type PillarStat struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Aggregates are the raw counts every other component builds on
type Aggregates struct {
	MilestonesCompleted int
	CurrentStreak       int
	LongestStreak       int
	WeeklyChallenges    int
	PillarProgress      map[int]PillarStat
}

// Aggregate computes all counts for one child's history
func Aggregate(events []models.CompletionEvent, catalog []models.Challenge, asOf time.Time, opts Options) Aggregates {
	current := CurrentStreak(events, asOf, opts)
	longest := LongestStreak(events, opts)
	if current > longest {
		longest = current
	}

	return Aggregates{
		MilestonesCompleted: MilestonesCompleted(events),
		CurrentStreak:       current,
		LongestStreak:       longest,
		WeeklyChallenges:    WeeklyCount(events, asOf, opts),
		PillarProgress:      PillarProgress(events, catalog),
	}
}

// dayNumber maps a timestamp to its calendar day in loc, counted from the epoch
func dayNumber(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// activeDays returns the sorted distinct days with at least one completion.
// A zero cutoff keeps every event.
func activeDays(events []models.CompletionEvent, cutoff time.Time, loc *time.Location) []int64 {
	seen := make(map[int64]struct{}, len(events))
	for _, e := range events {
		if !cutoff.IsZero() && e.CompletedAt.After(cutoff) {
			continue
		}
		seen[dayNumber(e.CompletedAt, loc)] = struct{}{}
	}

	days := make([]int64, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// CurrentStreak counts consecutive active days ending at the most recent
// completion on or before asOf. The streak is broken once a whole day with no
// completion lies between that completion and asOf.
func CurrentStreak(events []models.CompletionEvent, asOf time.Time, opts Options) int {
	loc := opts.location()
	days := activeDays(events, asOf, loc)
	if len(days) == 0 {
		return 0
	}

	last := days[len(days)-1]
	if dayNumber(asOf, loc)-last > 1 {
		return 0
	}

	streak := 1
	for i := len(days) - 1; i > 0; i-- {
		if days[i]-days[i-1] != 1 {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak is the longest run of consecutive active days in the history
func LongestStreak(events []models.CompletionEvent, opts Options) int {
	days := activeDays(events, time.Time{}, opts.location())
	if len(days) == 0 {
		return 0
	}

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// WeekStartBoundary is midnight of the most recent week start on or before asOf
func WeekStartBoundary(asOf time.Time, opts Options) time.Time {
	local := asOf.In(opts.location())
	back := (int(local.Weekday()) - int(opts.WeekStart) + 7) % 7
	y, m, d := local.AddDate(0, 0, -back).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, local.Location())
}

// WeeklyCount counts completions between the current week start and asOf
func WeeklyCount(events []models.CompletionEvent, asOf time.Time, opts Options) int {
	boundary := WeekStartBoundary(asOf, opts)
	count := 0
	for _, e := range events {
		if e.CompletedAt.Before(boundary) || e.CompletedAt.After(asOf) {
			continue
		}
		count++
	}
	return count
}

// MilestonesCompleted is the number of distinct challenges ever completed
func MilestonesCompleted(events []models.CompletionEvent) int {
	distinct := make(map[int64]struct{}, len(events))
	for _, e := range events {
		distinct[e.ChallengeID] = struct{}{}
	}
	return len(distinct)
}

// PillarProgress reports, for every pillar, how many of the eligible
// challenges the child has completed at least once. Completions of
// challenges outside the eligible catalog are not counted.
func PillarProgress(events []models.CompletionEvent, catalog []models.Challenge) map[int]PillarStat {
	completed := make(map[int64]struct{}, len(events))
	for _, e := range events {
		completed[e.ChallengeID] = struct{}{}
	}

	stats := make(map[int]PillarStat, models.PillarCount)
	for p := 1; p <= models.PillarCount; p++ {
		stats[p] = PillarStat{}
	}

	counted := make(map[int64]struct{}, len(catalog))
	for _, c := range catalog {
		if _, dup := counted[c.ID]; dup {
			continue
		}
		counted[c.ID] = struct{}{}

		stat := stats[c.PillarID]
		stat.Total++
		if _, ok := completed[c.ID]; ok {
			stat.Completed++
		}
		stats[c.PillarID] = stat
	}

	for p, stat := range stats {
		stat.Percentage = percentOf(stat.Completed, stat.Total)
		stats[p] = stat
	}
	return stats
}

// percentOf is floor(part*100/whole), and 0 when whole is 0
func percentOf(part, whole int) int {
	if whole <= 0 || part <= 0 {
		return 0
	}
	return part * 100 / whole
}
