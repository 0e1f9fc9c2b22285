package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps/internal/models"
)

// day returns noon UTC on the given day of October 2026 (Oct 18 is a Sunday)
func day(d int) time.Time {
	return time.Date(2026, time.October, d, 12, 0, 0, 0, time.UTC)
}

func done(challengeID int64, pillarID int, at time.Time) models.CompletionEvent {
	return models.CompletionEvent{ChildID: 1, ChallengeID: challengeID, PillarID: pillarID, CompletedAt: at}
}

func catalogOf(pillarCounts map[int]int) []models.Challenge {
	var out []models.Challenge
	id := int64(1)
	for p := 1; p <= models.PillarCount; p++ {
		for i := 0; i < pillarCounts[p]; i++ {
			out = append(out, models.Challenge{ID: id, PillarID: p})
			id++
		}
	}
	return out
}

func TestAggregateEmptyHistory(t *testing.T) {
	agg := Aggregate(nil, catalogOf(map[int]int{1: 3, 2: 2}), day(18), DefaultOptions())
	summary := SummaryFromAggregates(agg)

	assert.Equal(t, 0, summary.MilestonesCompleted)
	assert.Equal(t, 0, summary.CurrentStreak)
	assert.Equal(t, 0, summary.LongestStreak)
	assert.Equal(t, 0, summary.WeeklyChallenges)
	require.Len(t, summary.PillarProgress, models.PillarCount)
	for p, stat := range summary.PillarProgress {
		assert.Equal(t, 0, stat.Completed, "pillar %d", p)
		assert.Equal(t, 0, stat.Percentage, "pillar %d", p)
	}
	assert.Equal(t, MilestoneProgress{Current: 0, Next: 20, Percentage: 0}, summary.MilestoneProgress)
}

func TestCurrentStreak(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		name   string
		events []models.CompletionEvent
		asOf   time.Time
		want   int
	}{
		{name: "no events", asOf: day(18), want: 0},
		{name: "completed today", events: []models.CompletionEvent{done(1, 1, day(18))}, asOf: day(18), want: 1},
		{name: "completed yesterday keeps streak alive", events: []models.CompletionEvent{
			done(1, 1, day(16)), done(2, 1, day(17)),
		}, asOf: day(18), want: 2},
		{name: "three days then a skipped day", events: []models.CompletionEvent{
			done(1, 1, day(14)), done(2, 1, day(15)), done(3, 1, day(16)),
		}, asOf: day(18), want: 0},
		{name: "skipped day then completed today", events: []models.CompletionEvent{
			done(1, 1, day(14)), done(2, 1, day(15)), done(3, 1, day(16)), done(4, 1, day(18)),
		}, asOf: day(18), want: 1},
		{name: "several completions on one day count once", events: []models.CompletionEvent{
			done(1, 1, day(17)), done(2, 2, day(17).Add(time.Hour)), done(3, 3, day(18)),
		}, asOf: day(18), want: 2},
		{name: "events after asOf are ignored", events: []models.CompletionEvent{
			done(1, 1, day(10)), done(2, 1, day(11)),
		}, asOf: day(10), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStreak(tt.events, tt.asOf, opts))
		})
	}
}

func TestScenarioSkippedDayKeepsLongest(t *testing.T) {
	events := []models.CompletionEvent{
		done(1, 1, day(14)), done(2, 1, day(15)), done(3, 1, day(16)),
	}
	agg := Aggregate(events, nil, day(18), DefaultOptions())
	assert.Equal(t, 0, agg.CurrentStreak)
	assert.Equal(t, 3, agg.LongestStreak)

	events = append(events, done(4, 2, day(18)))
	agg = Aggregate(events, nil, day(18), DefaultOptions())
	assert.Equal(t, 1, agg.CurrentStreak)
	assert.Equal(t, 3, agg.LongestStreak)
}

func TestLongestStreakUsesWholeHistory(t *testing.T) {
	events := []models.CompletionEvent{
		done(1, 1, day(1)), done(2, 1, day(2)), done(3, 1, day(3)), done(4, 1, day(4)),
		done(5, 1, day(10)), done(6, 1, day(11)),
	}
	assert.Equal(t, 4, LongestStreak(events, DefaultOptions()))
	assert.Equal(t, 0, LongestStreak(nil, DefaultOptions()))
}

func TestCurrentNeverExceedsLongest(t *testing.T) {
	histories := [][]models.CompletionEvent{
		nil,
		{done(1, 1, day(18))},
		{done(1, 1, day(1)), done(2, 1, day(17)), done(3, 1, day(18))},
		{done(1, 1, day(5)), done(2, 1, day(6)), done(3, 1, day(7)), done(4, 1, day(17))},
		{done(1, 1, day(20)), done(2, 1, day(21)), done(3, 1, day(22))},
	}
	for i, events := range histories {
		for d := 1; d <= 25; d++ {
			agg := Aggregate(events, nil, day(d), DefaultOptions())
			assert.LessOrEqual(t, agg.CurrentStreak, agg.LongestStreak, "history %d asOf day %d", i, d)
		}
	}
}

func TestStreakUsesConfiguredTimezone(t *testing.T) {
	// 23:30 UTC on the 16th is already the 17th in UTC+2
	loc := time.FixedZone("UTC+2", 2*3600)
	events := []models.CompletionEvent{
		done(1, 1, time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC)),
		done(2, 1, day(18)),
	}
	utc := DefaultOptions()
	local := DefaultOptions()
	local.Location = loc

	assert.Equal(t, 1, CurrentStreak(events, day(18), utc))
	assert.Equal(t, 2, CurrentStreak(events, day(18), local))
}

func TestWeekStartBoundary(t *testing.T) {
	opts := DefaultOptions()
	// Oct 21 2026 is a Wednesday
	got := WeekStartBoundary(day(21), opts)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), got)

	opts.WeekStart = time.Monday
	got = WeekStartBoundary(day(21), opts)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), got)

	// On the week start day itself the boundary is that midnight
	got = WeekStartBoundary(day(19), opts)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), got)
}

func TestWeeklyCount(t *testing.T) {
	events := []models.CompletionEvent{
		done(1, 1, time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC)), // Saturday, last week
		done(2, 1, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)),   // Sunday midnight, counts
		done(3, 2, day(20)),
		done(4, 2, day(23)), // after asOf
	}
	assert.Equal(t, 2, WeeklyCount(events, day(21), DefaultOptions()))
}

func TestPillarProgress(t *testing.T) {
	catalog := catalogOf(map[int]int{1: 4, 2: 2, 3: 1})
	// ids: pillar1 = 1..4, pillar2 = 5..6, pillar3 = 7
	events := []models.CompletionEvent{
		done(1, 1, day(1)),
		done(1, 1, day(3)), // same challenge again must not inflate
		done(2, 1, day(2)),
		done(5, 2, day(2)),
		done(6, 2, day(4)),
		done(99, 3, day(4)), // outside the eligible catalog
	}

	stats := PillarProgress(events, catalog)
	assert.Equal(t, PillarStat{Completed: 2, Total: 4, Percentage: 50}, stats[1])
	assert.Equal(t, PillarStat{Completed: 2, Total: 2, Percentage: 100}, stats[2])
	assert.Equal(t, PillarStat{Completed: 0, Total: 1, Percentage: 0}, stats[3])
	assert.Equal(t, PillarStat{}, stats[4])
	assert.Equal(t, PillarStat{}, stats[5])
}

func TestPillarPercentageFloors(t *testing.T) {
	catalog := catalogOf(map[int]int{1: 3})
	stats := PillarProgress([]models.CompletionEvent{done(1, 1, day(1))}, catalog)
	assert.Equal(t, 33, stats[1].Percentage)
}

func TestZeroTotalPillarsHaveZeroPercentage(t *testing.T) {
	stats := PillarProgress([]models.CompletionEvent{done(1, 1, day(1))}, nil)
	for p := 1; p <= models.PillarCount; p++ {
		assert.Equal(t, 0, stats[p].Total)
		assert.Equal(t, 0, stats[p].Percentage)
	}
}

func TestMilestonesCompletedIsDistinct(t *testing.T) {
	events := []models.CompletionEvent{done(1, 1, day(1)), done(1, 1, day(2)), done(2, 3, day(2))}
	assert.Equal(t, 2, MilestonesCompleted(events))
}
