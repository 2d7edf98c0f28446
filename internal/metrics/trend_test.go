package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

func TestISOWeekLabel(t *testing.T) {
	require.Equal(t, "2026-W01", ISOWeekLabel(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	// ISO year differs from calendar year at the boundary
	require.Equal(t, "2025-W01", ISOWeekLabel(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
}

func TestWeekLabelsContiguous(t *testing.T) {
	labels := WeekLabels(day(0), day(27))
	require.Len(t, labels, 4)
	for i := 1; i < len(labels); i++ {
		require.NotEqual(t, labels[i-1], labels[i])
	}
	require.Equal(t, ISOWeekLabel(day(0)), labels[0])
	require.Equal(t, ISOWeekLabel(day(21)), labels[3])
}

func resolvedIssue(key string, created, resolved time.Time, activeHours float64) IssueDurations {
	return IssueDurations{
		Issue: domain.IssueRecord{Key: key, Project: "CORE", Created: created, Resolved: &resolved},
		Durations: PhaseDuration{
			Phases: map[string]float64{"dev": activeHours},
		},
	}
}

func TestBuildTeamTrendsZeroFill(t *testing.T) {
	issues := []IssueDurations{
		resolvedIssue("CORE-1", day(0), day(1), 48),
		resolvedIssue("CORE-2", day(0), day(2), 96),
		resolvedIssue("CORE-3", day(0), day(15), 24),
	}
	prs := []domain.PrRecord{
		mergedPr(day(14), []domain.ReviewEvent{
			{At: hoursAfter(day(14), 3), State: domain.ReviewApproved},
		}, 30),
	}

	tr := BuildTeamTrends(issues, prs, excludedFromTotal, day(0), day(27))

	require.Len(t, tr.Weeks, 4)
	require.Equal(t, []int{2, 0, 1, 0}, tr.Throughput)
	require.Equal(t, []float64{3.0, 0, 1.0, 0}, tr.CycleTimeP50)
	require.Equal(t, []float64{0, 0, 3.0, 0}, tr.PrPickup)
}

func TestBuildTeamTrendsIgnoresOutOfWindow(t *testing.T) {
	issues := []IssueDurations{
		resolvedIssue("CORE-1", day(-20), day(-10), 48),
	}
	tr := BuildTeamTrends(issues, nil, excludedFromTotal, day(0), day(27))
	require.Equal(t, []int{0, 0, 0, 0}, tr.Throughput)
}

func TestTrailingWeeklyCounts(t *testing.T) {
	times := []time.Time{day(27), day(27), day(13), day(-10)}
	buckets := TrailingWeeklyCounts(times, day(27), 4)

	require.Len(t, buckets, 4)
	require.Equal(t, ISOWeekLabel(day(6)), buckets[0].Week)
	require.Equal(t, ISOWeekLabel(day(27)), buckets[3].Week)
	require.Equal(t, []int{0, 1, 0, 2}, []int{
		buckets[0].Count, buckets[1].Count, buckets[2].Count, buckets[3].Count,
	})
}
