package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

func TestBuildJiraPrIndex(t *testing.T) {
	merged := day(3)
	prs := []domain.PrRecord{
		{Repo: "core-api", Number: 1, JiraKeys: []string{"core-1", "CORE-2"}, MergedAt: &merged},
		{Repo: "core-api", Number: 2, JiraKeys: []string{"CORE-1"}},
	}

	idx := BuildJiraPrIndex(prs)
	require.Len(t, idx["CORE-1"], 1, "unmerged PRs are skipped, keys are uppercased")
	require.Len(t, idx["CORE-2"], 1)
}

func TestComputePrDevHours(t *testing.T) {
	merged := hoursAfter(day(0), 60)
	prs := []domain.PrRecord{
		{
			Number:    1,
			JiraKeys:  []string{"CORE-1"},
			CreatedAt: day(1),
			ReviewEvents: []domain.ReviewEvent{
				{At: hoursAfter(day(1), 30), State: domain.ReviewApproved},
			},
			MergedAt: &merged,
		},
		{
			Number:    2,
			JiraKeys:  []string{"CORE-1"},
			CreatedAt: day(0),
			MergedAt:  &merged,
		},
	}
	idx := BuildJiraPrIndex(prs)

	// earliest creation (PR 2 at day 0) to earliest stop (PR 1 first review
	// at day 1 + 30h = 54h after day 0)
	hours, ok := ComputePrDevHours("CORE-1", idx)
	require.True(t, ok)
	require.Equal(t, 54.0, hours)

	_, ok = ComputePrDevHours("CORE-9", idx)
	require.False(t, ok)
}

func TestComputePrDevHoursFallbackToMerge(t *testing.T) {
	merged := hoursAfter(day(0), 40)
	idx := BuildJiraPrIndex([]domain.PrRecord{
		{Number: 1, JiraKeys: []string{"CORE-1"}, CreatedAt: day(0), MergedAt: &merged},
	})

	hours, ok := ComputePrDevHours("CORE-1", idx)
	require.True(t, ok)
	require.Equal(t, 40.0, hours)
}

func TestEnhanceDevDurations(t *testing.T) {
	resolved := day(5)
	merged := hoursAfter(day(0), 72)
	prs := []domain.PrRecord{
		{Number: 1, JiraKeys: []string{"CORE-1", "CORE-2", "CORE-3"}, CreatedAt: day(0), MergedAt: &merged},
	}

	issues := []IssueDurations{
		{
			// Jira under-records dev; the PR span is wider
			Issue:     domain.IssueRecord{Key: "CORE-1", Resolved: &resolved},
			Durations: PhaseDuration{Phases: map[string]float64{"dev": 2, "review": 10}},
		},
		{
			// Jira already records more than the PR span shows
			Issue:     domain.IssueRecord{Key: "CORE-2", Resolved: &resolved},
			Durations: PhaseDuration{Phases: map[string]float64{"dev": 100}},
		},
		{
			// unresolved issues are never widened
			Issue:     domain.IssueRecord{Key: "CORE-3"},
			Durations: PhaseDuration{Phases: map[string]float64{"dev": 2}},
		},
	}

	EnhanceDevDurations(issues, BuildJiraPrIndex(prs))

	require.Equal(t, 72.0, issues[0].Durations.Phases["dev"])
	require.Equal(t, 10.0, issues[0].Durations.Phases["review"])
	require.Equal(t, 100.0, issues[1].Durations.Phases["dev"])
	require.Equal(t, 2.0, issues[2].Durations.Phases["dev"])
}
