package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

func stat(p50 float64, count int) PhaseStat {
	return PhaseStat{P50: &p50, P85: &p50, Count: count}
}

func TestDetectBottleneck(t *testing.T) {
	stats := map[string]PhaseStat{
		"dev":    stat(2.0, 5),
		"review": stat(4.5, 5),
		"qa":     stat(1.0, 3),
		"total":  stat(9.0, 5),
	}
	require.Equal(t, "review", DetectBottleneck(stats))
}

func TestDetectBottleneckTieBreak(t *testing.T) {
	stats := map[string]PhaseStat{
		"qa":  stat(3.0, 2),
		"dev": stat(3.0, 2),
	}
	// earlier phase in the flow wins on equal p50
	require.Equal(t, "dev", DetectBottleneck(stats))
}

func TestDetectBottleneckSkipsEmpty(t *testing.T) {
	require.Empty(t, DetectBottleneck(map[string]PhaseStat{
		"dev":   {Count: 0},
		"total": stat(9.0, 5),
	}))
}

func TestTopBottleneckIssues(t *testing.T) {
	issues := []IssueDurations{
		{
			Issue: domain.IssueRecord{
				Key: "CORE-1", Summary: "slow one", Assignee: "ann",
				ParentType: "Epic", ParentSummary: "Checkout revamp",
			},
			Durations: PhaseDuration{Phases: map[string]float64{"review": 96}},
		},
		{
			Issue:     domain.IssueRecord{Key: "CORE-2", Summary: "fast one", ParentType: "Story", ParentSummary: "not an epic"},
			Durations: PhaseDuration{Phases: map[string]float64{"review": 24}},
		},
		{
			Issue:     domain.IssueRecord{Key: "CORE-3", Summary: "untouched"},
			Durations: PhaseDuration{Phases: map[string]float64{"dev": 48}},
		},
		{
			Issue:     domain.IssueRecord{Key: "CORE-4", Summary: "still open"},
			Durations: PhaseDuration{OpenPhase: "review", OpenHours: 240},
		},
	}

	top := TopBottleneckIssues(issues, "review", "https://jira.example.com", 5)

	require.Len(t, top, 3)
	require.Equal(t, "CORE-4", top[0].Key)
	require.Equal(t, 10.0, top[0].Days)
	require.Equal(t, "CORE-1", top[1].Key)
	require.Equal(t, "https://jira.example.com/browse/CORE-1", top[1].URL)
	require.NotNil(t, top[1].Parent)
	require.Equal(t, "Checkout revamp", *top[1].Parent)
	// non-Epic parents are not attributed
	require.Nil(t, top[2].Parent)

	require.Len(t, TopBottleneckIssues(issues, "review", "", 2), 2)
}
