package metrics

import "sort"

// CanonicalPhaseOrder breaks p50 ties deterministically: the earlier phase
// in the delivery flow wins.
var CanonicalPhaseOrder = []string{
	"backlog", "planning", "dev", "review", "dev_test", "qa", "staging", "done",
}

func phaseRank(phase string) int {
	for i, p := range CanonicalPhaseOrder {
		if p == phase {
			return i
		}
	}
	return len(CanonicalPhaseOrder)
}

// DetectBottleneck returns the phase with the highest p50 among the given
// phase stats, skipping "total" and phases with no samples. Empty string
// means no phase qualified.
func DetectBottleneck(stats map[string]PhaseStat) string {
	best := ""
	var bestP50 float64
	for phase, st := range stats {
		if phase == "total" || st.P50 == nil {
			continue
		}
		if best == "" || *st.P50 > bestP50 ||
			(*st.P50 == bestP50 && phaseRank(phase) < phaseRank(best)) {
			best = phase
			bestP50 = *st.P50
		}
	}
	return best
}

// BottleneckIssue is one offender shown in the dashboard drill-down.
type BottleneckIssue struct {
	Key      string  `json:"key"`
	Summary  string  `json:"summary"`
	Days     float64 `json:"days"`
	URL      string  `json:"url"`
	Parent   *string `json:"parent"`
	Assignee string  `json:"assignee"`
}

// TopBottleneckIssues lists the issues that spent the most time in the
// bottleneck phase, longest first, capped at limit. Parent attribution is
// Epic-only; other parent types are dropped.
func TopBottleneckIssues(issues []IssueDurations, phase, jiraBase string, limit int) []BottleneckIssue {
	var out []BottleneckIssue
	for _, id := range issues {
		hours := id.Durations.Phases[phase]
		if id.Durations.OpenPhase == phase {
			hours += id.Durations.OpenHours
		}
		if hours <= 0 {
			continue
		}
		var parent *string
		if id.Issue.ParentType == "Epic" && id.Issue.ParentSummary != "" {
			s := id.Issue.ParentSummary
			parent = &s
		}
		out = append(out, BottleneckIssue{
			Key:      id.Issue.Key,
			Summary:  id.Issue.Summary,
			Days:     roundTo(hours/24, 2),
			URL:      jiraBase + "/browse/" + id.Issue.Key,
			Parent:   parent,
			Assignee: id.Issue.Assignee,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Days > out[j].Days })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
