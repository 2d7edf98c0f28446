package metrics

import (
	"strings"
	"time"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

// BuildJiraPrIndex maps uppercase issue keys to the merged PRs referencing
// them. Unmerged PRs are skipped; a PR referencing several keys appears under
// each of them.
func BuildJiraPrIndex(prs []domain.PrRecord) map[string][]domain.PrRecord {
	idx := make(map[string][]domain.PrRecord)
	for _, pr := range prs {
		if !pr.Merged() {
			continue
		}
		for _, key := range pr.JiraKeys {
			k := strings.ToUpper(key)
			idx[k] = append(idx[k], pr)
		}
	}
	return idx
}

// ComputePrDevHours derives the development span an issue's pull requests
// evidence: earliest PR creation to the earliest first review, falling back
// to the earliest merge when none of the PRs were reviewed. Returns false
// when no PR is linked to the issue.
func ComputePrDevHours(key string, idx map[string][]domain.PrRecord) (float64, bool) {
	prs := idx[strings.ToUpper(key)]
	if len(prs) == 0 {
		return 0, false
	}
	var start, end *time.Time
	for _, pr := range prs {
		c := pr.CreatedAt
		if start == nil || c.Before(*start) {
			start = &c
		}
		stop := pr.FirstReviewAt()
		if stop == nil {
			stop = pr.MergedAt
		}
		if stop != nil && (end == nil || stop.Before(*end)) {
			end = stop
		}
	}
	if start == nil || end == nil || !end.After(*start) {
		return 0, false
	}
	return end.Sub(*start).Hours(), true
}

// EnhanceDevDurations widens the dev phase of resolved issues when their
// linked PRs show a longer development span than the tracker's status
// history does. Phase totals for the issue grow accordingly; nothing ever
// shrinks.
func EnhanceDevDurations(issues []IssueDurations, idx map[string][]domain.PrRecord) {
	for i := range issues {
		if issues[i].Issue.Resolved == nil {
			continue
		}
		prHours, ok := ComputePrDevHours(issues[i].Issue.Key, idx)
		if !ok {
			continue
		}
		cur := issues[i].Durations.Phases["dev"]
		if prHours > cur {
			if issues[i].Durations.Phases == nil {
				issues[i].Durations.Phases = map[string]float64{}
			}
			issues[i].Durations.Phases["dev"] = prHours
		}
	}
}
