package metrics

import (
	"fmt"
	"time"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

// ISOWeekLabel formats t's ISO 8601 week as "YYYY-Www", e.g. "2026-W35".
func ISOWeekLabel(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// mondayOf returns the Monday 00:00 of t's ISO week, in t's location.
func mondayOf(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	day := t.AddDate(0, 0, -(wd - 1))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}

// WeekLabels enumerates every ISO week touching [start, end], in order,
// with no gaps. A label appears even when no sample fell into its week.
func WeekLabels(start, end time.Time) []string {
	var labels []string
	for cur := mondayOf(start); !cur.After(end); cur = cur.AddDate(0, 0, 7) {
		labels = append(labels, ISOWeekLabel(cur))
	}
	return labels
}

// TeamTrends carries the per-week series for a team over the report period.
// Every slice has one entry per label in Weeks; weeks without samples hold
// zero, so a chart renders a continuous axis.
type TeamTrends struct {
	Weeks        []string  `json:"weeks"`
	CycleTimeP50 []float64 `json:"cycle_time_p50"`
	Throughput   []int     `json:"throughput"`
	PrPickup     []float64 `json:"pr_pickup_hours"`
}

// BuildTeamTrends buckets resolved issues and merged PRs by ISO week and
// produces contiguous zero-filled series over [start, end].
func BuildTeamTrends(issues []IssueDurations, prs []domain.PrRecord, excluded map[string]bool, start, end time.Time) TeamTrends {
	labels := WeekLabels(start, end)
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}

	tr := TeamTrends{
		Weeks:        labels,
		CycleTimeP50: make([]float64, len(labels)),
		Throughput:   make([]int, len(labels)),
		PrPickup:     make([]float64, len(labels)),
	}

	cycleSamples := make([][]float64, len(labels))
	pickupSamples := make([][]float64, len(labels))

	for _, id := range issues {
		if id.Issue.Resolved == nil {
			continue
		}
		i, ok := idx[ISOWeekLabel(*id.Issue.Resolved)]
		if !ok {
			continue
		}
		tr.Throughput[i]++
		cycleSamples[i] = append(cycleSamples[i], id.Durations.ActiveHours(excluded))
	}
	for _, pr := range prs {
		if !pr.Merged() {
			continue
		}
		i, ok := idx[ISOWeekLabel(*pr.MergedAt)]
		if !ok {
			continue
		}
		first := pr.FirstReviewAt()
		if first == nil {
			continue
		}
		pickupSamples[i] = append(pickupSamples[i], first.Sub(pr.CreatedAt).Hours())
	}

	for i := range labels {
		if v, ok := Percentile(cycleSamples[i], 0.50); ok {
			tr.CycleTimeP50[i] = roundTo(v/24, 2)
		}
		if v, ok := Percentile(pickupSamples[i], 0.50); ok {
			tr.PrPickup[i] = roundTo(v, 1)
		}
	}
	return tr
}

// WeeklyCount is one bucket of a trailing weekly trend.
type WeeklyCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// TrailingWeeklyCounts buckets timestamps into the n ISO weeks ending at the
// week containing ref, oldest first, zero-filling empty weeks.
func TrailingWeeklyCounts(times []time.Time, ref time.Time, n int) []WeeklyCount {
	out := make([]WeeklyCount, n)
	idx := make(map[string]int, n)
	monday := mondayOf(ref)
	for i := 0; i < n; i++ {
		wk := monday.AddDate(0, 0, -7*(n-1-i))
		label := ISOWeekLabel(wk)
		out[i] = WeeklyCount{Week: label}
		idx[label] = i
	}
	for _, t := range times {
		if i, ok := idx[ISOWeekLabel(t)]; ok {
			out[i].Count++
		}
	}
	return out
}
