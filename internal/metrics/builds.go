package metrics

import (
	"time"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

// BuildMetrics is the scope-level CI summary. Nil when the scope has no
// completed builds in the period.
type BuildMetrics struct {
	SuccessRate     float64       `json:"success_rate"`
	AvgDurationMins float64       `json:"avg_duration_mins"`
	TotalBuilds     int           `json:"total_builds"`
	WeeklyTrend     []WeeklyCount `json:"weekly_trend"`
}

// AggregateBuildMetrics summarizes completed builds. Builds still running
// (empty result) are excluded from every figure.
func AggregateBuildMetrics(builds []domain.BuildRecord, now time.Time) *BuildMetrics {
	var (
		completed int
		succeeded int
		totalDur  time.Duration
		started   []time.Time
	)
	for _, b := range builds {
		if b.Result == "" {
			continue
		}
		completed++
		totalDur += b.Duration
		started = append(started, b.StartedAt)
		if b.Result == "SUCCESS" {
			succeeded++
		}
	}
	if completed == 0 {
		return nil
	}
	return &BuildMetrics{
		SuccessRate:     roundTo(float64(succeeded)/float64(completed)*100, 1),
		AvgDurationMins: roundTo(totalDur.Minutes()/float64(completed), 1),
		TotalBuilds:     completed,
		WeeklyTrend:     TrailingWeeklyCounts(started, now, 4),
	}
}
