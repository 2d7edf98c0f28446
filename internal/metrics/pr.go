package metrics

import (
	"github.com/rickybien/performance-dashboard/internal/domain"
)

// PrTiming is the per-PR derivation: pickup and review spans plus the
// actionable review-round count. Pickup is nil when the PR was never
// reviewed; review is nil when unreviewed or unmerged.
type PrTiming struct {
	PickupHours  *float64
	ReviewHours  *float64
	ReviewRounds int
	Large        bool
}

// ComputePrTiming derives the timing facts for a single pull request.
func ComputePrTiming(pr domain.PrRecord, largeThreshold int) PrTiming {
	t := PrTiming{
		ReviewRounds: reviewRounds(pr.ReviewEvents),
		Large:        pr.Additions+pr.Deletions > largeThreshold,
	}
	first := pr.FirstReviewAt()
	if first == nil {
		return t
	}
	pickup := first.Sub(pr.CreatedAt).Hours()
	t.PickupHours = &pickup
	if pr.MergedAt != nil {
		review := pr.MergedAt.Sub(*first).Hours()
		t.ReviewHours = &review
	}
	return t
}

// reviewRounds counts actionable verdicts (approvals and change requests;
// plain comments never count). Consecutive same-state verdicts collapse into
// one round only at the very head of the timeline; after the first state
// change every actionable verdict increments the counter.
func reviewRounds(events []domain.ReviewEvent) int {
	rounds := 0
	head := true
	headState := ""
	for _, ev := range events {
		if ev.State != domain.ReviewApproved && ev.State != domain.ReviewChangesRequested {
			continue
		}
		if rounds == 0 {
			rounds = 1
			headState = ev.State
			continue
		}
		if head && ev.State == headState {
			continue
		}
		head = false
		rounds++
	}
	return rounds
}

// PrMetrics is the scope-level PR summary. MergeRate is nil when the scope
// saw neither merges nor unmerged closes.
type PrMetrics struct {
	TotalPrsMerged  int       `json:"total_prs_merged"`
	PickupHours     PhaseStat `json:"pickup_hours"`
	ReviewHours     PhaseStat `json:"review_hours"`
	ReviewRoundsAvg float64   `json:"review_rounds_avg"`
	LargePrPct      float64   `json:"large_pr_pct"`
	MergeRate       *float64  `json:"merge_rate"`
}

// AggregatePrMetrics pools the pickup and review spans of every merged PR in
// scope and summarizes them with the shared percentile rule. Returns nil
// when the scope has no merged PRs.
func AggregatePrMetrics(prs []domain.PrRecord, largeThreshold int) *PrMetrics {
	var (
		merged      int
		closedNoMrg int
		largeCount  int
		roundsTotal int
		pickupHours []float64
		reviewHours []float64
	)
	for _, pr := range prs {
		if pr.ClosedAt != nil && !pr.Merged() {
			closedNoMrg++
			continue
		}
		if !pr.Merged() {
			continue
		}
		merged++
		t := ComputePrTiming(pr, largeThreshold)
		if t.PickupHours != nil {
			pickupHours = append(pickupHours, *t.PickupHours)
		}
		if t.ReviewHours != nil {
			reviewHours = append(reviewHours, *t.ReviewHours)
		}
		if t.Large {
			largeCount++
		}
		roundsTotal += t.ReviewRounds
	}
	if merged == 0 {
		return nil
	}
	m := &PrMetrics{
		TotalPrsMerged:  merged,
		PickupHours:     HourStats(pickupHours),
		ReviewHours:     HourStats(reviewHours),
		ReviewRoundsAvg: roundTo(float64(roundsTotal)/float64(merged), 1),
		LargePrPct:      roundTo(float64(largeCount)/float64(merged)*100, 1),
	}
	if merged+closedNoMrg > 0 {
		rate := roundTo(float64(merged)/float64(merged+closedNoMrg), 3)
		m.MergeRate = &rate
	}
	return m
}
