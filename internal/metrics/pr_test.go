package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

func hoursAfter(base time.Time, h float64) time.Time {
	return base.Add(time.Duration(h * float64(time.Hour)))
}

func mergedPr(created time.Time, reviews []domain.ReviewEvent, mergedAfterHours float64) domain.PrRecord {
	merged := hoursAfter(created, mergedAfterHours)
	return domain.PrRecord{
		Repo:         "core-api",
		CreatedAt:    created,
		ReviewEvents: reviews,
		MergedAt:     &merged,
	}
}

func TestComputePrTiming(t *testing.T) {
	created := day(0)
	pr := mergedPr(created, []domain.ReviewEvent{
		{At: hoursAfter(created, 4), State: domain.ReviewChangesRequested},
		{At: hoursAfter(created, 20), State: domain.ReviewApproved},
	}, 26)
	pr.Additions = 300
	pr.Deletions = 150

	tm := ComputePrTiming(pr, 400)
	require.NotNil(t, tm.PickupHours)
	require.Equal(t, 4.0, *tm.PickupHours)
	require.NotNil(t, tm.ReviewHours)
	require.Equal(t, 22.0, *tm.ReviewHours)
	require.Equal(t, 2, tm.ReviewRounds)
	require.True(t, tm.Large)
}

func TestComputePrTimingNoReviews(t *testing.T) {
	pr := mergedPr(day(0), nil, 10)
	tm := ComputePrTiming(pr, 400)
	require.Nil(t, tm.PickupHours)
	require.Nil(t, tm.ReviewHours)
	require.Zero(t, tm.ReviewRounds)
}

func TestReviewRounds(t *testing.T) {
	at := day(0)
	ev := func(state string) domain.ReviewEvent {
		at = at.Add(time.Hour)
		return domain.ReviewEvent{At: at, State: state}
	}

	// comments never count
	require.Zero(t, reviewRounds([]domain.ReviewEvent{ev(domain.ReviewCommented)}))

	// consecutive same-state verdicts collapse only at the head
	require.Equal(t, 1, reviewRounds([]domain.ReviewEvent{
		ev(domain.ReviewChangesRequested),
		ev(domain.ReviewChangesRequested),
		ev(domain.ReviewChangesRequested),
	}))

	// after the first state change every verdict counts
	require.Equal(t, 4, reviewRounds([]domain.ReviewEvent{
		ev(domain.ReviewChangesRequested),
		ev(domain.ReviewChangesRequested),
		ev(domain.ReviewApproved),
		ev(domain.ReviewApproved),
		ev(domain.ReviewChangesRequested),
	}))

	// comments interleaved with verdicts are ignored
	require.Equal(t, 2, reviewRounds([]domain.ReviewEvent{
		ev(domain.ReviewChangesRequested),
		ev(domain.ReviewCommented),
		ev(domain.ReviewApproved),
	}))
}

func TestAggregatePrMetrics(t *testing.T) {
	created := day(0)
	closed := hoursAfter(created, 5)
	prs := []domain.PrRecord{
		mergedPr(created, []domain.ReviewEvent{
			{At: hoursAfter(created, 2), State: domain.ReviewApproved},
		}, 8),
		mergedPr(created, []domain.ReviewEvent{
			{At: hoursAfter(created, 6), State: domain.ReviewApproved},
		}, 12),
		{Repo: "core-api", CreatedAt: created, ClosedAt: &closed},
	}
	prs[0].Additions = 500

	m := AggregatePrMetrics(prs, 400)
	require.NotNil(t, m)
	require.Equal(t, 2, m.TotalPrsMerged)
	require.Equal(t, 4.0, *m.PickupHours.P50)
	require.Equal(t, 2, m.PickupHours.Count)
	require.Equal(t, 1.0, m.ReviewRoundsAvg)
	require.Equal(t, 50.0, m.LargePrPct)
	require.NotNil(t, m.MergeRate)
	require.InDelta(t, 2.0/3.0, *m.MergeRate, 0.001)
}

func TestAggregatePrMetricsNoMerged(t *testing.T) {
	closed := day(1)
	require.Nil(t, AggregatePrMetrics(nil, 400))
	require.Nil(t, AggregatePrMetrics([]domain.PrRecord{
		{Repo: "core-api", CreatedAt: day(0), ClosedAt: &closed},
	}, 400))
}
