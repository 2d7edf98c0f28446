package metrics

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/domain"
)

// Phases that measure waiting outside the delivery flow. They still get
// per-phase stats but never count toward an issue's total cycle time.
var excludedFromTotal = map[string]bool{
	"backlog":     true,
	"done":        true,
	PhaseUnmapped: true,
}

// Period is the reporting window, inclusive on both ends.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Meta carries the rendering hints the dashboard frontend needs.
type Meta struct {
	Phases              []domain.Phase    `json:"phases"`
	CycleTimeThresholds config.Thresholds `json:"cycle_time_thresholds"`
}

// Summary holds the org-level scalars shown above the fold.
type Summary struct {
	TotalCompletedIssues   int      `json:"total_completed_issues"`
	AvgCycleTimeDays       *float64 `json:"avg_cycle_time_days"`
	AvgCycleTimePrevPeriod *float64 `json:"avg_cycle_time_prev_period"`
	TotalPrsMerged         int      `json:"total_prs_merged"`
	AvgPrPickupHours       *float64 `json:"avg_pr_pickup_hours"`
}

// Throughput is the completed-work block per scope. StoryPoints is carried
// for schema stability and is always null.
type Throughput struct {
	CompletedIssues int           `json:"completed_issues"`
	StoryPoints     *float64      `json:"story_points"`
	WeeklyTrend     []WeeklyCount `json:"weekly_trend"`
}

// ScopeStats is the stat block shared by project and team scopes.
type ScopeStats struct {
	CycleTime  map[string]PhaseStat `json:"cycle_time"`
	Throughput Throughput           `json:"throughput"`
	PrMetrics  *PrMetrics           `json:"pr_metrics"`
}

// TeamAggregated extends the pooled team stats with CI health and the
// bottleneck drill-down.
type TeamAggregated struct {
	ScopeStats
	BuildMetrics     *BuildMetrics     `json:"build_metrics"`
	BottleneckPhase  string            `json:"bottleneck_phase"`
	BottleneckIssues []BottleneckIssue `json:"bottleneck_issues"`
}

type TeamOutput struct {
	Name       string                `json:"name"`
	Projects   map[string]ScopeStats `json:"projects"`
	Aggregated TeamAggregated        `json:"aggregated"`
}

// Dashboard is the complete output document. It is the sole contract the
// presentation layer depends on and only ever changes additively.
type Dashboard struct {
	GeneratedAt string                `json:"generated_at"`
	Period      Period                `json:"period"`
	Meta        Meta                  `json:"meta"`
	Summary     Summary               `json:"summary"`
	Teams       map[string]TeamOutput `json:"teams"`
	Trends      map[string]TeamTrends `json:"trends"`
}

// cyclePools accumulates raw duration samples for one scope. Team scopes are
// built by merging the pools of member projects, never from computed stats.
type cyclePools struct {
	phases    map[string][]float64
	total     []float64
	resolved  []time.Time
	completed int
}

func newCyclePools() *cyclePools {
	return &cyclePools{phases: map[string][]float64{}}
}

// add pools one issue. SA/SD issues contribute their active time to the
// planning pool only, open phase included, and never count as throughput;
// everything else requires a resolution. Stat pools span the full lookback
// window; the completed count (throughput) only admits recent resolutions.
func (p *cyclePools) add(id IssueDurations, sasd, recent bool) {
	if sasd {
		active := id.Durations.ActiveHours(excludedFromTotal)
		if id.Durations.OpenPhase != "" && !excludedFromTotal[id.Durations.OpenPhase] {
			active += id.Durations.OpenHours
		}
		if active > 0 {
			p.phases["planning"] = append(p.phases["planning"], active)
		}
		return
	}
	if id.Issue.Resolved == nil {
		return
	}
	if recent {
		p.completed++
	}
	p.resolved = append(p.resolved, *id.Issue.Resolved)
	for phase, hours := range id.Durations.Phases {
		p.phases[phase] = append(p.phases[phase], hours)
	}
	// issues that never left backlog/done carry no cycle-time observation
	if active := id.Durations.ActiveHours(excludedFromTotal); active > 0 {
		p.total = append(p.total, active)
	}
}

func (p *cyclePools) merge(other *cyclePools) {
	for phase, samples := range other.phases {
		p.phases[phase] = append(p.phases[phase], samples...)
	}
	p.total = append(p.total, other.total...)
	p.resolved = append(p.resolved, other.resolved...)
	p.completed += other.completed
}

// stats renders the pools as day-unit percentile blocks, one per configured
// phase plus the synthetic total.
func (p *cyclePools) stats(phases []domain.Phase) map[string]PhaseStat {
	out := make(map[string]PhaseStat, len(phases)+1)
	for _, ph := range phases {
		out[ph.ID] = DayStats(p.phases[ph.ID])
	}
	out["total"] = DayStats(p.total)
	return out
}

// Assembler composes the full dashboard document from a frozen snapshot.
// It performs no I/O and is deterministic for a fixed Now.
type Assembler struct {
	Cfg config.Config
	Log zerolog.Logger
	Now time.Time
}

// Assemble runs the whole aggregation: phase reconstruction, PR-evidence dev
// widening, per-project and pooled team stats, trends and the org summary.
func (a Assembler) Assemble(snap domain.Snapshot) *Dashboard {
	now := a.Now
	periodStart := now.AddDate(0, 0, -a.Cfg.LookbackDays)
	prevStart := periodStart.AddDate(0, 0, -a.Cfg.LookbackDays)
	recentStart := now.AddDate(0, 0, -a.Cfg.RecentDays)

	mapper := NewStatusMapper(a.Cfg.StatusMapping, a.Log)
	calc := PhaseDurationCalculator{Mapper: mapper, Now: now}
	sasd := NewSaSdMatcher(a.Cfg.SaSd)

	durations := make([]IssueDurations, 0, len(snap.Issues))
	for _, issue := range snap.Issues {
		durations = append(durations, IssueDurations{Issue: issue, Durations: calc.Compute(issue)})
	}
	EnhanceDevDurations(durations, BuildJiraPrIndex(snap.Prs))

	byProject := map[string][]IssueDurations{}
	for _, id := range durations {
		byProject[id.Issue.Project] = append(byProject[id.Issue.Project], id)
	}
	byRepo := map[string][]domain.PrRecord{}
	for _, pr := range snap.Prs {
		byRepo[pr.Repo] = append(byRepo[pr.Repo], pr)
	}
	byJob := map[string][]domain.BuildRecord{}
	for _, b := range snap.Builds {
		byJob[b.Job] = append(byJob[b.Job], b)
	}

	doc := &Dashboard{
		GeneratedAt: now.Format(time.RFC3339),
		Period: Period{
			Start: periodStart.Format("2006-01-02"),
			End:   now.Format("2006-01-02"),
		},
		Meta: Meta{
			Phases:              a.Cfg.Phases,
			CycleTimeThresholds: a.Cfg.CycleTimeThresholds,
		},
		Teams:  map[string]TeamOutput{},
		Trends: map[string]TeamTrends{},
	}

	orgPools := newCyclePools()
	prevPools := newCyclePools()
	var orgPrs []domain.PrRecord

	for _, team := range a.Cfg.Teams {
		teamPools := newCyclePools()
		var teamIssues []IssueDurations
		projects := make(map[string]ScopeStats, len(team.JiraProjects))

		for _, project := range team.JiraProjects {
			pools := newCyclePools()
			for _, id := range byProject[project] {
				switch {
				case sasd.Match(team.ID, id.Issue):
					// open SA/SD work still represents planning effort
					if id.Issue.Resolved == nil || inWindow(id.Issue.Resolved, periodStart, now) {
						pools.add(id, true, false)
					}
				case inWindow(id.Issue.Resolved, periodStart, now):
					pools.add(id, false, inWindow(id.Issue.Resolved, recentStart, now))
					teamIssues = append(teamIssues, id)
				case inWindow(id.Issue.Resolved, prevStart, periodStart):
					prevPools.add(id, false, false)
				}
			}
			projects[project] = ScopeStats{
				CycleTime: pools.stats(a.Cfg.Phases),
				Throughput: Throughput{
					CompletedIssues: pools.completed,
					WeeklyTrend:     TrailingWeeklyCounts(pools.resolved, now, 4),
				},
			}
			teamPools.merge(pools)
		}

		var teamPrs []domain.PrRecord
		for _, repo := range team.GithubRepos {
			for _, pr := range byRepo[repo] {
				if prInWindow(pr, periodStart, now) {
					teamPrs = append(teamPrs, pr)
				}
			}
		}
		var teamBuilds []domain.BuildRecord
		for _, job := range team.JenkinsJobs {
			for _, b := range byJob[job] {
				if inWindowT(b.StartedAt, periodStart, now) {
					teamBuilds = append(teamBuilds, b)
				}
			}
		}

		cycle := teamPools.stats(a.Cfg.Phases)
		bottleneck := DetectBottleneck(cycle)
		agg := TeamAggregated{
			ScopeStats: ScopeStats{
				CycleTime: cycle,
				Throughput: Throughput{
					CompletedIssues: teamPools.completed,
					WeeklyTrend:     TrailingWeeklyCounts(teamPools.resolved, now, 4),
				},
				PrMetrics: AggregatePrMetrics(teamPrs, a.Cfg.LargePrThreshold),
			},
			BuildMetrics:    AggregateBuildMetrics(teamBuilds, now),
			BottleneckPhase: bottleneck,
		}
		if bottleneck != "" {
			agg.BottleneckIssues = TopBottleneckIssues(teamIssues, bottleneck, a.Cfg.JiraBaseURL, a.Cfg.BottleneckIssueLimit)
		}

		doc.Teams[team.ID] = TeamOutput{
			Name:       team.Name,
			Projects:   projects,
			Aggregated: agg,
		}
		doc.Trends[team.ID] = BuildTeamTrends(teamIssues, teamPrs, excludedFromTotal, periodStart, now)

		orgPools.merge(teamPools)
		orgPrs = append(orgPrs, teamPrs...)
	}

	doc.Summary = a.summary(orgPools, prevPools, orgPrs)
	for project, n := range mapper.UnmappedCounts() {
		a.Log.Warn().Str("project", project).Int("count", n).Msg("unmapped status occurrences")
	}
	return doc
}

// summary pools every team's raw samples for the org scalars. The cycle-time
// averages are arithmetic means over the pooled per-issue totals; pickup is
// the pooled p50. Neither ever recombines per-team figures.
func (a Assembler) summary(cur, prev *cyclePools, prs []domain.PrRecord) Summary {
	s := Summary{TotalCompletedIssues: cur.completed}
	if v, ok := mean(cur.total); ok {
		d := roundTo(v/24, 2)
		s.AvgCycleTimeDays = &d
	}
	if v, ok := mean(prev.total); ok {
		d := roundTo(v/24, 2)
		s.AvgCycleTimePrevPeriod = &d
	}
	var pickup []float64
	for _, pr := range prs {
		if !pr.Merged() {
			continue
		}
		s.TotalPrsMerged++
		if first := pr.FirstReviewAt(); first != nil {
			pickup = append(pickup, first.Sub(pr.CreatedAt).Hours())
		}
	}
	if v, ok := Percentile(pickup, 0.50); ok {
		h := roundTo(v, 1)
		s.AvgPrPickupHours = &h
	}
	return s
}

func mean(samples []float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples)), true
}

func inWindow(t *time.Time, start, end time.Time) bool {
	return t != nil && inWindowT(*t, start, end)
}

func inWindowT(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// prInWindow admits PRs whose terminal event (merge or unmerged close) falls
// in the window. Open PRs carry no completed observation and are skipped.
func prInWindow(pr domain.PrRecord, start, end time.Time) bool {
	if pr.MergedAt != nil {
		return inWindowT(*pr.MergedAt, start, end)
	}
	if pr.ClosedAt != nil {
		return inWindowT(*pr.ClosedAt, start, end)
	}
	return false
}
