package metrics

import (
	"sort"
	"time"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

// PhaseDuration is the reconstructed time an issue spent in each phase, in
// hours. The trailing interval of an unresolved issue is its open phase,
// tracked separately because it is not yet a completed observation.
// Invariant: sum(Phases) + UnmappedHours + OpenHours == resolved-or-now − created.
type PhaseDuration struct {
	Phases        map[string]float64
	UnmappedHours float64
	OpenPhase     string
	OpenHours     float64
}

// ActiveHours sums the completed phase time outside the excluded set.
func (d PhaseDuration) ActiveHours(excluded map[string]bool) float64 {
	total := 0.0
	for phase, hours := range d.Phases {
		if excluded[phase] {
			continue
		}
		total += hours
	}
	return total
}

// IssueDurations pairs a raw issue with its reconstructed phase durations.
// Sample pools and rollups are always built from slices of these, never from
// already-computed statistics.
type IssueDurations struct {
	Issue     domain.IssueRecord
	Durations PhaseDuration
}

// PhaseDurationCalculator walks an issue's transition history and attributes
// each interval to the phase of its from-status.
type PhaseDurationCalculator struct {
	Mapper *StatusMapper
	Now    time.Time
}

// Compute reconstructs the cumulative phase durations for one issue.
// Transitions are stable-sorted by timestamp; ties keep collection order.
// A phase visited more than once accumulates all visits. An issue with no
// transitions spends its whole elapsed time in its current status.
func (c PhaseDurationCalculator) Compute(issue domain.IssueRecord) PhaseDuration {
	out := PhaseDuration{Phases: make(map[string]float64)}

	end := c.Now
	resolved := issue.Resolved != nil
	if resolved {
		end = *issue.Resolved
	}

	if len(issue.Transitions) == 0 {
		hours := end.Sub(issue.Created).Hours()
		if hours <= 0 {
			return out
		}
		c.account(&out, issue.Project, issue.CurrentStatus, hours, !resolved)
		return out
	}

	trs := make([]domain.StatusTransition, len(issue.Transitions))
	copy(trs, issue.Transitions)
	sort.SliceStable(trs, func(i, j int) bool { return trs[i].At.Before(trs[j].At) })

	// boundaries: created → t1 → … → tn → resolved-or-now; the status of
	// interval i is the from-status at its right boundary
	prev := issue.Created
	for _, tr := range trs {
		hours := tr.At.Sub(prev).Hours()
		if hours > 0 {
			c.account(&out, issue.Project, tr.FromStatus, hours, false)
		}
		prev = tr.At
	}
	if hours := end.Sub(prev).Hours(); hours > 0 {
		c.account(&out, issue.Project, trs[len(trs)-1].ToStatus, hours, !resolved)
	}
	return out
}

// account adds an interval to the appropriate bucket. Open intervals (the
// trailing interval of an unresolved issue) are tracked separately and never
// enter the completed-phase map.
func (c PhaseDurationCalculator) account(out *PhaseDuration, project, status string, hours float64, open bool) {
	if status == "" {
		// created-state unknown; keep the sum invariant without a warning
		out.UnmappedHours += hours
		return
	}
	phase, ok := c.Mapper.Resolve(project, status)
	if open {
		out.OpenPhase = phase
		out.OpenHours = hours
		return
	}
	if !ok {
		out.UnmappedHours += hours
		return
	}
	out.Phases[phase] += hours
}
