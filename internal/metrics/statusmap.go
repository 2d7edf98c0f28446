package metrics

import (
	"github.com/rs/zerolog"

	"github.com/rickybien/performance-dashboard/internal/config"
)

// PhaseUnmapped tags time spent in statuses absent from both the override
// and the default mapping.
const PhaseUnmapped = "unmapped"

// StatusMapper resolves raw tracker status labels to canonical phases.
// Lookup order is project override first, then the default map; matching is
// exact-string and case-sensitive. Override entries never remove default
// entries for other phases. Unresolvable labels are counted per project and
// logged, but never fail the run.
type StatusMapper struct {
	defaults  map[string]string
	overrides map[string]map[string]string
	unmapped  map[string]int
	log       zerolog.Logger
}

func NewStatusMapper(m config.StatusMapping, log zerolog.Logger) *StatusMapper {
	sm := &StatusMapper{
		defaults:  invert(m.Default),
		overrides: make(map[string]map[string]string, len(m.Overrides)),
		unmapped:  make(map[string]int),
		log:       log,
	}
	for project, mapping := range m.Overrides {
		sm.overrides[project] = invert(mapping)
	}
	return sm
}

func invert(byPhase map[string][]string) map[string]string {
	out := make(map[string]string)
	for phase, statuses := range byPhase {
		for _, s := range statuses {
			out[s] = phase
		}
	}
	return out
}

// Resolve maps a raw status to its phase for the given project. The second
// return is false when the status is unmapped, in which case the per-project
// unmapped counter is incremented.
func (m *StatusMapper) Resolve(project, rawStatus string) (string, bool) {
	if ov, ok := m.overrides[project]; ok {
		if phase, ok := ov[rawStatus]; ok {
			return phase, true
		}
	}
	if phase, ok := m.defaults[rawStatus]; ok {
		return phase, true
	}
	m.unmapped[project]++
	m.log.Warn().Str("project", project).Str("status", rawStatus).Msg("unmapped status")
	return PhaseUnmapped, false
}

// UnmappedCounts returns the per-project count of unmapped status
// occurrences seen so far.
func (m *StatusMapper) UnmappedCounts() map[string]int {
	out := make(map[string]int, len(m.unmapped))
	for k, v := range m.unmapped {
		out[k] = v
	}
	return out
}
