package metrics

import (
	"regexp"
	"strings"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/domain"
)

// SaSdMatcher decides whether an issue is an analysis or design ticket whose
// active hours belong in the planning pool instead of counting as delivery
// work. A per-team override replaces the global rules entirely for that team.
type SaSdMatcher struct {
	global    sasdRule
	overrides map[string]sasdRule
}

type sasdRule struct {
	types    map[string]bool
	patterns []*regexp.Regexp
}

func compileRule(rs config.SaSdRuleSet) sasdRule {
	r := sasdRule{types: make(map[string]bool, len(rs.IssueTypes))}
	for _, t := range rs.IssueTypes {
		r.types[strings.ToLower(t)] = true
	}
	for _, p := range rs.SummaryPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, re)
	}
	return r
}

// NewSaSdMatcher builds a matcher from the configured rules. A nil rule set
// yields a matcher that matches nothing.
func NewSaSdMatcher(rules *config.SaSdRules) *SaSdMatcher {
	m := &SaSdMatcher{overrides: map[string]sasdRule{}}
	if rules == nil {
		return m
	}
	m.global = compileRule(rules.SaSdRuleSet)
	for team, rs := range rules.Overrides {
		m.overrides[team] = compileRule(rs)
	}
	return m
}

// Match reports whether the issue is an SA/SD ticket under the rules in
// effect for teamID.
func (m *SaSdMatcher) Match(teamID string, issue domain.IssueRecord) bool {
	rule := m.global
	if r, ok := m.overrides[teamID]; ok {
		rule = r
	}
	if rule.types[strings.ToLower(issue.Type)] {
		return true
	}
	for _, re := range rule.patterns {
		if re.MatchString(issue.Summary) {
			return true
		}
	}
	return false
}
