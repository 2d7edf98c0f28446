package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/domain"
)

func TestSaSdMatcherGlobalRules(t *testing.T) {
	m := NewSaSdMatcher(&config.SaSdRules{
		SaSdRuleSet: config.SaSdRuleSet{
			IssueTypes:      []string{"Analysis"},
			SummaryPatterns: []string{`\[S[AD]\]`},
		},
	})

	require.True(t, m.Match("core", domain.IssueRecord{Type: "analysis"}))
	require.True(t, m.Match("core", domain.IssueRecord{Type: "Story", Summary: "[SA] checkout flow"}))
	require.True(t, m.Match("core", domain.IssueRecord{Type: "Story", Summary: "[SD] api sketch"}))
	require.False(t, m.Match("core", domain.IssueRecord{Type: "Story", Summary: "implement checkout"}))
}

func TestSaSdMatcherTeamOverrideReplacesGlobal(t *testing.T) {
	m := NewSaSdMatcher(&config.SaSdRules{
		SaSdRuleSet: config.SaSdRuleSet{IssueTypes: []string{"Analysis"}},
		Overrides: map[string]config.SaSdRuleSet{
			"platform": {SummaryPatterns: []string{`^design:`}},
		},
	})

	// override replaces the global rules entirely for that team
	require.False(t, m.Match("platform", domain.IssueRecord{Type: "Analysis"}))
	require.True(t, m.Match("platform", domain.IssueRecord{Summary: "design: retry budget"}))
	require.True(t, m.Match("core", domain.IssueRecord{Type: "Analysis"}))
}

func TestSaSdMatcherNilRules(t *testing.T) {
	m := NewSaSdMatcher(nil)
	require.False(t, m.Match("core", domain.IssueRecord{Type: "Analysis", Summary: "[SA] anything"}))
}
