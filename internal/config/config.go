/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rickybien/performance-dashboard/internal/domain"
)

// StatusMapping holds the phase → raw status label sets, with per-project
// overrides. Overrides are looked up before the default map and never remove
// default entries for other phases.
type StatusMapping struct {
	Default   map[string][]string            `yaml:"default"`
	Overrides map[string]map[string][]string `yaml:"overrides"`
}

// SaSdRuleSet matches analysis/design tickets whose active time is folded
// into the planning phase.
type SaSdRuleSet struct {
	IssueTypes      []string `yaml:"issue_types"`
	SummaryPatterns []string `yaml:"summary_patterns"`
}

// SaSdRules is the global rule set plus per-team overrides. An override
// fully replaces the global rules for that team.
type SaSdRules struct {
	SaSdRuleSet `yaml:",inline"`
	Overrides   map[string]SaSdRuleSet `yaml:"overrides"`
}

// Thresholds colors cycle-time values on the dashboard (days).
type Thresholds struct {
	Good    float64 `yaml:"good" json:"good"`
	Warning float64 `yaml:"warning" json:"warning"`
}

type Config struct {
	AppEnv   string
	TZ       string
	HTTPAddr string

	DBDSN string

	DataDir    string
	ConfigFile string

	JiraBaseURL   string
	JiraEmail     string
	JiraAPIToken  string
	JiraJQLFilter string

	GithubToken string
	GithubOrg   string

	JenkinsBaseURL  string
	JenkinsUser     string
	JenkinsAPIToken string
	JenkinsEnabled  bool

	PipelineCron string
	HTTPTimeout  time.Duration
	APIDelay     time.Duration

	// loaded from config.yaml
	Teams                []domain.Team
	Phases               []domain.Phase
	StatusMapping        StatusMapping
	SaSd                 *SaSdRules
	LookbackDays         int
	RecentDays           int
	PrIssuePattern       string
	LargePrThreshold     int
	BottleneckIssueLimit int
	CycleTimeThresholds  Thresholds
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// fileConfig is the config.yaml schema.
type fileConfig struct {
	Teams  []domain.Team  `yaml:"teams"`
	Phases []domain.Phase `yaml:"phases"`

	StatusMapping StatusMapping `yaml:"status_mapping"`
	SaSdRules     *SaSdRules    `yaml:"sa_sd_rules"`

	Collection struct {
		LookbackDays   int    `yaml:"lookback_days"`
		RecentDays     int    `yaml:"recent_days"`
		JiraJQLFilter  string `yaml:"jira_jql_filter"`
		PrIssuePattern string `yaml:"pr_issue_pattern"`
	} `yaml:"collection"`

	Dashboard struct {
		LargePrThreshold     int         `yaml:"large_pr_threshold"`
		BottleneckIssueLimit int         `yaml:"bottleneck_issue_limit"`
		CycleTimeThresholds  *Thresholds `yaml:"cycle_time_thresholds"`
	} `yaml:"dashboard"`

	Jenkins struct {
		Enabled bool   `yaml:"enabled"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"jenkins"`
}

// Load reads environment variables and the YAML team/phase configuration.
// A missing or unparsable config file is a run-level failure.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:   getenv("APP_ENV", "dev"),
		TZ:       getenv("APP_TZ", "UTC"),
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBDSN: getenv("DB_DSN", ""),

		DataDir:    getenv("DATA_DIR", "data"),
		ConfigFile: getenv("CONFIG_FILE", "config.yaml"),

		JiraBaseURL:  getenv("JIRA_BASE_URL", ""),
		JiraEmail:    getenv("JIRA_EMAIL", ""),
		JiraAPIToken: getenv("JIRA_API_TOKEN", ""),

		GithubToken: getenv("GITHUB_TOKEN", ""),
		GithubOrg:   getenv("GITHUB_ORG", ""),

		JenkinsUser:     getenv("JENKINS_USER", ""),
		JenkinsAPIToken: getenv("JENKINS_API_TOKEN", ""),

		PipelineCron: getenv("CRON_SPEC", "0 6 * * MON"),
		HTTPTimeout:  dur("HTTP_TIMEOUT", 30*time.Second),
		APIDelay:     dur("API_DELAY", 100*time.Millisecond),
	}

	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", cfg.ConfigFile, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", cfg.ConfigFile, err)
	}
	if err := applyFile(&cfg, fc); err != nil {
		return Config{}, err
	}

	// environment wins over file for Jenkins wiring
	cfg.JenkinsBaseURL = getenv("JENKINS_BASE_URL", cfg.JenkinsBaseURL)
	cfg.JenkinsEnabled = boolean("JENKINS_ENABLED", cfg.JenkinsEnabled)

	if loc, err := time.LoadLocation(cfg.TZ); err == nil {
		time.Local = loc
	}
	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) error {
	if len(fc.Teams) == 0 {
		return fmt.Errorf("config: no teams configured")
	}
	seen := map[string]string{}
	for _, t := range fc.Teams {
		if t.ID == "" {
			return fmt.Errorf("config: team with empty id")
		}
		for _, p := range t.JiraProjects {
			if owner, dup := seen[p]; dup {
				return fmt.Errorf("config: project %s assigned to both %s and %s", p, owner, t.ID)
			}
			seen[p] = t.ID
		}
	}
	cfg.Teams = fc.Teams

	cfg.Phases = fc.Phases
	if len(cfg.Phases) == 0 {
		cfg.Phases = DefaultPhases()
	}

	cfg.StatusMapping = fc.StatusMapping
	cfg.SaSd = fc.SaSdRules

	cfg.LookbackDays = fc.Collection.LookbackDays
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 90
	}
	cfg.RecentDays = fc.Collection.RecentDays
	if cfg.RecentDays <= 0 {
		cfg.RecentDays = 30
	}
	cfg.JiraJQLFilter = fc.Collection.JiraJQLFilter
	if cfg.JiraJQLFilter == "" {
		cfg.JiraJQLFilter = "issuetype in (Story, Bug, Task, Sub-task)"
	}
	cfg.PrIssuePattern = fc.Collection.PrIssuePattern
	if cfg.PrIssuePattern == "" {
		cfg.PrIssuePattern = `([A-Z][A-Z0-9]+-\d+)`
	}

	cfg.LargePrThreshold = fc.Dashboard.LargePrThreshold
	if cfg.LargePrThreshold <= 0 {
		cfg.LargePrThreshold = 400
	}
	cfg.BottleneckIssueLimit = fc.Dashboard.BottleneckIssueLimit
	if cfg.BottleneckIssueLimit <= 0 {
		cfg.BottleneckIssueLimit = 5
	}
	if fc.Dashboard.CycleTimeThresholds != nil {
		cfg.CycleTimeThresholds = *fc.Dashboard.CycleTimeThresholds
	} else {
		cfg.CycleTimeThresholds = Thresholds{Good: 2.0, Warning: 5.0}
	}

	cfg.JenkinsEnabled = fc.Jenkins.Enabled
	cfg.JenkinsBaseURL = fc.Jenkins.BaseURL
	return nil
}

// DefaultPhases is the canonical lifecycle used when config.yaml does not
// declare its own.
func DefaultPhases() []domain.Phase {
	return []domain.Phase{
		{ID: "backlog", Label: "Backlog", Color: "#9e9e9e"},
		{ID: "planning", Label: "Planning", Color: "#7e57c2"},
		{ID: "dev", Label: "Development", Color: "#42a5f5"},
		{ID: "review", Label: "PR Review", Color: "#26a69a"},
		{ID: "dev_test", Label: "RD Testing", Color: "#66bb6a"},
		{ID: "qa", Label: "QA Testing", Color: "#ffa726"},
		{ID: "staging", Label: "Staging", Color: "#ef5350"},
		{ID: "done", Label: "Done", Color: "#8d6e63"},
	}
}
