package domain

import "time"

// StatusTransition is a single status change on an issue, taken from the
// tracker changelog. Transitions are ordered by At within an issue.
type StatusTransition struct {
	FromStatus string
	ToStatus   string
	At         time.Time
}

// IssueRecord is the frozen per-issue input to the aggregation engine.
// It is owned by the run that consumes it and never mutated after collection.
type IssueRecord struct {
	Key           string
	Project       string
	Type          string
	Summary       string
	Created       time.Time
	Resolved      *time.Time
	CurrentStatus string
	Assignee      string
	ParentKey     string
	ParentSummary string
	ParentType    string
	Transitions   []StatusTransition
}

// Review event states as normalized by the GitHub collector.
const (
	ReviewApproved         = "approved"
	ReviewChangesRequested = "changes_requested"
	ReviewCommented        = "commented"
)

// ReviewEvent is one submitted review on a pull request.
type ReviewEvent struct {
	At    time.Time
	State string
}

// PrRecord is the frozen per-PR input to the aggregation engine.
type PrRecord struct {
	Repo         string
	Number       int
	Title        string
	Author       string
	JiraKeys     []string
	CreatedAt    time.Time
	ReviewEvents []ReviewEvent
	MergedAt     *time.Time
	// ClosedAt is set only for PRs closed without merging.
	ClosedAt  *time.Time
	Additions int
	Deletions int
}

// Merged reports whether the PR was merged.
func (p PrRecord) Merged() bool { return p.MergedAt != nil }

// FirstReviewAt returns the time of the first review event, or nil if the PR
// was never reviewed.
func (p PrRecord) FirstReviewAt() *time.Time {
	if len(p.ReviewEvents) == 0 {
		return nil
	}
	t := p.ReviewEvents[0].At
	return &t
}

// BuildRecord is one CI build collected from Jenkins. Result is empty while
// the build is still running.
type BuildRecord struct {
	Job         string
	BuildNumber int
	Result      string
	Duration    time.Duration
	StartedAt   time.Time
}

// Team binds tracker projects, repositories and CI jobs to one reporting
// scope. A project belongs to exactly one team within a run.
type Team struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	JiraProjects []string `yaml:"jira_projects"`
	GithubRepos  []string `yaml:"github_repos"`
	JenkinsJobs  []string `yaml:"jenkins_jobs"`
}

// Phase describes one lifecycle stage as configured for the dashboard.
type Phase struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color" json:"color"`
}

// Snapshot is the complete, immutable input set handed to the engine after
// collection finishes.
type Snapshot struct {
	Issues []IssueRecord
	Prs    []PrRecord
	Builds []BuildRecord
}
