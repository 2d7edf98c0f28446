package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/domain"
	"github.com/rickybien/performance-dashboard/internal/repo"
)

type fakeIssues struct {
	issues []domain.IssueRecord
	err    error
}

func (f fakeIssues) CollectIssues(context.Context, []string, time.Time) ([]domain.IssueRecord, error) {
	return f.issues, f.err
}

type fakePrs struct{ prs []domain.PrRecord }

func (f fakePrs) CollectPrs(context.Context, []string, time.Time) ([]domain.PrRecord, error) {
	return f.prs, nil
}

type fakeRuns struct {
	finishedErr  string
	finishedDoc  []byte
	finishCalled bool
	archived     []byte
}

func (f *fakeRuns) StartRun(context.Context) (int64, error) { return 1, nil }
func (f *fakeRuns) FinishRun(_ context.Context, _ int64, _, _, _ int, doc []byte, errStr string) error {
	f.finishCalled = true
	f.finishedDoc = doc
	f.finishedErr = errStr
	return nil
}
func (f *fakeRuns) GetLastRun(context.Context) (*repo.LastRun, error) {
	return &repo.LastRun{Success: f.finishedErr == ""}, nil
}
func (f *fakeRuns) LatestDashboard(context.Context) ([]byte, error) {
	return f.archived, nil
}

func testServiceConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DataDir: t.TempDir(),
		Teams: []domain.Team{
			{ID: "core", Name: "Core", JiraProjects: []string{"CORE"}, GithubRepos: []string{"core-api"}},
		},
		Phases: config.DefaultPhases(),
		StatusMapping: config.StatusMapping{
			Default: map[string][]string{"dev": {"In Progress"}, "done": {"Done"}},
		},
		LookbackDays:         90,
		RecentDays:           30,
		LargePrThreshold:     400,
		BottleneckIssueLimit: 5,
	}
}

func TestRunPipelinePublishesDashboard(t *testing.T) {
	cfg := testServiceConfig(t)
	runs := &fakeRuns{}
	resolved := time.Now().Add(-24 * time.Hour)
	issues := fakeIssues{issues: []domain.IssueRecord{
		{
			Key: "CORE-1", Project: "CORE", Created: resolved.Add(-48 * time.Hour), Resolved: &resolved,
			Transitions: []domain.StatusTransition{
				{FromStatus: "In Progress", ToStatus: "Done", At: resolved},
			},
		},
	}}

	svc := New(cfg, zerolog.Nop(), runs, issues, fakePrs{}, nil)
	require.NoError(t, svc.RunPipeline(context.Background()))

	payload, err := os.ReadFile(filepath.Join(cfg.DataDir, "latest", "dashboard.json"))
	require.NoError(t, err)
	require.True(t, json.Valid(payload))

	archive := filepath.Join(cfg.DataDir, "archive", time.Now().Format("2006-01"), "dashboard.json")
	_, err = os.Stat(archive)
	require.NoError(t, err)

	require.True(t, runs.finishCalled)
	require.Empty(t, runs.finishedErr)
	require.NotEmpty(t, runs.finishedDoc)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	require.Contains(t, doc, "summary")
	require.Contains(t, doc, "teams")
}

func TestRunPipelineCollectionFailureWritesNothing(t *testing.T) {
	cfg := testServiceConfig(t)
	runs := &fakeRuns{}
	svc := New(cfg, zerolog.Nop(), runs, fakeIssues{err: errors.New("jira down")}, fakePrs{}, nil)

	require.Error(t, svc.RunPipeline(context.Background()))

	_, err := os.Stat(filepath.Join(cfg.DataDir, "latest", "dashboard.json"))
	require.True(t, os.IsNotExist(err))
	require.True(t, runs.finishCalled)
	require.NotEmpty(t, runs.finishedErr)
	require.Empty(t, runs.finishedDoc)
}

func TestLatestDashboardUnavailable(t *testing.T) {
	cfg := testServiceConfig(t)
	svc := New(cfg, zerolog.Nop(), &fakeRuns{}, fakeIssues{}, fakePrs{}, nil)

	_, ok := svc.LatestDashboard(context.Background())
	require.False(t, ok)

	// a malformed document is reported unavailable, never repaired
	dir := filepath.Join(cfg.DataDir, "latest")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard.json"), []byte("{not json"), 0o644))
	_, ok = svc.LatestDashboard(context.Background())
	require.False(t, ok)
}

func TestLatestDashboardFallsBackToRunArchive(t *testing.T) {
	cfg := testServiceConfig(t)
	runs := &fakeRuns{archived: []byte(`{"summary":{"total_completed_issues":3}}`)}
	svc := New(cfg, zerolog.Nop(), runs, fakeIssues{}, fakePrs{}, nil)

	// no file on disk, the archived run document is served
	payload, ok := svc.LatestDashboard(context.Background())
	require.True(t, ok)
	require.JSONEq(t, string(runs.archived), string(payload))

	// a malformed file on disk is not masked by the archive
	dir := filepath.Join(cfg.DataDir, "latest")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard.json"), []byte("{not json"), 0o644))
	_, ok = svc.LatestDashboard(context.Background())
	require.False(t, ok)
}
