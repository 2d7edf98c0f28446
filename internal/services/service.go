/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/domain"
	"github.com/rickybien/performance-dashboard/internal/metrics"
	"github.com/rickybien/performance-dashboard/internal/repo"
)

type IssueCollector interface {
	CollectIssues(ctx context.Context, projects []string, since time.Time) ([]domain.IssueRecord, error)
}

type PrCollector interface {
	CollectPrs(ctx context.Context, repos []string, since time.Time) ([]domain.PrRecord, error)
}

type BuildCollector interface {
	CollectBuilds(ctx context.Context, jobs []string, since time.Time) ([]domain.BuildRecord, error)
}

type RunStore interface {
	StartRun(ctx context.Context) (int64, error)
	FinishRun(ctx context.Context, id int64, issues, prs, builds int, dashboard []byte, errStr string) error
	GetLastRun(ctx context.Context) (*repo.LastRun, error)
	LatestDashboard(ctx context.Context) ([]byte, error)
}

// Service orchestrates one pipeline run: concurrent collection, a frozen
// snapshot, the aggregation pass, and the dual-write of the output document.
type Service struct {
	cfg     config.Config
	log     zerolog.Logger
	runs    RunStore
	jira    IssueCollector
	github  PrCollector
	jenkins BuildCollector

	mu      sync.Mutex
	running bool
}

func New(cfg config.Config, log zerolog.Logger, runs RunStore, jira IssueCollector, github PrCollector, jenkins BuildCollector) *Service {
	return &Service{cfg: cfg, log: log, runs: runs, jira: jira, github: github, jenkins: jenkins}
}

var ErrRunInProgress = errors.New("pipeline run already in progress")

// RunPipeline executes a full collect-aggregate-publish cycle. Collection or
// aggregation failure aborts the run before any document is written; there is
// never a partial dashboard on disk.
func (s *Service) RunPipeline(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runID, err := s.runs.StartRun(ctx)
	if err != nil { return fmt.Errorf("start run: %w", err) }

	started := time.Now()
	snap, err := s.collect(ctx)
	if err != nil {
		_ = s.runs.FinishRun(ctx, runID, 0, 0, 0, nil, err.Error())
		return err
	}
	s.log.Info().
		Int("issues", len(snap.Issues)).
		Int("prs", len(snap.Prs)).
		Int("builds", len(snap.Builds)).
		Dur("took", time.Since(started)).
		Msg("collection done")

	a := metrics.Assembler{Cfg: s.cfg, Log: s.log, Now: time.Now()}
	doc := a.Assemble(snap)

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		_ = s.runs.FinishRun(ctx, runID, len(snap.Issues), len(snap.Prs), len(snap.Builds), nil, err.Error())
		return fmt.Errorf("marshal dashboard: %w", err)
	}
	if err := s.publish(payload); err != nil {
		_ = s.runs.FinishRun(ctx, runID, len(snap.Issues), len(snap.Prs), len(snap.Builds), nil, err.Error())
		return err
	}
	if err := s.runs.FinishRun(ctx, runID, len(snap.Issues), len(snap.Prs), len(snap.Builds), payload, ""); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	s.log.Info().Int64("run", runID).Msg("pipeline done")
	return nil
}

// collect gathers all sources concurrently and freezes the snapshot.
func (s *Service) collect(ctx context.Context) (domain.Snapshot, error) {
	since := time.Now().AddDate(0, 0, -s.cfg.LookbackDays)

	var projects, repos, jobs []string
	for _, t := range s.cfg.Teams {
		projects = append(projects, t.JiraProjects...)
		repos = append(repos, t.GithubRepos...)
		jobs = append(jobs, t.JenkinsJobs...)
	}

	var snap domain.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		issues, err := s.jira.CollectIssues(gctx, projects, since)
		if err != nil { return err }
		snap.Issues = issues
		return nil
	})
	g.Go(func() error {
		prs, err := s.github.CollectPrs(gctx, repos, since)
		if err != nil { return err }
		snap.Prs = prs
		return nil
	})
	if s.cfg.JenkinsEnabled && s.jenkins != nil {
		g.Go(func() error {
			builds, err := s.jenkins.CollectBuilds(gctx, jobs, since)
			if err != nil { return err }
			snap.Builds = builds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("collect: %w", err)
	}
	return snap, nil
}

// publish writes the document to data/latest and to the month archive.
// Writes go through a temp file and rename so readers never see a torn file.
func (s *Service) publish(payload []byte) error {
	latest := filepath.Join(s.cfg.DataDir, "latest")
	archive := filepath.Join(s.cfg.DataDir, "archive", time.Now().Format("2006-01"))
	for _, dir := range []string{latest, archive} {
		if err := os.MkdirAll(dir, 0o755); err != nil { return fmt.Errorf("publish: %w", err) }
		if err := writeAtomic(filepath.Join(dir, "dashboard.json"), payload); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	return nil
}

func writeAtomic(path string, payload []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil { return err }
	return os.Rename(tmp, path)
}

// LatestDashboard reads the published document, falling back to the most
// recent archived copy in the run store when the file is missing. The second
// return is false when no document can be served; an unparsable file on disk
// is never repaired and never masked by the archive.
func (s *Service) LatestDashboard(ctx context.Context) ([]byte, bool) {
	path := filepath.Join(s.cfg.DataDir, "latest", "dashboard.json")
	payload, err := os.ReadFile(path)
	if err == nil {
		if !json.Valid(payload) {
			s.log.Error().Str("path", path).Msg("dashboard document is not valid json")
			return nil, false
		}
		return payload, true
	}
	s.log.Warn().Err(err).Msg("dashboard read failed, trying run archive")
	payload, derr := s.runs.LatestDashboard(ctx)
	if derr != nil {
		s.log.Warn().Err(derr).Msg("run archive read failed")
		return nil, false
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, false
	}
	return payload, true
}

func (s *Service) GetLastRun(ctx context.Context) (*repo.LastRun, error) {
	return s.runs.GetLastRun(ctx)
}
