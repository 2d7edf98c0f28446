/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickybien/performance-dashboard/internal/adapters/github"
	"github.com/rickybien/performance-dashboard/internal/adapters/jenkins"
	"github.com/rickybien/performance-dashboard/internal/adapters/jira"
	"github.com/rickybien/performance-dashboard/internal/config"
	httpapi "github.com/rickybien/performance-dashboard/internal/http"
	"github.com/rickybien/performance-dashboard/internal/jobs"
	"github.com/rickybien/performance-dashboard/internal/logger"
	"github.com/rickybien/performance-dashboard/internal/repo"
	"github.com/rickybien/performance-dashboard/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(config.Config{})
		fallback.Fatal().Err(err).Msg("config load failed")
	}
	log := logger.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := repo.MustOpen(ctx, cfg, log)
	defer db.Close()

	repository := repo.NewRepository(db, log)
	if err := repository.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}

	jiraClient := jira.NewClient(cfg, log)
	githubClient, err := github.NewClient(cfg, log)
	if err != nil { log.Fatal().Err(err).Msg("github client init failed") }
	var buildCollector services.BuildCollector
	if cfg.JenkinsEnabled {
		buildCollector = jenkins.NewClient(cfg, log)
	}

	svc := services.New(cfg, log, repository, jiraClient, githubClient, buildCollector)

	router := httpapi.NewRouter(cfg, log, svc)

	cr := jobs.NewCron(cfg, log, svc, repository)
	cr.Start()
	defer cr.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(cfg.HTTPAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil { log.Error().Err(err).Msg("http server error") }
	}

	time.Sleep(500 * time.Millisecond)
}
