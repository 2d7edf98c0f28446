package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/repo"
)

type service interface {
	RunPipeline(ctx context.Context) error
}

// pipelineLockKey serializes scheduled runs across replicas.
const pipelineLockKey int64 = 727272

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  service
	repo *repo.Repository
	c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
	loc, _ := time.LoadLocation(cfg.TZ)
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
	_, _ = c.AddFunc(cfg.PipelineCron, cr.run)
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ok, err := cr.repo.TryAdvisoryLock(ctx, pipelineLockKey)
	if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
	if !ok { cr.log.Info().Msg("cron: already running elsewhere"); return }
	defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), pipelineLockKey) }()
	cr.log.Info().Msg("cron: pipeline run")
	if err := cr.svc.RunPipeline(ctx); err != nil { cr.log.Error().Err(err).Msg("cron: pipeline failed") }
}
