package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rickybien/performance-dashboard/internal/config"
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

// EnsureSchema creates the run bookkeeping tables when absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id            bigserial PRIMARY KEY,
			started_at    timestamptz NOT NULL DEFAULT now(),
			finished_at   timestamptz,
			issues        integer NOT NULL DEFAULT 0,
			prs           integer NOT NULL DEFAULT 0,
			builds        integer NOT NULL DEFAULT 0,
			success       boolean NOT NULL DEFAULT false,
			error         text NOT NULL DEFAULT '',
			dashboard     jsonb
		)`
	_, err := r.db.Pool.Exec(ctx, q)
	return err
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil { return errors.New("advisory unlock returned false") }
	return err
}

func (r *Repository) StartRun(ctx context.Context) (int64, error) {
	const q = `INSERT INTO pipeline_runs(started_at, success) VALUES(now(), false) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&id); err != nil { return 0, err }
	return id, nil
}

// FinishRun records the outcome and, on success, archives the produced
// dashboard document as jsonb.
func (r *Repository) FinishRun(ctx context.Context, id int64, issues, prs, builds int, dashboard []byte, errStr string) error {
	const q = `UPDATE pipeline_runs
		SET finished_at=now(), issues=$2, prs=$3, builds=$4, success=$5, error=$6, dashboard=$7
		WHERE id=$1`
	var doc any
	if len(dashboard) > 0 { doc = dashboard }
	_, err := r.db.Pool.Exec(ctx, q, id, issues, prs, builds, errStr == "", errStr, doc)
	return err
}

type LastRun struct {
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Issues     int        `json:"issues"`
	Prs        int        `json:"prs"`
	Builds     int        `json:"builds"`
	Success    bool       `json:"success"`
	Error      string     `json:"error"`
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
	const q = `SELECT started_at, finished_at,
		coalesce(issues,0), coalesce(prs,0), coalesce(builds,0),
		coalesce(success,false), coalesce(error,'')
		FROM pipeline_runs ORDER BY id DESC LIMIT 1`
	row := r.db.Pool.QueryRow(ctx, q)
	lr := &LastRun{}
	if err := row.Scan(&lr.StartedAt, &lr.FinishedAt, &lr.Issues, &lr.Prs, &lr.Builds, &lr.Success, &lr.Error); err != nil {
		return nil, err
	}
	return lr, nil
}

// LatestDashboard returns the most recent successfully archived document,
// or nil when no run has succeeded yet.
func (r *Repository) LatestDashboard(ctx context.Context) ([]byte, error) {
	const q = `SELECT dashboard FROM pipeline_runs
		WHERE success AND dashboard IS NOT NULL ORDER BY id DESC LIMIT 1`
	var doc []byte
	err := r.db.Pool.QueryRow(ctx, q).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
	if err != nil { return nil, err }
	return doc, nil
}
