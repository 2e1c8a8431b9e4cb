package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/drylogs/internal/db"
	"github.com/sells-group/drylogs/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close is a no-op.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	on_hold    BOOLEAN NOT NULL DEFAULT false,
	version    INTEGER NOT NULL,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_events (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	kind       TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	version    INTEGER NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_red_flags ON jobs USING GIN ((document->'psmData'->'redFlags'));
CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events(job_id, created_at);
`

var jobColumns = []string{"id", "status", "on_hold", "version", "document", "created_at", "updated_at"}

var eventColumns = []string{"id", "job_id", "kind", "actor", "version", "payload", "created_at"}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job model.Job) (*model.Job, error) {
	job, err := prepareCreate(job, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	doc, err := encodeJob(job)
	if err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, on_hold, version, document, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		job.JobID, string(job.JobStatus), job.OnHold(), job.Metadata.Version, doc,
		job.Metadata.CreatedAt, job.Metadata.LastModifiedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert job %s", job.JobID)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrExists, "postgres: insert job %s", job.JobID)
	}
	return &job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var doc []byte
	var version int
	err := s.pool.QueryRow(ctx, `SELECT document, version FROM jobs WHERE id = $1`, jobID).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get job %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return decodeJob(doc, version)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job model.Job) (*model.Job, error) {
	expected := job.Metadata.Version
	job.Metadata.Version = expected + 1
	job.Metadata.LastModifiedAt = time.Now().UTC()

	doc, err := encodeJob(job)
	if err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, on_hold = $2, version = $3, document = $4, updated_at = $5
		 WHERE id = $6 AND version = $7`,
		string(job.JobStatus), job.OnHold(), job.Metadata.Version, doc, job.Metadata.LastModifiedAt,
		job.JobID, expected,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update job %s", job.JobID)
	}
	if tag.RowsAffected() == 1 {
		return &job, nil
	}

	var stored int
	err = s.pool.QueryRow(ctx, `SELECT version FROM jobs WHERE id = $1`, job.JobID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: update job %s", job.JobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read version %s", job.JobID)
	}
	return nil, eris.Wrapf(ErrVersionConflict, "postgres: update job %s: expected version %d, stored %d", job.JobID, expected, stored)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT document, version FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY updated_at DESC, id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argIdx)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		var doc []byte
		var version int
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		j, err := decodeJob(doc, version)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

// ImportJobs merges snapshots with a COPY-backed upsert, then COPYs one
// imported event per submitted job.
func (s *PostgresStore) ImportJobs(ctx context.Context, jobs []model.Job) (int64, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	jobRows := make([][]any, 0, len(jobs))
	eventRows := make([][]any, 0, len(jobs))
	for _, job := range jobs {
		job, err := prepareImport(job, now)
		if err != nil {
			return 0, err
		}
		doc, err := encodeJob(job)
		if err != nil {
			return 0, err
		}
		jobRows = append(jobRows, []any{
			job.JobID, string(job.JobStatus), job.OnHold(), job.Metadata.Version, doc,
			job.Metadata.CreatedAt, job.Metadata.LastModifiedAt,
		})

		ev, err := NewEvent(job, EventImported, job.Metadata.LastModifiedBy, nil, now)
		if err != nil {
			return 0, err
		}
		eventRows = append(eventRows, []any{ev.ID, ev.JobID, string(ev.Kind), ev.Actor, ev.Version, nil, ev.CreatedAt})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "jobs",
		Columns:      jobColumns,
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"status", "on_hold", "version", "document", "updated_at"},
		Where:        `"jobs"."version" < EXCLUDED."version"`,
	}, jobRows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import jobs")
	}

	if _, err := db.CopyFrom(ctx, s.pool, "job_events", eventColumns, eventRows); err != nil {
		return n, eris.Wrap(err, "postgres: import events")
	}
	return n, nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, ev Event) error {
	var payload []byte
	if len(ev.Payload) > 0 {
		payload = ev.Payload
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_events (id, job_id, kind, actor, version, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.JobID, string(ev.Kind), ev.Actor, ev.Version, payload, ev.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert event for job %s", ev.JobID)
}

func (s *PostgresStore) ListEvents(ctx context.Context, jobID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, kind, actor, version, payload, created_at
		 FROM job_events WHERE job_id = $1 ORDER BY created_at, id LIMIT $2`,
		jobID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list events %s", jobID)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var kind string
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.JobID, &kind, &ev.Actor, &ev.Version, &payload, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		ev.Kind = EventKind(kind)
		if len(payload) > 0 {
			ev.Payload = payload
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}
