package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/drylogs/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	on_hold    INTEGER NOT NULL DEFAULT 0,
	version    INTEGER NOT NULL,
	document   TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS job_events (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	kind       TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	version    INTEGER NOT NULL,
	payload    TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at);
CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events(job_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job model.Job) (*model.Job, error) {
	job, err := prepareCreate(job, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	doc, err := encodeJob(job)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, on_hold, version, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		job.JobID, string(job.JobStatus), job.OnHold(), job.Metadata.Version, string(doc),
		job.Metadata.CreatedAt, job.Metadata.LastModifiedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert job %s", job.JobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, eris.Wrapf(ErrExists, "sqlite: insert job %s", job.JobID)
	}
	return &job, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT document, version FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get job %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	return job, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job model.Job) (*model.Job, error) {
	expected := job.Metadata.Version
	job.Metadata.Version = expected + 1
	job.Metadata.LastModifiedAt = time.Now().UTC()

	doc, err := encodeJob(job)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, on_hold = ?, version = ?, document = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(job.JobStatus), job.OnHold(), job.Metadata.Version, string(doc), job.Metadata.LastModifiedAt,
		job.JobID, expected,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update job %s", job.JobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 1 {
		return &job, nil
	}

	var stored int
	err = s.db.QueryRowContext(ctx, `SELECT version FROM jobs WHERE id = ?`, job.JobID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: update job %s", job.JobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read version %s", job.JobID)
	}
	return nil, eris.Wrapf(ErrVersionConflict, "sqlite: update job %s: expected version %d, stored %d", job.JobID, expected, stored)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT document, version FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY updated_at DESC, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close() //nolint:errcheck

	jobs := []model.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) ImportJobs(ctx context.Context, jobs []model.Job) (int64, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var written int64
	for _, job := range jobs {
		job, err := prepareImport(job, now)
		if err != nil {
			return 0, err
		}
		doc, err := encodeJob(job)
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, status, on_hold, version, document, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   status = excluded.status, on_hold = excluded.on_hold, version = excluded.version,
			   document = excluded.document, updated_at = excluded.updated_at
			 WHERE jobs.version < excluded.version`,
			job.JobID, string(job.JobStatus), job.OnHold(), job.Metadata.Version, string(doc),
			job.Metadata.CreatedAt, job.Metadata.LastModifiedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import job %s", job.JobID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 0 {
			continue
		}
		written += n

		ev, err := NewEvent(job, EventImported, job.Metadata.LastModifiedBy, nil, now)
		if err != nil {
			return 0, err
		}
		if err := insertEventSQLite(ctx, tx, ev); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import: commit tx")
	}
	return written, nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev Event) error {
	return insertEventSQLite(ctx, s.db, ev)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, jobID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, kind, actor, version, payload, created_at
		 FROM job_events WHERE job_id = ? ORDER BY created_at, id LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list events %s", jobID)
	}
	defer rows.Close() //nolint:errcheck

	events := []Event{}
	for rows.Next() {
		var ev Event
		var payload sql.NullString
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.Kind, &ev.Actor, &ev.Version, &payload, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		if payload.Valid && payload.String != "" {
			ev.Payload = []byte(payload.String)
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

// helpers

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEventSQLite(ctx context.Context, db execer, ev Event) error {
	var payload any
	if len(ev.Payload) > 0 {
		payload = string(ev.Payload)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO job_events (id, job_id, kind, actor, version, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.JobID, string(ev.Kind), ev.Actor, ev.Version, payload, ev.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert event for job %s", ev.JobID)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var doc string
	var version int
	if err := row.Scan(&doc, &version); err != nil {
		return nil, err
	}
	return decodeJob([]byte(doc), version)
}
