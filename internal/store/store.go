// Package store persists job snapshots with optimistic versioning and an
// append-only event log.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/drylogs/internal/model"
)

var (
	// ErrNotFound is returned when no job has the requested id.
	ErrNotFound = eris.New("store: job not found")
	// ErrVersionConflict is returned when UpdateJob's expected version is
	// stale. The caller reloads and reapplies.
	ErrVersionConflict = eris.New("store: version conflict")
	// ErrExists is returned by CreateJob for a duplicate job id.
	ErrExists = eris.New("store: job already exists")
)

// JobFilter narrows ListJobs. A zero Limit returns every match.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// EventKind names a job event.
type EventKind string

const (
	EventCreated    EventKind = "created"
	EventImported   EventKind = "imported"
	EventTransition EventKind = "transition"
	EventVisit      EventKind = "visit"
	EventHold       EventKind = "hold"
	EventRelease    EventKind = "release"
	EventResolve    EventKind = "resolve"
	EventRescan     EventKind = "rescan"
)

// Event is one audit record. Version is the job version the event produced.
type Event struct {
	ID        string          `json:"id"`
	JobID     string          `json:"jobId"`
	Kind      EventKind       `json:"kind"`
	Actor     string          `json:"actor,omitempty"`
	Version   int             `json:"version"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEvent builds an event for job with a time-ordered id.
func NewEvent(job model.Job, kind EventKind, actor string, payload any, at time.Time) (Event, error) {
	ev := Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		JobID:     job.JobID,
		Kind:      kind,
		Actor:     actor,
		Version:   job.Metadata.Version,
		CreatedAt: at.UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, eris.Wrap(err, "store: marshal event payload")
		}
		ev.Payload = raw
	}
	return ev, nil
}

// Store persists jobs and their events.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job model.Job) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	// UpdateJob writes job if the stored version still equals
	// job.Metadata.Version, and returns it with the version bumped.
	UpdateJob(ctx context.Context, job model.Job) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	// ImportJobs upserts snapshots. A stored job is only replaced by a
	// snapshot with a higher version.
	ImportJobs(ctx context.Context, jobs []model.Job) (int64, error)

	// Events
	AppendEvent(ctx context.Context, ev Event) error
	ListEvents(ctx context.Context, jobID string, limit int) ([]Event, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func prepareCreate(job model.Job, now time.Time) (model.Job, error) {
	if job.JobID == "" {
		return job, eris.New("store: job id is required")
	}
	job.Metadata.Version = 1
	if job.Metadata.CreatedAt.IsZero() {
		job.Metadata.CreatedAt = now
	}
	job.Metadata.LastModifiedAt = now
	return job, nil
}

func prepareImport(job model.Job, now time.Time) (model.Job, error) {
	if job.JobID == "" {
		return job, eris.New("store: job id is required")
	}
	if job.Metadata.Version < 1 {
		job.Metadata.Version = 1
	}
	if job.Metadata.CreatedAt.IsZero() {
		job.Metadata.CreatedAt = now
	}
	if job.Metadata.LastModifiedAt.IsZero() {
		job.Metadata.LastModifiedAt = now
	}
	return job, nil
}

func encodeJob(job model.Job) ([]byte, error) {
	doc, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal job %s", job.JobID)
	}
	return doc, nil
}

// decodeJob trusts the version column over the document copy.
func decodeJob(doc []byte, version int) (*model.Job, error) {
	var job model.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal job")
	}
	job.Metadata.Version = version
	return &job, nil
}
