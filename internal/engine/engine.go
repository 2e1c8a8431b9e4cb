// Package engine is the service layer over the pure job packages. Every
// mutation loads one job snapshot, applies a pure operation, recomputes
// sizing, red flags, documentation and status in full, and writes back with
// an optimistic version check, retrying the whole cycle on conflict.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/drying"
	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/priority"
	"github.com/sells-group/drylogs/internal/redflag"
	"github.com/sells-group/drylogs/internal/resilience"
	"github.com/sells-group/drylogs/internal/sizing"
	"github.com/sells-group/drylogs/internal/store"
	"github.com/sells-group/drylogs/internal/workflow"
)

// ErrInvalid marks a malformed request.
var ErrInvalid = eris.New("engine: invalid request")

// errUnchanged short-circuits a mutation that would not change the job.
var errUnchanged = errors.New("unchanged")

// Service runs job operations against a Store.
type Service struct {
	store  store.Store
	sizer  *sizing.Calculator
	flags  *redflag.Engine
	scorer *priority.Scorer
	drying *drying.Analyzer
	queue  config.QueueConfig
	retry  resilience.RetryConfig
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRetry overrides the conflict retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// New creates a Service.
func New(st store.Store, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:  st,
		sizer:  sizing.NewCalculator(cfg.Engine.Sizing),
		flags:  redflag.NewEngine(cfg.Engine),
		scorer: priority.NewScorer(cfg.Engine.Priority),
		drying: drying.NewAnalyzer(cfg.Engine.Drying),
		queue:  cfg.Engine.Queue,
		retry:  resilience.FromConfig(cfg.Retry),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recompute refreshes every derived field of job as of now: the equipment
// calculations, the red flag list, the documentation review and the job
// status. It does not touch the store.
func (s *Service) Recompute(job model.Job, now time.Time, by string) model.Job {
	if len(job.Rooms) > 0 {
		calc := s.sizer.SizeJob(job).ToCalculations(job, now, by)
		job.Equipment.Calculations = &calc
	}

	job.PSMData.RedFlags = redflag.Reconcile(job.PSMData.RedFlags, s.flags.Detect(job, now))
	redflag.CheckDocumentation(job).ApplyTo(&job.PSMData.DocumentationReview)
	job.JobStatus = workflow.DeriveStatus(job)

	if by != "" {
		job.Metadata.LastModifiedBy = by
	}
	return job
}

// Create stores a new job. An empty job id gets a generated one.
func (s *Service) Create(ctx context.Context, job model.Job, actor string) (*model.Job, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if err := validateJob(job); err != nil {
		return nil, err
	}

	now := s.now()
	job.Metadata.CreatedBy = actor
	job = s.Recompute(job, now, actor)

	created, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return nil, eris.Wrap(err, "engine: create job")
	}
	s.record(ctx, *created, store.EventCreated, actor, nil, now)

	zap.L().Info("job created",
		zap.String("job_id", created.JobID),
		zap.String("status", string(created.JobStatus)),
		zap.Int("red_flags", len(created.UnresolvedFlags())),
	)
	return created, nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Get loads a job.
func (s *Service) Get(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "engine: get job")
	}
	return job, nil
}

// List returns stored jobs.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]model.Job, error) {
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "engine: list jobs")
	}
	return jobs, nil
}

// Events returns the audit log of a job, oldest first.
func (s *Service) Events(ctx context.Context, jobID string, limit int) ([]store.Event, error) {
	events, err := s.store.ListEvents(ctx, jobID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "engine: list events")
	}
	return events, nil
}

// Transition moves one workflow phase. A request for the current status
// is a no-op that returns the stored job with Changed=false.
func (s *Service) Transition(ctx context.Context, jobID string, req workflow.Request, actor string) (workflow.Result, error) {
	if !req.Phase.Valid() || !req.To.Valid() {
		return workflow.Result{}, eris.Wrapf(ErrInvalid, "engine: unknown phase %q or status %q", req.Phase, req.To)
	}

	var res workflow.Result
	job, err := s.mutate(ctx, jobID, actor, store.EventTransition, func(cur model.Job, now time.Time) (model.Job, any, error) {
		r := req
		if r.At.IsZero() {
			r.At = now
		}
		out, err := workflow.Apply(cur, r)
		res = out
		if err != nil {
			return cur, nil, err
		}
		if !out.Changed {
			return cur, nil, errUnchanged
		}
		return out.Job, transitionPayload{Phase: req.Phase, From: out.From, To: out.To, Notes: req.Notes}, nil
	})
	if err != nil {
		return res, err
	}

	res.Job = *job
	res.JobStatus = job.JobStatus
	return res, nil
}

type transitionPayload struct {
	Phase model.Phase       `json:"phase"`
	From  model.PhaseStatus `json:"from"`
	To    model.PhaseStatus `json:"to"`
	Notes string            `json:"notes,omitempty"`
}

// AddVisit appends a check-service visit.
func (s *Service) AddVisit(ctx context.Context, jobID string, v model.Visit, actor string) (*model.Job, error) {
	return s.mutate(ctx, jobID, actor, store.EventVisit, func(cur model.Job, now time.Time) (model.Job, any, error) {
		next, err := workflow.AppendVisit(cur, v, now)
		if err != nil {
			return cur, nil, err
		}
		visits := next.WorkflowPhases.CheckService.Visits
		return next, visits[len(visits)-1], nil
	})
}

// Hold places the job on hold. Holding a held job keeps the first hold.
func (s *Service) Hold(ctx context.Context, jobID, reason, actor string) (*model.Job, error) {
	if reason == "" {
		return nil, eris.Wrap(ErrInvalid, "engine: hold reason is required")
	}
	return s.mutate(ctx, jobID, actor, store.EventHold, func(cur model.Job, now time.Time) (model.Job, any, error) {
		if cur.OnHold() {
			return cur, nil, errUnchanged
		}
		return workflow.SetHold(cur, reason, actor, now), map[string]string{"reason": reason}, nil
	})
}

// Release clears a hold.
func (s *Service) Release(ctx context.Context, jobID, actor string) (*model.Job, error) {
	return s.mutate(ctx, jobID, actor, store.EventRelease, func(cur model.Job, _ time.Time) (model.Job, any, error) {
		if !cur.OnHold() {
			return cur, nil, errUnchanged
		}
		return workflow.ReleaseHold(cur), map[string]string{"reason": cur.Hold.Reason}, nil
	})
}

// ResolveFlag closes one red flag with notes.
func (s *Service) ResolveFlag(ctx context.Context, jobID, flagID, notes, actor string) (*model.Job, error) {
	return s.mutate(ctx, jobID, actor, store.EventResolve, func(cur model.Job, now time.Time) (model.Job, any, error) {
		flags, err := redflag.Resolve(cur.PSMData.RedFlags, flagID, notes, actor, now)
		if err != nil {
			return cur, nil, err
		}
		cur.PSMData.RedFlags = flags
		return cur, map[string]string{"flagId": flagID, "notes": notes}, nil
	})
}

// Rescan recomputes and persists the derived fields as of now.
func (s *Service) Rescan(ctx context.Context, jobID, actor string) (*model.Job, error) {
	return s.mutate(ctx, jobID, actor, store.EventRescan, func(cur model.Job, _ time.Time) (model.Job, any, error) {
		return cur, nil, nil
	})
}

// mutation applies one pure change to a loaded snapshot and returns the
// next snapshot with an event payload.
type mutation func(cur model.Job, now time.Time) (model.Job, any, error)

func (s *Service) mutate(ctx context.Context, jobID, actor string, kind store.EventKind, fn mutation) (*model.Job, error) {
	cfg := s.retry
	cfg.ShouldRetry = retryable
	cfg.OnRetry = resilience.RetryLogger(string(kind), jobID)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.Job, error) {
		cur, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, eris.Wrap(err, "engine: load job")
		}

		now := s.now()
		next, payload, err := fn(*cur, now)
		if errors.Is(err, errUnchanged) {
			return cur, nil
		}
		if err != nil {
			return nil, err
		}

		next = s.Recompute(next, now, actor)
		saved, err := s.store.UpdateJob(ctx, next)
		if err != nil {
			return nil, eris.Wrap(err, "engine: save job")
		}
		s.record(ctx, *saved, kind, actor, payload, now)

		zap.L().Info("job updated",
			zap.String("job_id", saved.JobID),
			zap.String("event", string(kind)),
			zap.Int("version", saved.Metadata.Version),
			zap.String("status", string(saved.JobStatus)),
		)
		return saved, nil
	})
}

// record appends an audit event. The job write has already committed, so a
// failure is logged rather than returned.
func (s *Service) record(ctx context.Context, job model.Job, kind store.EventKind, actor string, payload any, now time.Time) {
	ev, err := store.NewEvent(job, kind, actor, payload, now)
	if err == nil {
		err = s.store.AppendEvent(ctx, ev)
	}
	if err != nil {
		zap.L().Warn("append job event failed",
			zap.String("job_id", job.JobID),
			zap.String("event", string(kind)),
			zap.Error(err),
		)
	}
}

func retryable(err error) bool {
	return errors.Is(err, store.ErrVersionConflict) || resilience.IsTransient(err)
}

func validateJob(job model.Job) error {
	c := job.Classification
	if c.WaterCategory != 0 && !c.WaterCategory.Valid() {
		return eris.Wrapf(ErrInvalid, "engine: water category %d", c.WaterCategory)
	}
	if c.WaterClass != 0 && !c.WaterClass.Valid() {
		return eris.Wrapf(ErrInvalid, "engine: water class %d", c.WaterClass)
	}
	if t := job.Equipment.DehumidifierType; t != "" && !t.Valid() {
		return eris.Wrapf(ErrInvalid, "engine: dehumidifier type %q", t)
	}
	seen := map[string]bool{}
	for _, r := range job.Rooms {
		if r.RoomID == "" {
			return eris.Wrap(ErrInvalid, "engine: room id is required")
		}
		if seen[r.RoomID] {
			return eris.Wrapf(ErrInvalid, "engine: duplicate room id %s", r.RoomID)
		}
		seen[r.RoomID] = true
	}
	return nil
}
