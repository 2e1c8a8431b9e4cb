package engine

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/drylogs/internal/cost"
	"github.com/sells-group/drylogs/internal/drying"
	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/priority"
	"github.com/sells-group/drylogs/internal/redflag"
	"github.com/sells-group/drylogs/internal/sizing"
	"github.com/sells-group/drylogs/internal/store"
)

// QueueItem is one review-queue row.
type QueueItem struct {
	priority.Result
	CustomerName   string          `json:"customerName"`
	JobStatus      model.JobStatus `json:"jobStatus"`
	OpenFlags      int             `json:"openFlags"`
	Highest        model.Severity  `json:"highestSeverity,omitempty"`
	EstimatedTotal decimal.Decimal `json:"estimatedTotal"`
	AffectedSqFt   float64         `json:"affectedSqFt"`
}

// ReviewQueue scores every stored job against a fresh in-memory rescan and
// returns the queue in priority order, truncated to the configured limit
// when limit is zero.
func (s *Service) ReviewQueue(ctx context.Context, filter store.JobFilter, limit int) ([]QueueItem, error) {
	jobs, err := s.views(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]QueueItem, len(jobs))
	results := make([]priority.Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			open := job.UnresolvedFlags()
			results[i] = s.scorer.Score(job, now)
			items[i] = QueueItem{
				CustomerName:   job.CustomerInfo.Name,
				JobStatus:      job.JobStatus,
				OpenFlags:      len(open),
				Highest:        redflag.Highest(open),
				EstimatedTotal: cost.EstimatedTotal(job.Financial),
			}
			if calc := job.Equipment.Calculations; calc != nil {
				items[i].AffectedSqFt = calc.TotalAffectedSquareFootage
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: score queue")
	}

	byID := make(map[string]QueueItem, len(items))
	for i, r := range results {
		item := items[i]
		item.Result = r
		byID[r.JobID] = item
	}
	priority.SortResults(results)

	if limit <= 0 {
		limit = s.queue.Limit
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]QueueItem, len(results))
	for i, r := range results {
		out[i] = byID[r.JobID]
	}

	zap.L().Debug("review queue built",
		zap.Int("jobs", len(jobs)),
		zap.Int("returned", len(out)),
	)
	return out, nil
}

// Bottlenecks classifies the stored jobs.
func (s *Service) Bottlenecks(ctx context.Context) ([]priority.Bottleneck, error) {
	jobs, err := s.views(ctx, store.JobFilter{})
	if err != nil {
		return nil, err
	}
	return s.scorer.Bottlenecks(jobs, s.now()), nil
}

// Analytics summarizes review throughput over the stored jobs.
func (s *Service) Analytics(ctx context.Context) (priority.Analytics, error) {
	jobs, err := s.views(ctx, store.JobFilter{})
	if err != nil {
		return priority.Analytics{}, err
	}
	return s.scorer.Analytics(jobs), nil
}

// Priority scores one job as of now.
func (s *Service) Priority(ctx context.Context, jobID string) (priority.Result, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return priority.Result{}, err
	}
	now := s.now()
	return s.scorer.Score(s.Recompute(*job, now, ""), now), nil
}

// SizingReport is the sizing of a stored job with quality notes.
type SizingReport struct {
	sizing.JobSizing
	SuggestedClass model.WaterClass `json:"suggestedClass"`
	Advice         []string         `json:"advice"`
}

// Size sizes a stored job without persisting anything.
func (s *Service) Size(ctx context.Context, jobID string) (SizingReport, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return SizingReport{}, err
	}
	return s.SizeJob(*job), nil
}

// SizeJob sizes an unsaved job.
func (s *Service) SizeJob(job model.Job) SizingReport {
	js := s.sizer.SizeJob(job)
	containment := false
	for _, c := range job.Equipment.Chambers {
		containment = containment || c.Containment
	}
	advice := s.sizer.Advise(js, job.Classification.WaterCategory, job.Classification.WaterClass, containment)
	suggested := s.sizer.SuggestClass(job.Rooms)
	if len(job.Rooms) > 0 && suggested != job.Classification.WaterClass {
		current := "unset"
		if job.Classification.WaterClass.Valid() {
			current = job.Classification.WaterClass.String()
		}
		advice = append(advice, fmt.Sprintf("Rooms indicate %s water (classified as %s); review the classification", suggested, current))
	}
	return SizingReport{
		JobSizing:      js,
		SuggestedClass: suggested,
		Advice:         advice,
	}
}

// DetectFlags runs the detectors on a stored job as of now without
// persisting the result. Flags come back most severe first.
func (s *Service) DetectFlags(ctx context.Context, jobID string) ([]model.RedFlag, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return redflag.SortBySeverity(s.flags.Detect(*job, s.now())), nil
}

// DryingCurves returns the per-material drying curves of every room.
func (s *Service) DryingCurves(ctx context.Context, jobID string) ([]drying.Curve, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	curves := []drying.Curve{}
	for _, r := range job.Rooms {
		curves = append(curves, s.drying.RoomCurves(r)...)
	}
	return curves, nil
}

// Import recomputes jobs in parallel and upserts them. Snapshots older than
// the stored version are skipped by the store.
func (s *Service) Import(ctx context.Context, jobs []model.Job, actor string) (int64, error) {
	for i := range jobs {
		if jobs[i].JobID == "" {
			return 0, eris.Wrapf(ErrInvalid, "engine: import row %d has no job id", i+1)
		}
		if err := validateJob(jobs[i]); err != nil {
			return 0, eris.Wrapf(err, "engine: import job %s", jobs[i].JobID)
		}
	}

	now := s.now()
	prepared := make([]model.Job, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prepared[i] = s.Recompute(job, now, actor)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, eris.Wrap(err, "engine: prepare import")
	}

	n, err := s.store.ImportJobs(ctx, prepared)
	if err != nil {
		return 0, eris.Wrap(err, "engine: import jobs")
	}
	zap.L().Info("jobs imported",
		zap.Int("submitted", len(jobs)),
		zap.Int64("written", n),
	)
	return n, nil
}

// views loads jobs and recomputes their derived fields in memory so
// time-based flags and day counts reflect now.
func (s *Service) views(ctx context.Context, filter store.JobFilter) ([]model.Job, error) {
	jobs, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			jobs[i] = s.Recompute(jobs[i], now, "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: rescan jobs")
	}
	return jobs, nil
}

func (s *Service) workers() int {
	if s.queue.Workers > 0 {
		return s.queue.Workers
	}
	return 1
}
