// Package monitoring watches the review queue and posts alerts to a
// webhook when critical work piles up.
package monitoring

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/drylogs/internal/engine"
	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/priority"
	"github.com/sells-group/drylogs/internal/store"
)

// Snapshot is a point-in-time view of the review queue.
type Snapshot struct {
	JobsTotal         int       `json:"jobs_total"`
	CriticalFlagJobs  []string  `json:"critical_flag_jobs"`
	HighFlagJobs      int       `json:"high_flag_jobs"`
	UrgentJobs        int       `json:"urgent_jobs"`
	AdjusterDelayJobs []string  `json:"adjuster_delay_jobs"`
	OnHoldJobs        int       `json:"on_hold_jobs"`
	CollectedAt       time.Time `json:"collected_at"`
}

// Source is the read side of the engine the collector needs.
type Source interface {
	ReviewQueue(ctx context.Context, filter store.JobFilter, limit int) ([]engine.QueueItem, error)
	Bottlenecks(ctx context.Context) ([]priority.Bottleneck, error)
}

// Collector gathers snapshots from the engine.
type Collector struct {
	src Source
	now func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src, now: func() time.Time { return time.Now().UTC() }}
}

// Collect scores every job and summarizes the result.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	items, err := c.src.ReviewQueue(ctx, store.JobFilter{}, math.MaxInt32)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: review queue")
	}
	bottlenecks, err := c.src.Bottlenecks(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: bottlenecks")
	}

	snap := &Snapshot{
		JobsTotal:         len(items),
		CriticalFlagJobs:  []string{},
		AdjusterDelayJobs: []string{},
		CollectedAt:       c.now(),
	}
	for _, it := range items {
		switch it.Highest {
		case model.SeverityCritical:
			snap.CriticalFlagJobs = append(snap.CriticalFlagJobs, it.JobID)
		case model.SeverityHigh:
			snap.HighFlagJobs++
		}
		if it.Urgency == model.UrgencyCritical {
			snap.UrgentJobs++
		}
		if it.JobStatus == model.JobStatusOnHold {
			snap.OnHoldJobs++
		}
	}
	for _, b := range bottlenecks {
		if b.Type == priority.BottleneckExternalDelay {
			snap.AdjusterDelayJobs = append(snap.AdjusterDelayJobs, b.Jobs...)
		}
	}
	return snap, nil
}
