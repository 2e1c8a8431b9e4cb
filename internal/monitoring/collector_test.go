package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/drylogs/internal/engine"
	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/priority"
	"github.com/sells-group/drylogs/internal/store"
)

type fakeSource struct {
	items       []engine.QueueItem
	bottlenecks []priority.Bottleneck
	queueErr    error
	calls       int
}

func (f *fakeSource) ReviewQueue(_ context.Context, _ store.JobFilter, _ int) ([]engine.QueueItem, error) {
	f.calls++
	return f.items, f.queueErr
}

func (f *fakeSource) Bottlenecks(context.Context) ([]priority.Bottleneck, error) {
	return f.bottlenecks, nil
}

func item(id string, highest model.Severity, urgency model.Urgency, status model.JobStatus) engine.QueueItem {
	return engine.QueueItem{
		Result:    priority.Result{JobID: id, Urgency: urgency},
		Highest:   highest,
		JobStatus: status,
	}
}

func TestCollector_Collect(t *testing.T) {
	src := &fakeSource{
		items: []engine.QueueItem{
			item("a", model.SeverityCritical, model.UrgencyCritical, model.JobStatusDemo),
			item("b", model.SeverityHigh, model.UrgencyHigh, model.JobStatusOnHold),
			item("c", "", model.UrgencyLow, model.JobStatusPreInstall),
		},
		bottlenecks: []priority.Bottleneck{
			{Type: priority.BottleneckMissingDocs, Count: 2, Jobs: []string{"a", "c"}},
			{Type: priority.BottleneckExternalDelay, Count: 1, Jobs: []string{"b"}},
		},
	}
	c := NewCollector(src)
	at := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Snapshot{
		JobsTotal:         3,
		CriticalFlagJobs:  []string{"a"},
		HighFlagJobs:      1,
		UrgentJobs:        1,
		AdjusterDelayJobs: []string{"b"},
		OnHoldJobs:        1,
		CollectedAt:       at,
	}, snap)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := NewCollector(&fakeSource{}).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.JobsTotal)
	assert.Empty(t, snap.CriticalFlagJobs)
	assert.NotNil(t, snap.AdjusterDelayJobs)
}

func TestCollector_Collect_Error(t *testing.T) {
	_, err := NewCollector(&fakeSource{queueErr: errors.New("db down")}).Collect(context.Background())
	assert.ErrorContains(t, err, "monitoring: review queue")
}
