package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/redflag"
	"github.com/sells-group/drylogs/internal/resilience"
	"github.com/sells-group/drylogs/internal/store"
	"github.com/sells-group/drylogs/internal/workflow"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestConfig() *config.Config {
	return &config.Config{Engine: config.DefaultEngine()}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestService(t *testing.T, st store.Store) *Service {
	t.Helper()
	return New(st, newTestConfig(),
		WithClock(func() time.Time { return now }),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
	)
}

func units(prefix string, n int) []model.EquipmentUnit {
	out := make([]model.EquipmentUnit, n)
	for i := range out {
		out[i] = model.EquipmentUnit{
			EquipmentID:  fmt.Sprintf("%s-%d", prefix, i+1),
			SerialNumber: fmt.Sprintf("SN-%s-%d", prefix, i+1),
			Status:       model.EquipmentDeployed,
		}
	}
	return out
}

// fieldJob is a 10x8x8 kitchen, class 2, LGR at 200 PPD with one
// dehumidifier, four air movers and one scrubber placed. It raises no flags.
func fieldJob(id string) model.Job {
	var j model.Job
	j.JobID = id
	j.CustomerInfo.Name = "Customer " + id
	j.Classification = model.Classification{WaterCategory: model.Category1, WaterClass: model.Class2}
	j.Rooms = []model.Room{{
		RoomID:     "r1",
		RoomName:   "Kitchen",
		Dimensions: model.Dimensions{Length: 10, Width: 8, Height: 8},
		AffectedAreas: model.AffectedAreas{
			Floor: model.SurfaceArea{AffectedSqFt: 80},
			Walls: model.SurfaceArea{AffectedSqFt: 48},
		},
		Photos: []model.Photo{
			{PhotoID: "p1", Step: model.PhotoArrival},
			{PhotoID: "p2", Step: model.PhotoFinal},
		},
	}}
	j.Equipment = model.Equipment{
		DehumidifierType:   model.DehumidifierLGR,
		DehumidifierRating: 200,
		Chambers: []model.Chamber{{
			ChamberID:     "ch1",
			ChamberName:   "Main",
			AssignedRooms: []string{"r1"},
			Dehumidifiers: units("dh", 1),
			AirMovers:     units("am", 4),
			AirScrubbers:  units("as", 1),
		}},
	}
	j.Financial.EstimatedTotal = decimal.NewFromInt(5000)
	j.PSMData.ApprovalStatus.DemoScope = model.ApprovalApproved
	return j
}

func hasFlag(job *model.Job, t model.FlagType) (model.RedFlag, bool) {
	for _, f := range job.PSMData.RedFlags {
		if f.Type == t {
			return f, true
		}
	}
	return model.RedFlag{}, false
}

func TestCreate_ComputesDerivedFields(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	job := fieldJob("job-1")
	job.Equipment.DehumidifierRating = 10 // two units needed, one placed

	created, err := svc.Create(ctx, job, "tech-1")
	require.NoError(t, err)

	assert.Equal(t, 1, created.Metadata.Version)
	assert.Equal(t, model.JobStatusPreInstall, created.JobStatus)
	require.NotNil(t, created.Equipment.Calculations)
	assert.Equal(t, 2, created.Equipment.Calculations.RecommendedDehumidifierCount)
	assert.Equal(t, now, created.Equipment.Calculations.LastCalculatedAt)

	f, ok := hasFlag(created, model.FlagEquipmentVariance)
	require.True(t, ok)
	assert.Equal(t, model.SeverityCritical, f.Severity)

	assert.NotContains(t, created.PSMData.DocumentationReview.MissingItems, redflag.DocArrivalPhotos)

	events, err := svc.Events(ctx, "job-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.EventCreated, events[0].Kind)
	assert.Equal(t, "tech-1", events[0].Actor)
}

func TestDetectFlags_MostSevereFirst(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	job := fieldJob("job-1")
	job.Equipment.DehumidifierRating = 10
	job.Rooms[0].Photos = nil
	_, err := svc.Create(ctx, job, "tech-1")
	require.NoError(t, err)

	flags, err := svc.DetectFlags(ctx, "job-1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(flags), 2)
	assert.Equal(t, model.SeverityCritical, flags[0].Severity)
	for i := 1; i < len(flags); i++ {
		assert.GreaterOrEqual(t, flags[i-1].Severity.Rank(), flags[i].Severity.Rank())
	}
}

func TestCreate_GeneratesIDAndValidates(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	created, err := svc.Create(ctx, model.Job{}, "tech-1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.JobID)

	bad := fieldJob("bad")
	bad.Classification.WaterClass = 9
	_, err = svc.Create(ctx, bad, "tech-1")
	assert.ErrorIs(t, err, ErrInvalid)

	dup := fieldJob("dup")
	dup.Rooms = append(dup.Rooms, dup.Rooms[0])
	_, err = svc.Create(ctx, dup, "tech-1")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTransition_AppliesAndIsIdempotent(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()
	_, err := svc.Create(ctx, fieldJob("job-1"), "tech-1")
	require.NoError(t, err)

	req := workflow.Request{Phase: model.PhaseInstall, To: model.PhaseInProgress, Technician: "tech-1"}
	res, err := svc.Transition(ctx, "job-1", req, "tech-1")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.JobStatusInstall, res.JobStatus)
	assert.Equal(t, 2, res.Job.Metadata.Version)
	require.NotNil(t, res.Job.WorkflowPhases.Install.StartedAt)
	assert.Equal(t, now, *res.Job.WorkflowPhases.Install.StartedAt)

	again, err := svc.Transition(ctx, "job-1", req, "tech-1")
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, 2, again.Job.Metadata.Version)

	events, err := svc.Events(ctx, "job-1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestTransition_GuardViolationLeavesJobUntouched(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()
	_, err := svc.Create(ctx, fieldJob("job-1"), "tech-1")
	require.NoError(t, err)

	_, err = svc.Transition(ctx, "job-1", workflow.Request{Phase: model.PhaseDemo, To: model.PhaseInProgress}, "tech-1")
	ite, ok := workflow.AsInvalidTransition(err)
	require.True(t, ok, "expected InvalidTransitionError, got %v", err)
	assert.Equal(t, workflow.GuardInstallCompleted, ite.Guard)

	job, err := svc.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, job.Metadata.Version)
	assert.Equal(t, model.PhasePending, job.WorkflowPhases.Status(model.PhaseDemo))
}

func TestTransition_UnknownPhase(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	_, err := svc.Transition(context.Background(), "job-1", workflow.Request{Phase: "drying", To: model.PhaseCompleted}, "x")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTransition_JobNotFound(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	_, err := svc.Transition(context.Background(), "ghost", workflow.Request{Phase: model.PhaseInstall, To: model.PhaseInProgress}, "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHoldAndRelease(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()
	_, err := svc.Create(ctx, fieldJob("job-1"), "tech-1")
	require.NoError(t, err)

	_, err = svc.Hold(ctx, "job-1", "", "psm-1")
	require.ErrorIs(t, err, ErrInvalid)

	held, err := svc.Hold(ctx, "job-1", "awaiting adjuster", "psm-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusOnHold, held.JobStatus)

	again, err := svc.Hold(ctx, "job-1", "other", "psm-2")
	require.NoError(t, err)
	assert.Equal(t, held.Metadata.Version, again.Metadata.Version)
	assert.Equal(t, "awaiting adjuster", again.Hold.Reason)

	_, err = svc.Transition(ctx, "job-1", workflow.Request{Phase: model.PhaseInstall, To: model.PhaseInProgress}, "tech-1")
	ite, ok := workflow.AsInvalidTransition(err)
	require.True(t, ok)
	assert.Equal(t, workflow.GuardNotOnHold, ite.Guard)

	released, err := svc.Release(ctx, "job-1", "psm-1")
	require.NoError(t, err)
	assert.Nil(t, released.Hold)
	assert.Equal(t, model.JobStatusPreInstall, released.JobStatus)

	_, err = svc.Transition(ctx, "job-1", workflow.Request{Phase: model.PhaseInstall, To: model.PhaseInProgress}, "tech-1")
	require.NoError(t, err)
}

func TestAddVisit_ThenCompleteCheckService(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	job := fieldJob("job-1")
	job.WorkflowPhases.Install.Status = model.PhaseCompleted
	job.WorkflowPhases.Demo.NotRequired = true
	_, err := svc.Create(ctx, job, "tech-1")
	require.NoError(t, err)

	_, err = svc.AddVisit(ctx, "job-1", model.Visit{Technician: "tech-1"}, "tech-1")
	ite, ok := workflow.AsInvalidTransition(err)
	require.True(t, ok)
	assert.Equal(t, workflow.GuardCheckServiceActive, ite.Guard)

	_, err = svc.Transition(ctx, "job-1", workflow.Request{Phase: model.PhaseCheckService, To: model.PhaseInProgress}, "tech-1")
	require.NoError(t, err)

	_, err = svc.AddVisit(ctx, "job-1", model.Visit{Technician: "tech-1", ReadingsVerified: false}, "tech-1")
	require.NoError(t, err)

	_, err = svc.Transition(ctx, "job-1", workflow.Request{Phase: model.PhaseCheckService, To: model.PhaseCompleted}, "tech-1")
	ite, ok = workflow.AsInvalidTransition(err)
	require.True(t, ok)
	assert.Equal(t, workflow.GuardReadingsVerified, ite.Guard)

	withVisit, err := svc.AddVisit(ctx, "job-1", model.Visit{Technician: "tech-1", ReadingsVerified: true}, "tech-1")
	require.NoError(t, err)
	require.Len(t, withVisit.WorkflowPhases.CheckService.Visits, 2)
	assert.Equal(t, 2, withVisit.WorkflowPhases.CheckService.Visits[1].VisitNumber)

	res, err := svc.Transition(ctx, "job-1", workflow.Request{Phase: model.PhaseCheckService, To: model.PhaseCompleted}, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPull, res.JobStatus)
}

func TestTransition_VisitOnCurrentStatusIsSaved(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	job := fieldJob("job-1")
	job.WorkflowPhases.Install.Status = model.PhaseCompleted
	job.WorkflowPhases.Demo.NotRequired = true
	job.WorkflowPhases.CheckService.Status = model.PhaseInProgress
	_, err := svc.Create(ctx, job, "tech-1")
	require.NoError(t, err)

	res, err := svc.Transition(ctx, "job-1", workflow.Request{
		Phase: model.PhaseCheckService,
		To:    model.PhaseInProgress,
		Visit: &model.Visit{Technician: "tech-1", Notes: "day 2 readings"},
	}, "tech-1")
	require.NoError(t, err)
	assert.True(t, res.Changed)

	stored, err := svc.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, stored.WorkflowPhases.CheckService.Visits, 1)
	assert.Equal(t, "day 2 readings", stored.WorkflowPhases.CheckService.Visits[0].Notes)
	assert.Equal(t, 2, stored.Metadata.Version)
}

func TestResolveFlag_StaysResolvedOnRescan(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	job := fieldJob("job-1")
	job.Equipment.DehumidifierRating = 10
	created, err := svc.Create(ctx, job, "tech-1")
	require.NoError(t, err)
	flag, ok := hasFlag(created, model.FlagEquipmentVariance)
	require.True(t, ok)

	_, err = svc.ResolveFlag(ctx, "job-1", flag.ID, "", "psm-1")
	require.ErrorIs(t, err, redflag.ErrResolutionNotes)

	_, err = svc.ResolveFlag(ctx, "job-1", "nope", "notes", "psm-1")
	require.ErrorIs(t, err, redflag.ErrFlagNotFound)

	resolved, err := svc.ResolveFlag(ctx, "job-1", flag.ID, "second unit on backorder", "psm-1")
	require.NoError(t, err)
	f, _ := hasFlag(resolved, model.FlagEquipmentVariance)
	assert.True(t, f.Resolved)
	require.NotNil(t, f.Resolution)
	assert.Equal(t, "psm-1", f.Resolution.ResolvedBy)

	rescanned, err := svc.Rescan(ctx, "job-1", "psm-1")
	require.NoError(t, err)
	assert.Empty(t, rescanned.UnresolvedFlags())
	assert.Len(t, rescanned.PSMData.RedFlags, 1)
}

// racingStore lets another writer commit between the engine's load and
// save on the first attempt.
type racingStore struct {
	store.Store
	raced bool
}

func (r *racingStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := r.Store.GetJob(ctx, id)
	if err != nil || r.raced {
		return job, err
	}
	r.raced = true
	other := *job
	other.Communication.CustomerConcerns = append(other.Communication.CustomerConcerns, "noise at night")
	if _, err := r.Store.UpdateJob(ctx, other); err != nil {
		return nil, err
	}
	return job, nil
}

func TestMutate_RetriesAfterVersionConflict(t *testing.T) {
	base := newTestStore(t)
	svc := newTestService(t, base)
	ctx := context.Background()
	_, err := svc.Create(ctx, fieldJob("job-1"), "tech-1")
	require.NoError(t, err)

	racing := &racingStore{Store: base}
	svc.store = racing

	held, err := svc.Hold(ctx, "job-1", "customer travel", "psm-1")
	require.NoError(t, err)
	assert.True(t, racing.raced)
	assert.Equal(t, 3, held.Metadata.Version)
	assert.Equal(t, []string{"noise at night"}, held.Communication.CustomerConcerns)
	assert.Equal(t, model.JobStatusOnHold, held.JobStatus)
}

func TestReviewQueue_Ordering(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	quiet := fieldJob("b-quiet")
	critical := fieldJob("c-critical")
	critical.Equipment.DehumidifierRating = 10
	valuable := fieldJob("a-valuable")
	valuable.Financial.EstimatedTotal = decimal.NewFromInt(25000)

	for _, j := range []model.Job{quiet, critical, valuable} {
		_, err := svc.Create(ctx, j, "tech-1")
		require.NoError(t, err)
	}

	queue, err := svc.ReviewQueue(ctx, store.JobFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, "c-critical", queue[0].JobID)
	assert.Equal(t, model.SeverityCritical, queue[0].Highest)
	assert.Equal(t, 1, queue[0].OpenFlags)
	assert.Equal(t, "a-valuable", queue[1].JobID)
	assert.Equal(t, "b-quiet", queue[2].JobID)
	assert.Equal(t, "Customer b-quiet", queue[2].CustomerName)
	assert.Equal(t, 128.0, queue[2].AffectedSqFt)

	top, err := svc.ReviewQueue(ctx, store.JobFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "c-critical", top[0].JobID)
}

func TestImport_AndRollups(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	a := fieldJob("a")
	a.PSMData.PSMPhase.Status = model.ReviewAwaitingAdjuster
	submitted := now.AddDate(0, 0, -5)
	a.PSMData.PSMPhase.SubmittedToAdjusterAt = &submitted
	b := fieldJob("b")
	b.Equipment.Chambers = nil

	n, err := svc.Import(ctx, []model.Job{a, b}, "importer")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := svc.Get(ctx, "b")
	require.NoError(t, err)
	assert.Contains(t, got.PSMData.DocumentationReview.MissingItems, redflag.DocEquipment)

	bottlenecks, err := svc.Bottlenecks(ctx)
	require.NoError(t, err)
	types := map[string]int{}
	for _, b := range bottlenecks {
		types[string(b.Type)] = b.Count
	}
	assert.Equal(t, 1, types["external-response-delay"])
	assert.Equal(t, 2, types["missing-documentation"])

	analytics, err := svc.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.TotalJobs)

	_, err = svc.Import(ctx, []model.Job{{}}, "importer")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSizeAndCurves(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	ctx := context.Background()

	job := fieldJob("job-1")
	job.Rooms[0].MoistureReadings = []model.MoistureReading{
		{Material: "Drywall", MoisturePercentage: 30, RecordedAt: now.AddDate(0, 0, -2), ReadingType: model.ReadingPreDemo},
		{Material: "Drywall", MoisturePercentage: 22, RecordedAt: now.AddDate(0, 0, -1), ReadingType: model.ReadingDailyCheck},
	}
	_, err := svc.Create(ctx, job, "tech-1")
	require.NoError(t, err)

	report, err := svc.Size(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dehumidifiers)
	assert.NotEmpty(t, report.Advice)
	assert.Equal(t, model.Class2, report.SuggestedClass)
	for _, note := range report.Advice {
		assert.NotContains(t, note, "review the classification")
	}

	misclassified := fieldJob("job-2")
	misclassified.Classification.WaterClass = model.Class3
	assert.Contains(t, svc.SizeJob(misclassified).Advice,
		"Rooms indicate Class 2 water (classified as Class 3); review the classification")

	plaster := fieldJob("job-3")
	plaster.Classification.WaterClass = 0
	plaster.Rooms[0].MoistureReadings = []model.MoistureReading{{Material: "Plaster", MoisturePercentage: 40}}
	unset := svc.SizeJob(plaster)
	assert.Equal(t, model.Class4, unset.SuggestedClass)
	assert.Contains(t, unset.Advice, "Rooms indicate Class 4 water (classified as unset); review the classification")

	curves, err := svc.DryingCurves(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, curves, 1)
	assert.Equal(t, "Kitchen", curves[0].RoomName)

	_, err = svc.Size(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
