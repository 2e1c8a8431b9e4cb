package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/engine"
	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/resilience"
	"github.com/sells-group/drylogs/internal/store"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, srvCfg config.ServerConfig) http.Handler {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	svc := engine.New(st, &config.Config{Engine: config.DefaultEngine()},
		engine.WithClock(func() time.Time { return now }),
		engine.WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}),
	)
	if srvCfg.AllowedOrigins == nil {
		srvCfg.AllowedOrigins = []string{"*"}
	}
	return New(svc, srvCfg).Handler()
}

func units(prefix string, n int) []model.EquipmentUnit {
	out := make([]model.EquipmentUnit, n)
	for i := range out {
		out[i] = model.EquipmentUnit{EquipmentID: fmt.Sprintf("%s-%d", prefix, i+1), Status: model.EquipmentDeployed}
	}
	return out
}

func testJob(id string) model.Job {
	var j model.Job
	j.JobID = id
	j.CustomerInfo.Name = "Pat Lin"
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
		DehumidifierRating: 10,
		Chambers: []model.Chamber{{
			ChamberID:     "ch1",
			AssignedRooms: []string{"r1"},
			Dehumidifiers: units("dh", 1),
			AirMovers:     units("am", 4),
		}},
	}
	j.Financial.EstimatedTotal = decimal.NewFromInt(5000)
	return j
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "psm-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateAndGetJob(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/jobs", testJob("job-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[model.Job](t, rec)
	assert.Equal(t, 1, created.Metadata.Version)
	assert.Equal(t, "psm-1", created.Metadata.CreatedBy)
	require.Len(t, created.PSMData.RedFlags, 1)
	assert.Equal(t, model.FlagEquipmentVariance, created.PSMData.RedFlags[0].Type)

	rec = do(t, h, http.MethodGet, "/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pat Lin", decodeBody[model.Job](t, rec).CustomerInfo.Name)

	rec = do(t, h, http.MethodPost, "/jobs", testJob("job-1"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/jobs?status=Pre-Install", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Job](t, rec), 1)

	rec = do(t, h, http.MethodGet, "/jobs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransition_GuardViolationIsConflict(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/jobs", testJob("job-1")).Code)

	rec := do(t, h, http.MethodPost, "/jobs/job-1/transitions", map[string]string{"phase": "pull", "to": "in-progress"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "check-service-completed", body.Guard)
	assert.Equal(t, "pull", body.Phase)
	assert.NotEmpty(t, body.Reason)

	rec = do(t, h, http.MethodPost, "/jobs/job-1/transitions", map[string]string{"phase": "install", "to": "in-progress"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Changed   bool            `json:"changed"`
		JobStatus model.JobStatus `json:"jobStatus"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Changed)
	assert.Equal(t, model.JobStatusInstall, res.JobStatus)

	rec = do(t, h, http.MethodPost, "/jobs/job-1/transitions", map[string]string{"phase": "drying", "to": "completed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHoldReleaseAndVisits(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/jobs", testJob("job-1")).Code)

	rec := do(t, h, http.MethodPost, "/jobs/job-1/hold", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/jobs/job-1/hold", holdRequest{Reason: "adjuster site visit"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.JobStatusOnHold, decodeBody[model.Job](t, rec).JobStatus)

	rec = do(t, h, http.MethodPost, "/jobs/job-1/transitions", map[string]string{"phase": "install", "to": "in-progress"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not-on-hold", decodeBody[errorBody](t, rec).Guard)

	rec = do(t, h, http.MethodDelete, "/jobs/job-1/hold", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody[model.Job](t, rec).Hold)

	rec = do(t, h, http.MethodPost, "/jobs/job-1/visits", model.Visit{Technician: "tech-1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "check-service-in-progress", decodeBody[errorBody](t, rec).Guard)

	rec = do(t, h, http.MethodGet, "/jobs/job-1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]store.Event](t, rec), 3)
}

func TestResolveFlag(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodPost, "/jobs", testJob("job-1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	flagID := decodeBody[model.Job](t, rec).PSMData.RedFlags[0].ID

	path := "/jobs/job-1/flags/" + flagID + "/resolve"
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, path, resolveRequest{}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/jobs/job-1/flags/nope/resolve", resolveRequest{Notes: "x"}).Code)

	rec = do(t, h, http.MethodPost, path, resolveRequest{Notes: "unit on backorder"})
	require.Equal(t, http.StatusOK, rec.Code)
	job := decodeBody[model.Job](t, rec)
	assert.True(t, job.PSMData.RedFlags[0].Resolved)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, path, resolveRequest{Notes: "again"}).Code)
}

func TestQueueAndRollups(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})

	quiet := testJob("quiet")
	quiet.Equipment.DehumidifierRating = 200
	rec := do(t, h, http.MethodPost, "/import", []model.Job{testJob("flagged"), quiet})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, importResponse{Submitted: 2, Written: 2}, decodeBody[importResponse](t, rec))

	rec = do(t, h, http.MethodGet, "/queue?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody[[]engine.QueueItem](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "flagged", items[0].JobID)
	assert.Equal(t, model.SeverityCritical, items[0].Highest)

	rec = do(t, h, http.MethodGet, "/bottlenecks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var a struct {
		TotalJobs int `json:"totalJobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, 2, a.TotalJobs)
}

func TestSizingDraft(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodPost, "/sizing", testJob(""))
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Dehumidifiers int      `json:"dehumidifiers"`
		Advice        []string `json:"advice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Dehumidifiers)
	assert.NotEmpty(t, out.Advice)

	req := httptest.NewRequest(http.MethodPost, "/sizing", bytes.NewBufferString("{not json"))
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{RateLimit: 0.001, RateBurst: 1})
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{AllowedOrigins: []string{"https://ops.example.com"}})
	req := httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
