// Package redflag scans a job snapshot for compliance and quality anomalies.
//
// Detection is a full re-scan: every detector reads the whole job and emits
// at most one aggregated flag. Engine holds configuration only, so one
// Engine may be shared by any number of goroutines.
package redflag

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/cost"
	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/sizing"
)

// flagNamespace seeds the name-based flag ids.
var flagNamespace = uuid.MustParse("5f0c7a3e-2a4b-4c1e-9d7e-6b8a1f3c2d90")

// finding is a detector hit before it is stamped into a RedFlag.
type finding struct {
	severity    model.Severity
	description string
}

type detector struct {
	flag  model.FlagType
	check func(job *model.Job, now time.Time) (finding, bool)
}

// Engine runs the detector battery.
type Engine struct {
	cfg       config.RedFlagConfig
	sizer     *sizing.Calculator
	money     *cost.Calculator
	detectors []detector
}

// NewEngine creates an Engine from the engine tuning table.
func NewEngine(cfg config.EngineConfig) *Engine {
	e := &Engine{
		cfg:   cfg.RedFlag,
		sizer: sizing.NewCalculator(cfg.Sizing),
		money: cost.NewCalculator(language.AmericanEnglish),
	}
	e.detectors = []detector{
		{model.FlagEquipmentVariance, e.equipmentVariance},
		{model.FlagMissingPhotos, e.missingPhotos},
		{model.FlagMoistureNotImproving, e.moistureNotImproving},
		{model.FlagDemoNoReason, e.demoNoReason},
		{model.FlagNoAdjusterApproval, e.noAdjusterApproval},
		{model.FlagCostOverrun, e.costOverrun},
		{model.FlagTimelineDelay, e.timelineDelay},
	}
	return e
}

// Detect runs every detector against job and returns the flags raised, in
// detector order. Detect has no side effects; job is not modified.
func (e *Engine) Detect(job model.Job, now time.Time) []model.RedFlag {
	generations := resolvedCounts(job.PSMData.RedFlags)
	var out []model.RedFlag
	for _, d := range e.detectors {
		f, ok := d.check(&job, now)
		if !ok {
			continue
		}
		out = append(out, model.RedFlag{
			ID:          FlagID(job.JobID, d.flag, generations[d.flag]),
			Type:        d.flag,
			Severity:    f.severity,
			Description: f.description,
			DetectedAt:  now,
		})
	}
	return out
}

// FlagID derives a stable id for the generation-th occurrence of a flag
// type on a job. Generation counts prior resolved flags of that type, so a
// re-raised flag never collides with its resolved predecessor.
func FlagID(jobID string, t model.FlagType, generation int) string {
	name := jobID + "/" + string(t)
	if generation > 0 {
		name += "/" + strconv.Itoa(generation)
	}
	return uuid.NewSHA1(flagNamespace, []byte(name)).String()
}

func resolvedCounts(flags []model.RedFlag) map[model.FlagType]int {
	out := make(map[model.FlagType]int)
	for _, f := range flags {
		if f.Resolved {
			out[f.Type]++
		}
	}
	return out
}

// recommended returns the recommended dehumidifier and air mover counts and
// drying days, sized fresh from geometry when the job has rooms, otherwise
// taken from the persisted calculations.
func (e *Engine) recommended(job *model.Job) (dehus, movers, days int) {
	if len(job.Rooms) > 0 {
		s := e.sizer.SizeJob(*job)
		if s.TotalCubicFootage > 0 {
			return s.Dehumidifiers, s.AirMovers, s.EstimatedDryingDays
		}
	}
	if c := job.Equipment.Calculations; c != nil {
		return c.RecommendedDehumidifierCount, c.RecommendedAirMoverCount, c.EstimatedDryingDays
	}
	return 0, 0, 0
}
