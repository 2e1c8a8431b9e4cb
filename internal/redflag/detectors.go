package redflag

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/drylogs/internal/cost"
	"github.com/sells-group/drylogs/internal/drying"
	"github.com/sells-group/drylogs/internal/model"
)

// variance returns |placed-recommended|/recommended. A zero recommendation
// has nothing to compare against.
func variance(placed, recommended int) (float64, bool) {
	if recommended <= 0 {
		return 0, false
	}
	return math.Abs(float64(placed-recommended)) / float64(recommended), true
}

func (e *Engine) equipmentVariance(job *model.Job, _ time.Time) (finding, bool) {
	placedDehus, placedMovers, _ := job.Equipment.PlacedCounts()
	recDehus, recMovers, _ := e.recommended(job)

	worst, compared := 0.0, false
	for _, pair := range [][2]int{{placedDehus, recDehus}, {placedMovers, recMovers}} {
		if v, ok := variance(pair[0], pair[1]); ok {
			compared = true
			worst = math.Max(worst, v)
		}
	}
	if !compared || worst <= e.cfg.VarianceHigh {
		return finding{}, false
	}

	sev := model.SeverityHigh
	if worst >= e.cfg.VarianceCritical {
		sev = model.SeverityCritical
	}
	return finding{
		severity: sev,
		description: fmt.Sprintf(
			"Equipment variance detected: deployed %d dehumidifiers (IICRC: %d), %d air movers (IICRC: %d). Variance %s%% exceeds %s%%.",
			placedDehus, recDehus, placedMovers, recMovers,
			pct(worst), pct(e.cfg.VarianceHigh)),
	}, true
}

func (e *Engine) missingPhotos(job *model.Job, _ time.Time) (finding, bool) {
	photos := job.Photos()
	seen := make(map[model.PhotoStep]bool, len(photos))
	for _, p := range photos {
		seen[p.Step] = true
	}

	var missing []string
	if !seen[model.PhotoArrival] && !seen[model.PhotoAssessment] {
		missing = append(missing, "arrival/assessment")
	}
	if !seen[model.PhotoFinal] {
		missing = append(missing, string(model.PhotoFinal))
	}
	if len(missing) == 0 {
		return finding{}, false
	}

	sev := model.SeverityMedium
	if job.WorkflowPhases.Status(model.PhasePull) == model.PhaseCompleted {
		sev = model.SeverityCritical
	}
	return finding{
		severity: sev,
		description: fmt.Sprintf("Missing required photos: %s. Total photos: %d.",
			strings.Join(missing, ", "), len(photos)),
	}, true
}

func (e *Engine) moistureNotImproving(job *model.Job, _ time.Time) (finding, bool) {
	var stalled []string
	for _, room := range job.Rooms {
		for _, s := range drying.ByMaterial(room) {
			n := len(s.Readings)
			if n < 2 {
				continue
			}
			prev, latest := s.Readings[n-2], s.Readings[n-1]
			gap := latest.RecordedAt.Sub(prev.RecordedAt).Hours() / 24
			if gap < e.cfg.MoistureMinGapDays || latest.MoisturePercentage < prev.MoisturePercentage {
				continue
			}
			stalled = append(stalled, fmt.Sprintf("%s %s %s%% -> %s%% over %d days",
				roomLabel(room.RoomName, room.RoomID), s.Material,
				num(prev.MoisturePercentage), num(latest.MoisturePercentage), int(math.Floor(gap))))
		}
	}
	if len(stalled) == 0 {
		return finding{}, false
	}
	return finding{
		severity:    model.SeverityHigh,
		description: "Moisture readings not improving: " + strings.Join(stalled, "; ") + ". Drying may be stalled.",
	}, true
}

func (e *Engine) demoNoReason(job *model.Job, _ time.Time) (finding, bool) {
	install := job.WorkflowPhases.Install
	if !install.PartialDemoPerformed || install.PartialDemoDetails == nil {
		return finding{}, false
	}
	var rooms []string
	for _, r := range install.PartialDemoDetails.Rooms {
		if strings.TrimSpace(r.Notes) == "" {
			rooms = append(rooms, roomLabel(r.RoomName, r.RoomID))
		}
	}
	if len(rooms) == 0 {
		return finding{}, false
	}
	return finding{
		severity: model.SeverityMedium,
		description: fmt.Sprintf("Partial demo performed in %d room(s) without justification: %s.",
			len(rooms), strings.Join(rooms, ", ")),
	}, true
}

func (e *Engine) noAdjusterApproval(job *model.Job, _ time.Time) (finding, bool) {
	w := job.WorkflowPhases
	demoPerformed := w.Status(model.PhaseDemo) == model.PhaseCompleted || w.Install.PartialDemoPerformed
	if !demoPerformed {
		return finding{}, false
	}
	if job.PSMData.ApprovalStatus.DemoScope == model.ApprovalApproved || len(job.PSMData.AdjusterCommunications) > 0 {
		return finding{}, false
	}
	return finding{
		severity:    model.SeverityCritical,
		description: "Demo work completed without documented adjuster approval. No adjuster communications logged.",
	}, true
}

func (e *Engine) costOverrun(job *model.Job, _ time.Time) (finding, bool) {
	o, ok := cost.ComputeOverrun(job.Financial)
	if !ok || !o.Ratio.GreaterThan(decimal.NewFromFloat(e.cfg.OverrunHigh)) {
		return finding{}, false
	}
	sev := model.SeverityHigh
	if o.Ratio.GreaterThan(decimal.NewFromFloat(e.cfg.OverrunCritical)) {
		sev = model.SeverityCritical
	}
	return finding{
		severity: sev,
		description: fmt.Sprintf("Cost overrun detected: estimated %s, actual %s (+%s%%).",
			e.money.Money(o.Estimated), e.money.Money(o.Actual), o.Percent().StringFixed(1)),
	}, true
}

func (e *Engine) timelineDelay(job *model.Job, now time.Time) (finding, bool) {
	w := job.WorkflowPhases
	if w.Install.CompletedAt == nil || w.Status(model.PhasePull) == model.PhaseCompleted {
		return finding{}, false
	}
	_, _, est := e.recommended(job)
	if est <= 0 {
		return finding{}, false
	}
	since := model.WholeDays(*w.Install.CompletedAt, now)
	if since <= est+e.cfg.TimelineBufferDays {
		return finding{}, false
	}
	overdue := since - est
	sev := model.SeverityMedium
	if overdue > e.cfg.TimelineEscalateDays {
		sev = model.SeverityHigh
	}
	return finding{
		severity: sev,
		description: fmt.Sprintf("Job timeline exceeded: %d days since install (estimated %d days). %d days overdue.",
			since, est, overdue),
	}, true
}

func roomLabel(name, id string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return id
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// pct renders a ratio as a whole-number percentage.
func pct(ratio float64) string {
	return strconv.FormatFloat(math.Round(ratio*100), 'f', 0, 64)
}
