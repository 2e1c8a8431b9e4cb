// Package priority ranks jobs for the review queue with an additive point
// model and rolls the job population up into bottlenecks and analytics.
package priority

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/cost"
	"github.com/sells-group/drylogs/internal/model"
)

// Component keys of Result.Components.
const (
	ComponentCriticalFlags = "critical_flags"
	ComponentHighFlags     = "high_flags"
	ComponentDaysInPhase   = "days_in_phase"
	ComponentMissingDocs   = "missing_documentation"
	ComponentAwaiting      = "awaiting_adjuster"
	ComponentHighValue     = "high_value"
	ComponentFieldComplete = "field_complete"
	ComponentConcerns      = "customer_concerns"
)

// Result is the priority of one job. It is recomputed on demand and never
// persisted.
type Result struct {
	JobID      string         `json:"jobId"`
	Score      int            `json:"score"`
	Reasons    []string       `json:"reasons"`
	Reason     string         `json:"reason"`
	Urgency    model.Urgency  `json:"urgency"`
	Components map[string]int `json:"components,omitempty"`
}

// Scorer applies the configured point model.
type Scorer struct {
	cfg config.PriorityConfig
}

// NewScorer creates a Scorer.
func NewScorer(cfg config.PriorityConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the priority of job at now. Identical inputs give
// identical results, including reason order.
func (s *Scorer) Score(job model.Job, now time.Time) Result {
	res := Result{JobID: job.JobID, Reasons: []string{}, Components: map[string]int{}}
	add := func(key string, points int, reason string) {
		res.Score += points
		res.Components[key] = points
		res.Reasons = append(res.Reasons, reason)
	}

	var critical, high int
	for _, f := range job.PSMData.RedFlags {
		if f.Resolved {
			continue
		}
		switch f.Severity {
		case model.SeverityCritical:
			critical++
		case model.SeverityHigh:
			high++
		}
	}
	if critical > 0 {
		add(ComponentCriticalFlags, s.cfg.CriticalFlagPoints*critical, fmt.Sprintf("%d critical flag(s)", critical))
	}
	if high > 0 {
		add(ComponentHighFlags, s.cfg.HighFlagPoints*high, fmt.Sprintf("%d high flag(s)", high))
	}

	phase := job.PSMData.PSMPhase
	if days := phase.DaysInPhaseAt(now); days > s.cfg.DayGraceDays {
		add(ComponentDaysInPhase, s.cfg.DayPoints*days, fmt.Sprintf("%d days in phase", days))
	}

	if n := len(job.PSMData.DocumentationReview.MissingItems); n > 0 {
		add(ComponentMissingDocs, s.cfg.MissingDocsPoints, fmt.Sprintf("%d missing items", n))
	}

	if phase.Status == model.ReviewAwaitingAdjuster {
		if days := phase.DaysAwaitingAdjuster(now); days > s.cfg.AwaitingDays {
			add(ComponentAwaiting, s.cfg.AwaitingPoints, fmt.Sprintf("awaiting adjuster %d days", days))
		}
	}

	if cost.EstimatedTotal(job.Financial).GreaterThan(decimal.NewFromFloat(s.cfg.HighValueThreshold)) {
		add(ComponentHighValue, s.cfg.HighValuePoints, "high value job")
	}

	if phase.Status == model.ReviewFieldComplete {
		add(ComponentFieldComplete, s.cfg.FieldCompletePoints, "ready for review")
	}

	if len(job.Communication.CustomerConcerns) > s.cfg.ConcernsThreshold {
		add(ComponentConcerns, s.cfg.ConcernsPoints, "multiple customer concerns")
	}

	res.Urgency = s.urgency(res.Score)
	res.Reason = strings.Join(res.Reasons, ", ")
	return res
}

func (s *Scorer) urgency(score int) model.Urgency {
	switch {
	case score >= s.cfg.UrgencyCritical:
		return model.UrgencyCritical
	case score >= s.cfg.UrgencyHigh:
		return model.UrgencyHigh
	case score >= s.cfg.UrgencyMedium:
		return model.UrgencyMedium
	default:
		return model.UrgencyLow
	}
}

// Rank scores every job and sorts by score descending, breaking ties by
// job id so the order is stable across runs.
func (s *Scorer) Rank(jobs []model.Job, now time.Time) []Result {
	out := make([]Result, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, s.Score(j, now))
	}
	SortResults(out)
	return out
}

// SortResults orders results by score descending, then job id.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].JobID < results[j].JobID
	})
}
