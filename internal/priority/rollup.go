package priority

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/drylogs/internal/model"
)

// BottleneckType names a review-queue bottleneck.
type BottleneckType string

const (
	BottleneckMissingDocs   BottleneckType = "missing-documentation"
	BottleneckExternalDelay BottleneckType = "external-response-delay"
	BottleneckApprovalDelay BottleneckType = "approval-delay"
	BottleneckPhaseAging    BottleneckType = "phase-aging"
)

// Bottleneck groups jobs stuck for the same reason.
type Bottleneck struct {
	Type        BottleneckType `json:"type"`
	Count       int            `json:"count"`
	AverageDays int            `json:"averageDays"`
	Jobs        []string       `json:"jobs"`
}

// Bottlenecks classifies the job population. Only non-empty categories are
// returned, always in the order missing documentation, external response
// delay, approval delay, phase aging. AverageDays is the rounded mean of
// days in the current review phase.
func (s *Scorer) Bottlenecks(jobs []model.Job, now time.Time) []Bottleneck {
	rules := []struct {
		typ   BottleneckType
		match func(j model.Job) bool
	}{
		{BottleneckMissingDocs, func(j model.Job) bool {
			return len(j.PSMData.DocumentationReview.MissingItems) > 0
		}},
		{BottleneckExternalDelay, func(j model.Job) bool {
			p := j.PSMData.PSMPhase
			return p.Status == model.ReviewAwaitingAdjuster && p.DaysAwaitingAdjuster(now) > s.cfg.AwaitingDays
		}},
		{BottleneckApprovalDelay, func(j model.Job) bool {
			a := j.PSMData.ApprovalStatus
			return a.DemoScope == model.ApprovalPending || a.EquipmentPlan == model.ApprovalPending
		}},
		{BottleneckPhaseAging, func(j model.Job) bool {
			return j.PSMData.PSMPhase.DaysInPhaseAt(now) > s.cfg.AgingDays
		}},
	}

	var out []Bottleneck
	for _, r := range rules {
		b := Bottleneck{Type: r.typ, Jobs: []string{}}
		total := 0
		for _, j := range jobs {
			if !r.match(j) {
				continue
			}
			b.Jobs = append(b.Jobs, j.JobID)
			total += j.PSMData.PSMPhase.DaysInPhaseAt(now)
		}
		if len(b.Jobs) == 0 {
			continue
		}
		b.Count = len(b.Jobs)
		b.AverageDays = int(math.Round(float64(total) / float64(b.Count)))
		out = append(out, b)
	}
	return out
}

// IssueCount is one entry of Analytics.TopIssues.
type IssueCount struct {
	Issue string `json:"issue"`
	Count int    `json:"count"`
}

// Analytics summarizes review throughput across jobs.
type Analytics struct {
	TotalJobs int `json:"totalJobs"`
	// AverageTimeToApproval is in days, from review start to adjuster
	// approval, over approved jobs that carry both timestamps.
	AverageTimeToApproval     int          `json:"averageTimeToApproval"`
	ApprovalRate              int          `json:"approvalRate"`
	DocumentationCompleteness int          `json:"documentationCompleteness"`
	RedFlagRate               int          `json:"redFlagRate"`
	TopIssues                 []IssueCount `json:"topIssues"`
}

// Analytics computes review analytics. Rates are whole percentages.
func (s *Scorer) Analytics(jobs []model.Job) Analytics {
	a := Analytics{TotalJobs: len(jobs), TopIssues: []IssueCount{}}
	if len(jobs) == 0 {
		return a
	}

	var approved, complete, flagged int
	var approvalDays []float64
	issues := map[model.FlagType]int{}

	for _, j := range jobs {
		p := j.PSMData.PSMPhase
		if p.Status == model.ReviewApproved {
			approved++
			if p.StartedReviewAt != nil && p.ApprovedByAdjusterAt != nil {
				approvalDays = append(approvalDays, p.ApprovedByAdjusterAt.Sub(*p.StartedReviewAt).Hours()/24)
			}
		}
		if len(j.PSMData.DocumentationReview.MissingItems) == 0 {
			complete++
		}
		open := j.UnresolvedFlags()
		if len(open) > 0 {
			flagged++
		}
		for _, f := range open {
			issues[f.Type]++
		}
	}

	if len(approvalDays) > 0 {
		var sum float64
		for _, d := range approvalDays {
			sum += d
		}
		a.AverageTimeToApproval = int(math.Round(sum / float64(len(approvalDays))))
	}
	a.ApprovalRate = percent(approved, len(jobs))
	a.DocumentationCompleteness = percent(complete, len(jobs))
	a.RedFlagRate = percent(flagged, len(jobs))

	for t, n := range issues {
		a.TopIssues = append(a.TopIssues, IssueCount{Issue: strings.ReplaceAll(string(t), "-", " "), Count: n})
	}
	sort.Slice(a.TopIssues, func(i, j int) bool {
		if a.TopIssues[i].Count != a.TopIssues[j].Count {
			return a.TopIssues[i].Count > a.TopIssues[j].Count
		}
		return a.TopIssues[i].Issue < a.TopIssues[j].Issue
	})
	if len(a.TopIssues) > s.cfg.TopIssues {
		a.TopIssues = a.TopIssues[:s.cfg.TopIssues]
	}
	return a
}

func percent(n, total int) int {
	return int(math.Round(float64(n) / float64(total) * 100))
}
