// Package workflow governs the field phases of a job as a pure state
// machine. Every function takes a job snapshot and returns a new one; no
// I/O happens here.
package workflow

import (
	"fmt"

	"github.com/sells-group/drylogs/internal/model"
)

// Guard names a transition precondition.
type Guard string

const (
	GuardUnknownPhase          Guard = "known-phase"
	GuardUnknownStatus         Guard = "known-status"
	GuardNotOnHold             Guard = "not-on-hold"
	GuardNoRegression          Guard = "no-regression"
	GuardInstallCompleted      Guard = "install-completed"
	GuardDemoCompleted         Guard = "demo-completed"
	GuardReadingsVerified      Guard = "readings-verified"
	GuardCheckServiceCompleted Guard = "check-service-completed"
	GuardLeadApproval          Guard = "lead-approval"
	GuardCheckServiceActive    Guard = "check-service-in-progress"
)

// TransitionContext carries the facts a guard needs. Populated from the
// job snapshot by the caller.
type TransitionContext struct {
	Phase                model.Phase
	From                 model.PhaseStatus
	To                   model.PhaseStatus
	OnHold               bool
	InstallStatus        model.PhaseStatus
	DemoStatus           model.PhaseStatus
	CheckServiceStatus   model.PhaseStatus
	PartialDemoPerformed bool
	DemoNotRequired      bool
	HasVisit             bool
	LatestVisitVerified  bool
	LeadApproved         bool
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Guard   Guard
	Reason  string // populated when not allowed
}

func deny(g Guard, format string, args ...any) GuardResult {
	return GuardResult{Guard: g, Reason: fmt.Sprintf(format, args...)}
}

var allowed = GuardResult{Allowed: true}

// CanTransition evaluates whether ctx.Phase may move from ctx.From to ctx.To.
// Rules, in order:
//   - a request for the current status is always allowed (idempotent)
//   - a job on hold accepts no transitions
//   - statuses never move backwards
//   - leaving pending requires the phase's start prerequisites
//   - reaching completed requires the phase's completion prerequisites
func CanTransition(ctx TransitionContext) GuardResult {
	if !ctx.Phase.Valid() {
		return deny(GuardUnknownPhase, "unknown phase %q", ctx.Phase)
	}
	if !ctx.To.Valid() {
		return deny(GuardUnknownStatus, "unknown status %q", ctx.To)
	}
	if ctx.From == ctx.To {
		return allowed
	}
	if ctx.OnHold {
		return deny(GuardNotOnHold, "job is on hold; release the hold before changing %s", ctx.Phase)
	}
	if ctx.To.Ordinal() < ctx.From.Ordinal() {
		return deny(GuardNoRegression, "%s cannot move from %s back to %s", ctx.Phase, ctx.From, ctx.To)
	}
	if ctx.From == model.PhasePending {
		if r := canStart(ctx); !r.Allowed {
			return r
		}
	}
	if ctx.To == model.PhaseCompleted {
		return canComplete(ctx)
	}
	return allowed
}

func canStart(ctx TransitionContext) GuardResult {
	switch ctx.Phase {
	case model.PhaseDemo:
		if ctx.InstallStatus != model.PhaseCompleted && !ctx.PartialDemoPerformed {
			return deny(GuardInstallCompleted,
				"demo requires install to be completed (install is %s) unless partial demo was performed during install",
				ctx.InstallStatus)
		}
	case model.PhaseCheckService:
		if ctx.DemoNotRequired {
			if ctx.InstallStatus != model.PhaseCompleted {
				return deny(GuardInstallCompleted,
					"check-service requires install to be completed when no demo is needed (install is %s)",
					ctx.InstallStatus)
			}
			return allowed
		}
		if ctx.DemoStatus != model.PhaseCompleted {
			return deny(GuardDemoCompleted,
				"check-service requires demo to be completed (demo is %s)", ctx.DemoStatus)
		}
	case model.PhasePull:
		if ctx.CheckServiceStatus != model.PhaseCompleted {
			return deny(GuardCheckServiceCompleted,
				"pull requires check-service to be completed (check-service is %s)", ctx.CheckServiceStatus)
		}
	}
	return allowed
}

func canComplete(ctx TransitionContext) GuardResult {
	switch ctx.Phase {
	case model.PhaseCheckService:
		if !ctx.HasVisit {
			return deny(GuardReadingsVerified, "check-service cannot complete without a visit")
		}
		if !ctx.LatestVisitVerified {
			return deny(GuardReadingsVerified, "the latest check-service visit has not verified readings")
		}
	case model.PhasePull:
		if !ctx.LeadApproved {
			return deny(GuardLeadApproval, "pull completion requires Lead approval")
		}
	}
	return allowed
}

// contextFor builds the guard context for a request against job.
func contextFor(job model.Job, req Request) TransitionContext {
	w := job.WorkflowPhases
	latest, hasVisit := w.CheckService.LatestVisit()
	if req.Visit != nil {
		latest, hasVisit = *req.Visit, true
	}
	return TransitionContext{
		Phase:                req.Phase,
		From:                 w.Status(req.Phase),
		To:                   req.To,
		OnHold:               job.OnHold(),
		InstallStatus:        w.Status(model.PhaseInstall),
		DemoStatus:           w.Status(model.PhaseDemo),
		CheckServiceStatus:   w.Status(model.PhaseCheckService),
		PartialDemoPerformed: w.Install.PartialDemoPerformed,
		DemoNotRequired:      w.Demo.NotRequired,
		HasVisit:             hasVisit,
		LatestVisitVerified:  latest.ReadingsVerified,
		LeadApproved:         req.LeadApproved || w.Pull.LeadApproved,
	}
}
