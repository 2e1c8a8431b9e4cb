package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/sells-group/drylogs/internal/model"
)

// InvalidTransitionError is returned when a guard rejects a request.
type InvalidTransitionError struct {
	Phase  model.Phase
	From   model.PhaseStatus
	To     model.PhaseStatus
	Guard  Guard
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("workflow: invalid transition %s %s -> %s [%s]: %s", e.Phase, e.From, e.To, e.Guard, e.Reason)
}

// AsInvalidTransition unwraps err into an InvalidTransitionError.
func AsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

// Request asks for one phase to move to a new status.
type Request struct {
	Phase      model.Phase       `json:"phase"`
	To         model.PhaseStatus `json:"to"`
	Technician string            `json:"technician,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	// Visit, when set on a check-service request, is appended before the
	// guards run so a closing visit and the completion land together. A
	// request for the current status with a Visit records the visit alone.
	Visit *model.Visit `json:"visit,omitempty"`
	// LeadApproved is the Lead sign-off gate on pull completion.
	LeadApproved bool      `json:"leadApproved,omitempty"`
	ApprovedBy   string    `json:"approvedBy,omitempty"`
	At           time.Time `json:"at"`
}

// Result is the outcome of an accepted request.
type Result struct {
	Job       model.Job         `json:"job"`
	Phase     model.Phase       `json:"phase"`
	From      model.PhaseStatus `json:"from"`
	To        model.PhaseStatus `json:"to"`
	Changed   bool              `json:"changed"`
	JobStatus model.JobStatus   `json:"jobStatus"`
}

// Apply validates req against job and returns the updated snapshot. A
// request for the status the phase already has returns the job unchanged
// with Changed=false. A rejected request returns *InvalidTransitionError
// and leaves job untouched.
func Apply(job model.Job, req Request) (Result, error) {
	ctx := contextFor(job, req)
	res := Result{Phase: req.Phase, From: ctx.From, To: req.To}

	if r := CanTransition(ctx); !r.Allowed {
		return res, &InvalidTransitionError{
			Phase:  req.Phase,
			From:   ctx.From,
			To:     req.To,
			Guard:  r.Guard,
			Reason: r.Reason,
		}
	}

	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if ctx.From == req.To {
		if req.Visit == nil || req.Phase != model.PhaseCheckService {
			res.Job = job
			res.JobStatus = DeriveStatus(job)
			return res, nil
		}
		next, err := AppendVisit(job, *req.Visit, at)
		if err != nil {
			return res, err
		}
		next.JobStatus = DeriveStatus(next)
		res.Job = next
		res.Changed = true
		res.JobStatus = next.JobStatus
		return res, nil
	}

	next := cloneWorkflow(job)
	w := &next.WorkflowPhases

	if req.Visit != nil && req.Phase == model.PhaseCheckService {
		w.CheckService.Visits = append(w.CheckService.Visits, numberVisit(*req.Visit, len(w.CheckService.Visits), at))
	}

	st, _ := w.State(req.Phase)
	st.Status = req.To
	if st.StartedAt == nil {
		st.StartedAt = timePtr(at)
	}
	if req.To == model.PhaseCompleted {
		st.CompletedAt = timePtr(at)
	}
	if req.Technician != "" {
		st.Technician = req.Technician
	}
	if req.Notes != "" {
		st.Notes = req.Notes
	}

	if req.Phase == model.PhasePull && req.To == model.PhaseCompleted && req.LeadApproved {
		w.Pull.LeadApproved = true
		w.Pull.LeadApprovedBy = req.ApprovedBy
		w.Pull.LeadApprovedAt = timePtr(at)
	}

	next.JobStatus = DeriveStatus(next)
	res.Job = next
	res.Changed = true
	res.JobStatus = next.JobStatus
	return res, nil
}

// cloneWorkflow copies job with an independent visit log and partial demo
// record so the caller's snapshot is never mutated.
func cloneWorkflow(job model.Job) model.Job {
	next := job
	visits := job.WorkflowPhases.CheckService.Visits
	next.WorkflowPhases.CheckService.Visits = append(make([]model.Visit, 0, len(visits)+1), visits...)
	if pd := job.WorkflowPhases.Install.PartialDemoDetails; pd != nil {
		cp := *pd
		cp.Rooms = append([]model.PartialDemoRoom(nil), pd.Rooms...)
		next.WorkflowPhases.Install.PartialDemoDetails = &cp
	}
	return next
}

func timePtr(t time.Time) *time.Time {
	return &t
}
