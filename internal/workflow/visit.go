package workflow

import (
	"time"

	"github.com/sells-group/drylogs/internal/model"
)

// AppendVisit adds a check-service visit to the log. Visits are numbered
// sequentially and can only be recorded while check-service is in progress
// and the job is not on hold.
func AppendVisit(job model.Job, v model.Visit, at time.Time) (model.Job, error) {
	status := job.WorkflowPhases.Status(model.PhaseCheckService)
	if job.OnHold() {
		return job, &InvalidTransitionError{
			Phase:  model.PhaseCheckService,
			From:   status,
			To:     status,
			Guard:  GuardNotOnHold,
			Reason: "job is on hold; visits cannot be recorded",
		}
	}
	if status != model.PhaseInProgress {
		return job, &InvalidTransitionError{
			Phase:  model.PhaseCheckService,
			From:   status,
			To:     status,
			Guard:  GuardCheckServiceActive,
			Reason: "visits can only be recorded while check-service is in progress",
		}
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	next := cloneWorkflow(job)
	cs := &next.WorkflowPhases.CheckService
	cs.Visits = append(cs.Visits, numberVisit(v, len(cs.Visits), at))
	return next, nil
}

func numberVisit(v model.Visit, existing int, at time.Time) model.Visit {
	v.VisitNumber = existing + 1
	if v.StartedAt.IsZero() {
		v.StartedAt = at
	}
	return v
}
