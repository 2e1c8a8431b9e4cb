package workflow

import (
	"time"

	"github.com/sells-group/drylogs/internal/model"
)

// DeriveStatus projects the four phase states and the hold flag onto the
// job-level status.
func DeriveStatus(job model.Job) model.JobStatus {
	if job.OnHold() {
		return model.JobStatusOnHold
	}
	w := job.WorkflowPhases
	install := w.Status(model.PhaseInstall)
	demo := w.Status(model.PhaseDemo)
	check := w.Status(model.PhaseCheckService)
	pull := w.Status(model.PhasePull)

	switch {
	case pull == model.PhaseCompleted:
		return model.JobStatusComplete
	case pull == model.PhaseInProgress || check == model.PhaseCompleted:
		return model.JobStatusPull
	case check == model.PhaseInProgress,
		demo == model.PhaseCompleted,
		w.Demo.NotRequired && install == model.PhaseCompleted:
		return model.JobStatusCheckService
	case demo == model.PhaseInProgress, install == model.PhaseCompleted:
		return model.JobStatusDemo
	case install == model.PhaseInProgress:
		return model.JobStatusInstall
	default:
		return model.JobStatusPreInstall
	}
}

// SetHold places the job on hold. Setting a hold on a job already on hold
// keeps the original hold.
func SetHold(job model.Job, reason, by string, at time.Time) model.Job {
	if job.OnHold() {
		return job
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	job.Hold = &model.Hold{Reason: reason, SetBy: by, SetAt: at}
	job.JobStatus = DeriveStatus(job)
	return job
}

// ReleaseHold clears the hold and re-derives the status.
func ReleaseHold(job model.Job) model.Job {
	job.Hold = nil
	job.JobStatus = DeriveStatus(job)
	return job
}
