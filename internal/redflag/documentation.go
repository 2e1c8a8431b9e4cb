package redflag

import (
	"math"

	"github.com/sells-group/drylogs/internal/model"
)

// Documentation check labels, as shown to reviewers.
const (
	DocArrivalPhotos    = "Arrival/Assessment Photos"
	DocFinalPhotos      = "Final Photos"
	DocMoistureReadings = "Moisture Readings"
	DocEquipment        = "Equipment Deployment"
	DocCertificate      = "Certificate of Satisfaction"
	DocDryReleaseWaiver = "Dry Release Waiver"
)

const documentationCheckNum = 6

// Documentation is the completeness summary of a job's paperwork.
type Documentation struct {
	Complete          bool     `json:"complete"`
	MissingItems      []string `json:"missingItems"`
	CompletionPercent int      `json:"completionPercent"`
}

// CheckDocumentation evaluates the six documentation checks. Final photos
// and the certificate of satisfaction are only required once pull is
// completed; the dry release waiver only when one is needed.
func CheckDocumentation(job model.Job) Documentation {
	missing := []string{}

	var arrival, final bool
	for _, p := range job.Photos() {
		switch p.Step {
		case model.PhotoArrival, model.PhotoAssessment:
			arrival = true
		case model.PhotoFinal:
			final = true
		}
	}
	pulled := job.WorkflowPhases.Status(model.PhasePull) == model.PhaseCompleted

	if !arrival {
		missing = append(missing, DocArrivalPhotos)
	}
	if !final && pulled {
		missing = append(missing, DocFinalPhotos)
	}

	readings := false
	for _, r := range job.Rooms {
		if len(r.MoistureReadings) > 0 {
			readings = true
			break
		}
	}
	if !readings {
		missing = append(missing, DocMoistureReadings)
	}

	if len(job.Equipment.Chambers) == 0 {
		missing = append(missing, DocEquipment)
	}
	if pulled && !job.Documentation.CertificateOfSatisfaction.Obtained {
		missing = append(missing, DocCertificate)
	}
	if w := job.Documentation.DryReleaseWaiver; w.Needed && !w.Obtained {
		missing = append(missing, DocDryReleaseWaiver)
	}

	done := documentationCheckNum - len(missing)
	return Documentation{
		Complete:          len(missing) == 0,
		MissingItems:      missing,
		CompletionPercent: int(math.Round(float64(done) / documentationCheckNum * 100)),
	}
}

// ApplyTo copies the summary into the job's documentation review. The
// reviewer checklist is left alone.
func (d Documentation) ApplyTo(review *model.DocumentationReview) {
	review.MissingItems = d.MissingItems
	review.CompletionPercent = d.CompletionPercent
	review.ReadyForSubmission = d.Complete
}
