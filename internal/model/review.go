package model

import "time"

// PSMData is the back-office review record attached to a job.
type PSMData struct {
	PSMPhase               ReviewPhase             `json:"psmPhase"`
	RedFlags               []RedFlag               `json:"redFlags"`
	DocumentationReview    DocumentationReview     `json:"documentationReview"`
	AdjusterCommunications []AdjusterCommunication `json:"adjusterCommunications"`
	ApprovalStatus         ApprovalStatus          `json:"approvalStatus"`
}

// ReviewPhase tracks where a job sits in the review queue.
type ReviewPhase struct {
	Status                ReviewStatus `json:"status,omitempty"`
	AssignedPSM           string       `json:"assignedPSM,omitempty"`
	EnteredAt             *time.Time   `json:"enteredAt,omitempty"`
	DaysInPhase           int          `json:"daysInPhase"`
	StartedReviewAt       *time.Time   `json:"startedReviewAt,omitempty"`
	SubmittedToAdjusterAt *time.Time   `json:"submittedToAdjusterAt,omitempty"`
	ApprovedByAdjusterAt  *time.Time   `json:"approvedByAdjusterAt,omitempty"`
	Notes                 string       `json:"notes,omitempty"`
}

// DaysInPhaseAt returns whole days since EnteredAt, falling back to the
// stored DaysInPhase counter when no entry time was recorded.
func (r ReviewPhase) DaysInPhaseAt(now time.Time) int {
	if r.EnteredAt == nil {
		if r.DaysInPhase < 0 {
			return 0
		}
		return r.DaysInPhase
	}
	return WholeDays(*r.EnteredAt, now)
}

// DaysAwaitingAdjuster returns whole days since submission, or 0.
func (r ReviewPhase) DaysAwaitingAdjuster(now time.Time) int {
	if r.SubmittedToAdjusterAt == nil {
		return 0
	}
	return WholeDays(*r.SubmittedToAdjusterAt, now)
}

// DocumentationReview is the reviewer checklist and the derived missing list.
type DocumentationReview struct {
	Checklist          DocumentationChecklist `json:"checklist"`
	MissingItems       []string               `json:"missingItems"`
	CompletionPercent  int                    `json:"completionPercent"`
	ReviewedBy         string                 `json:"reviewedBy,omitempty"`
	ReviewedAt         *time.Time             `json:"reviewedAt,omitempty"`
	ReadyForSubmission bool                   `json:"readyForSubmission"`
}

// DocumentationChecklist is set by the reviewer.
type DocumentationChecklist struct {
	AllRoomsPhotographed     bool `json:"allRoomsPhotographed"`
	MoistureReadingsComplete bool `json:"moistureReadingsComplete"`
	EquipmentScanned         bool `json:"equipmentScanned"`
	DemoDocumented           bool `json:"demoDocumented"`
	CustomerSignatures       bool `json:"customerSignatures"`
	MatterportCompleted      bool `json:"matterportCompleted"`
}

// AdjusterCommunication is one logged contact with the insurance adjuster.
type AdjusterCommunication struct {
	CommunicationID  string    `json:"communicationId"`
	AdjusterName     string    `json:"adjusterName,omitempty"`
	ContactMethod    string    `json:"contactMethod,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Subject          string    `json:"subject,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	FollowUpRequired bool      `json:"followUpRequired,omitempty"`
}

// ApprovalStatus holds adjuster decisions on scope items.
type ApprovalStatus struct {
	DemoScope     ApprovalState `json:"demoScope,omitempty"`
	EquipmentPlan ApprovalState `json:"equipmentPlan,omitempty"`
	ApprovedBy    string        `json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time    `json:"approvedAt,omitempty"`
}

// RedFlag is one detected anomaly.
type RedFlag struct {
	ID          string      `json:"id"`
	Type        FlagType    `json:"type"`
	Severity    Severity    `json:"severity"`
	Description string      `json:"description"`
	DetectedAt  time.Time   `json:"detectedAt"`
	Resolved    bool        `json:"resolved"`
	Resolution  *Resolution `json:"resolution,omitempty"`
}

// Resolution is set only by the resolve action.
type Resolution struct {
	Notes      string    `json:"notes"`
	ResolvedBy string    `json:"resolvedBy"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// WholeDays returns the floor of the days between from and to, never
// negative.
func WholeDays(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
