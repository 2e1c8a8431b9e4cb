package model

import "time"

// WorkflowPhases holds one record per field phase.
type WorkflowPhases struct {
	Install      InstallPhase      `json:"install"`
	Demo         DemoPhase         `json:"demo"`
	CheckService CheckServicePhase `json:"checkService"`
	Pull         PullPhase         `json:"pull"`
}

// PhaseState is the common record carried by every phase.
type PhaseState struct {
	Status      PhaseStatus `json:"status"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Technician  string      `json:"technician,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

// InstallPhase may fold partial demo work into the install visit.
type InstallPhase struct {
	PhaseState
	PartialDemoPerformed bool                `json:"partialDemoPerformed,omitempty"`
	PartialDemoDetails   *PartialDemoDetails `json:"partialDemoDetails,omitempty"`
}

// PartialDemoDetails lists rooms demolished during install.
type PartialDemoDetails struct {
	Rooms []PartialDemoRoom `json:"rooms"`
}

// PartialDemoRoom needs a justification note for each room.
type PartialDemoRoom struct {
	RoomID           string   `json:"roomId"`
	RoomName         string   `json:"roomName"`
	MaterialsRemoved []string `json:"materialsRemoved,omitempty"`
	Notes            string   `json:"notes"`
}

// DemoPhase can be skipped entirely via NotRequired.
type DemoPhase struct {
	PhaseState
	NotRequired   bool       `json:"notRequired,omitempty"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
}

// CheckServicePhase owns the append-only visit log.
type CheckServicePhase struct {
	PhaseState
	Visits []Visit `json:"visits"`
}

// LatestVisit returns the most recently appended visit.
func (c CheckServicePhase) LatestVisit() (Visit, bool) {
	if len(c.Visits) == 0 {
		return Visit{}, false
	}
	return c.Visits[len(c.Visits)-1], true
}

// Visit is one dated check-in during check-service.
type Visit struct {
	VisitNumber          int                   `json:"visitNumber"`
	StartedAt            time.Time             `json:"startedAt"`
	CompletedAt          *time.Time            `json:"completedAt,omitempty"`
	Technician           string                `json:"technician"`
	Notes                string                `json:"notes"`
	ReadingsVerified     bool                  `json:"readingsVerified"`
	MaterialsDry         bool                  `json:"materialsDry,omitempty"`
	EquipmentAdjustments []EquipmentAdjustment `json:"equipmentAdjustments,omitempty"`
}

// EquipmentAdjustment logs a unit added, removed or moved during a visit.
type EquipmentAdjustment struct {
	Action      string    `json:"action"`
	EquipmentID string    `json:"equipmentId,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	FromRoom    string    `json:"fromRoom,omitempty"`
	ToRoom      string    `json:"toRoom,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// PullPhase records the Lead approval gate on completion.
type PullPhase struct {
	PhaseState
	LeadApproved   bool       `json:"leadApproved,omitempty"`
	LeadApprovedBy string     `json:"leadApprovedBy,omitempty"`
	LeadApprovedAt *time.Time `json:"leadApprovedAt,omitempty"`
}

// State returns a pointer to the shared record of phase p.
func (w *WorkflowPhases) State(p Phase) (*PhaseState, bool) {
	switch p {
	case PhaseInstall:
		return &w.Install.PhaseState, true
	case PhaseDemo:
		return &w.Demo.PhaseState, true
	case PhaseCheckService:
		return &w.CheckService.PhaseState, true
	case PhasePull:
		return &w.Pull.PhaseState, true
	}
	return nil, false
}

// Status returns the status of phase p, treating an empty status as pending.
func (w WorkflowPhases) Status(p Phase) PhaseStatus {
	st, ok := w.State(p)
	if !ok || st.Status == "" {
		return PhasePending
	}
	return st.Status
}
