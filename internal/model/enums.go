package model

import "fmt"

// WaterCategory is the contamination level of the water source.
type WaterCategory int

const (
	Category1 WaterCategory = 1 // clean
	Category2 WaterCategory = 2 // gray
	Category3 WaterCategory = 3 // black
)

// Valid reports whether c is a known category.
func (c WaterCategory) Valid() bool {
	switch c {
	case Category1, Category2, Category3:
		return true
	}
	return false
}

// Contaminated reports whether the category calls for containment.
func (c WaterCategory) Contaminated() bool {
	return c == Category2 || c == Category3
}

func (c WaterCategory) String() string {
	return fmt.Sprintf("Category %d", int(c))
}

// WaterClass is the extent of affected surface area and saturation.
type WaterClass int

const (
	Class1 WaterClass = 1
	Class2 WaterClass = 2
	Class3 WaterClass = 3
	Class4 WaterClass = 4
)

// Valid reports whether c is a known class.
func (c WaterClass) Valid() bool {
	switch c {
	case Class1, Class2, Class3, Class4:
		return true
	}
	return false
}

func (c WaterClass) String() string {
	return fmt.Sprintf("Class %d", int(c))
}

// DehumidifierType selects the chart-factor column used for sizing.
type DehumidifierType string

const (
	DehumidifierConventional DehumidifierType = "Conventional Refrigerant"
	DehumidifierLGR          DehumidifierType = "Low Grain Refrigerant (LGR)"
	DehumidifierDesiccant    DehumidifierType = "Desiccant"
)

// Valid reports whether t is a known dehumidifier type.
func (t DehumidifierType) Valid() bool {
	switch t {
	case DehumidifierConventional, DehumidifierLGR, DehumidifierDesiccant:
		return true
	}
	return false
}

// Phase names one of the four field phases.
type Phase string

const (
	PhaseInstall      Phase = "install"
	PhaseDemo         Phase = "demo"
	PhaseCheckService Phase = "checkService"
	PhasePull         Phase = "pull"
)

// Phases lists the field phases in workflow order.
var Phases = []Phase{PhaseInstall, PhaseDemo, PhaseCheckService, PhasePull}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseInstall, PhaseDemo, PhaseCheckService, PhasePull:
		return true
	}
	return false
}

// PhaseStatus is the lifecycle state of a single phase.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in-progress"
	PhaseCompleted  PhaseStatus = "completed"
)

// Valid reports whether s is a known phase status.
func (s PhaseStatus) Valid() bool {
	switch s {
	case PhasePending, PhaseInProgress, PhaseCompleted:
		return true
	}
	return false
}

// Ordinal returns the position of s in pending → in-progress → completed.
// An empty status is treated as pending.
func (s PhaseStatus) Ordinal() int {
	switch s {
	case PhaseInProgress:
		return 1
	case PhaseCompleted:
		return 2
	default:
		return 0
	}
}

// JobStatus is the derived, job-level projection of the phase states.
type JobStatus string

const (
	JobStatusPreInstall   JobStatus = "Pre-Install"
	JobStatusInstall      JobStatus = "Install"
	JobStatusDemo         JobStatus = "Demo"
	JobStatusCheckService JobStatus = "Check Service"
	JobStatusPull         JobStatus = "Pull"
	JobStatusComplete     JobStatus = "Complete"
	JobStatusOnHold       JobStatus = "On Hold"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPreInstall, JobStatusInstall, JobStatusDemo, JobStatusCheckService,
		JobStatusPull, JobStatusComplete, JobStatusOnHold:
		return true
	}
	return false
}

// AffectedStatus describes how much of a room took on water.
type AffectedStatus string

const (
	AffectedNone    AffectedStatus = "unaffected"
	AffectedPartial AffectedStatus = "partially-affected"
	AffectedFull    AffectedStatus = "affected"
)

// Valid reports whether s is a known affected status.
func (s AffectedStatus) Valid() bool {
	switch s {
	case AffectedNone, AffectedPartial, AffectedFull:
		return true
	}
	return false
}

// ReadingType classifies a moisture reading.
type ReadingType string

const (
	ReadingPreDemo    ReadingType = "pre-demo"
	ReadingPostDemo   ReadingType = "post-demo"
	ReadingDailyCheck ReadingType = "daily-check"
	ReadingReference  ReadingType = "reference"
)

// Valid reports whether t is a known reading type.
func (t ReadingType) Valid() bool {
	switch t {
	case ReadingPreDemo, ReadingPostDemo, ReadingDailyCheck, ReadingReference:
		return true
	}
	return false
}

// PhotoStep is the documentation step a photo belongs to.
type PhotoStep string

const (
	PhotoArrival    PhotoStep = "arrival"
	PhotoAssessment PhotoStep = "assessment"
	PhotoPreDemo    PhotoStep = "pre-demo"
	PhotoDemo       PhotoStep = "demo"
	PhotoPostDemo   PhotoStep = "post-demo"
	PhotoDailyCheck PhotoStep = "daily-check"
	PhotoFinal      PhotoStep = "final"
)

// Valid reports whether s is a known photo step.
func (s PhotoStep) Valid() bool {
	switch s {
	case PhotoArrival, PhotoAssessment, PhotoPreDemo, PhotoDemo, PhotoPostDemo,
		PhotoDailyCheck, PhotoFinal:
		return true
	}
	return false
}

// EquipmentStatus tracks whether a placed unit is still on site.
type EquipmentStatus string

const (
	EquipmentDeployed  EquipmentStatus = "deployed"
	EquipmentRetrieved EquipmentStatus = "retrieved"
)

// Valid reports whether s is a known equipment status.
func (s EquipmentStatus) Valid() bool {
	return s == EquipmentDeployed || s == EquipmentRetrieved
}

// FlagType is the closed set of red-flag detectors.
type FlagType string

const (
	FlagEquipmentVariance    FlagType = "equipment-variance"
	FlagMissingPhotos        FlagType = "missing-photos"
	FlagMoistureNotImproving FlagType = "moisture-not-improving"
	FlagDemoNoReason         FlagType = "demo-no-reason"
	FlagNoAdjusterApproval   FlagType = "no-adjuster-approval"
	FlagCostOverrun          FlagType = "cost-overrun"
	FlagTimelineDelay        FlagType = "timeline-delay"
)

// FlagTypes lists every flag type in detector order.
var FlagTypes = []FlagType{
	FlagEquipmentVariance,
	FlagMissingPhotos,
	FlagMoistureNotImproving,
	FlagDemoNoReason,
	FlagNoAdjusterApproval,
	FlagCostOverrun,
	FlagTimelineDelay,
}

// Valid reports whether t is a known flag type.
func (t FlagType) Valid() bool {
	switch t {
	case FlagEquipmentVariance, FlagMissingPhotos, FlagMoistureNotImproving,
		FlagDemoNoReason, FlagNoAdjusterApproval, FlagCostOverrun, FlagTimelineDelay:
		return true
	}
	return false
}

// Severity orders red flags for aggregation and display.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Rank maps s onto critical(4) > high(3) > medium(2) > low(1). Unknown is 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// ReviewStatus is the back-office review state of a field-complete job.
type ReviewStatus string

const (
	ReviewFieldComplete    ReviewStatus = "field-complete"
	ReviewReviewing        ReviewStatus = "reviewing"
	ReviewAwaitingAdjuster ReviewStatus = "awaiting-adjuster"
	ReviewApproved         ReviewStatus = "approved"
)

// Valid reports whether s is a known review status.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewFieldComplete, ReviewReviewing, ReviewAwaitingAdjuster, ReviewApproved:
		return true
	}
	return false
}

// ApprovalState is the adjuster decision on a scope item.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalDenied   ApprovalState = "denied"
)

// Valid reports whether s is a known approval state.
func (s ApprovalState) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalDenied:
		return true
	}
	return false
}

// Urgency buckets a priority score.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}
