package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Job is the aggregate root for one water-damage restoration job. JSON
// field names match the persisted job document.
type Job struct {
	JobID          string         `json:"jobId"`
	CustomerInfo   CustomerInfo   `json:"customerInfo"`
	InsuranceInfo  InsuranceInfo  `json:"insuranceInfo"`
	Classification Classification `json:"classification"`
	JobStatus      JobStatus      `json:"jobStatus"`
	Hold           *Hold          `json:"hold,omitempty"`
	WorkflowPhases WorkflowPhases `json:"workflowPhases"`
	Rooms          []Room         `json:"rooms"`
	Equipment      Equipment      `json:"equipment"`
	Communication  Communication  `json:"communication"`
	Financial      Financial      `json:"financial"`
	Documentation  Documentation  `json:"documentation"`
	PSMData        PSMData        `json:"psmData"`
	Metadata       Metadata       `json:"metadata"`
}

// CustomerInfo is carried through untouched.
type CustomerInfo struct {
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Email       string `json:"email,omitempty"`
}

// InsuranceInfo is carried through untouched.
type InsuranceInfo struct {
	CarrierName   string `json:"carrierName,omitempty"`
	PolicyNumber  string `json:"policyNumber,omitempty"`
	ClaimNumber   string `json:"claimNumber,omitempty"`
	AdjusterName  string `json:"adjusterName,omitempty"`
	AdjusterPhone string `json:"adjusterPhone,omitempty"`
	AdjusterEmail string `json:"adjusterEmail,omitempty"`
}

// Classification is the damage classification driving sizing.
type Classification struct {
	WaterCategory WaterCategory `json:"waterCategory"`
	WaterClass    WaterClass    `json:"waterClass"`
}

// Hold suspends workflow transitions until released.
type Hold struct {
	Reason string    `json:"reason"`
	SetBy  string    `json:"setBy,omitempty"`
	SetAt  time.Time `json:"setAt"`
}

// Communication holds customer-facing notes the scorer reads.
type Communication struct {
	GroundRulesPresented bool     `json:"groundRulesPresented"`
	EstimatedTimeline    string   `json:"estimatedTimeline,omitempty"`
	CustomerConcerns     []string `json:"customerConcerns"`
}

// Financial holds estimate and actual spend.
type Financial struct {
	EstimatedMaterials decimal.Decimal `json:"estimatedMaterials"`
	EstimatedLabor     decimal.Decimal `json:"estimatedLabor"`
	EstimatedTotal     decimal.Decimal `json:"estimatedTotal"`
	ActualExpenses     ActualExpenses  `json:"actualExpenses"`
}

// ActualExpenses is the incurred spend by bucket.
type ActualExpenses struct {
	Materials decimal.Decimal `json:"materials"`
	Labor     decimal.Decimal `json:"labor"`
	Equipment decimal.Decimal `json:"equipment"`
	Total     decimal.Decimal `json:"total"`
}

// Documentation holds signed forms and scans.
type Documentation struct {
	MatterportScan            MatterportScan   `json:"matterportScan"`
	CertificateOfSatisfaction SignedDocument   `json:"certificateOfSatisfaction"`
	DryReleaseWaiver          DryReleaseWaiver `json:"dryReleaseWaiver"`
}

// MatterportScan records the 3D scan.
type MatterportScan struct {
	Completed bool       `json:"completed"`
	URL       string     `json:"url,omitempty"`
	ScanDate  *time.Time `json:"scanDate,omitempty"`
}

// SignedDocument is a customer-signed form.
type SignedDocument struct {
	Obtained   bool       `json:"obtained"`
	SignedDate *time.Time `json:"signedDate,omitempty"`
}

// DryReleaseWaiver is only required when Needed is set.
type DryReleaseWaiver struct {
	Needed     bool       `json:"needed"`
	Obtained   bool       `json:"obtained"`
	SignedDate *time.Time `json:"signedDate,omitempty"`
}

// Metadata carries audit fields and the optimistic-concurrency version.
type Metadata struct {
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
	LastModifiedBy string    `json:"lastModifiedBy,omitempty"`
	Version        int       `json:"version"`
}

// RoomByID returns the room with the given id.
func (j *Job) RoomByID(id string) (*Room, bool) {
	for i := range j.Rooms {
		if j.Rooms[i].RoomID == id {
			return &j.Rooms[i], true
		}
	}
	return nil, false
}

// Photos returns every photo across all rooms.
func (j *Job) Photos() []Photo {
	var out []Photo
	for _, r := range j.Rooms {
		out = append(out, r.Photos...)
	}
	return out
}

// OnHold reports whether the job carries a hold override.
func (j *Job) OnHold() bool {
	return j.Hold != nil
}

// UnresolvedFlags returns flags that have not been resolved.
func (j *Job) UnresolvedFlags() []RedFlag {
	var out []RedFlag
	for _, f := range j.PSMData.RedFlags {
		if !f.Resolved {
			out = append(out, f)
		}
	}
	return out
}
