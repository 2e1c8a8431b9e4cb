package model

import "time"

// Equipment holds placed chambers and the latest sizing snapshot.
type Equipment struct {
	DehumidifierType   DehumidifierType       `json:"dehumidifierType,omitempty"`
	DehumidifierRating float64                `json:"dehumidifierRating,omitempty"`
	Chambers           []Chamber              `json:"chambers"`
	Calculations       *EquipmentCalculations `json:"calculations,omitempty"`
}

// Chamber groups rooms into one drying environment.
type Chamber struct {
	ChamberID     string          `json:"chamberId"`
	ChamberName   string          `json:"chamberName"`
	AssignedRooms []string        `json:"assignedRooms"`
	Containment   bool            `json:"containmentSetup"`
	Dehumidifiers []EquipmentUnit `json:"dehumidifiers"`
	AirMovers     []EquipmentUnit `json:"airMovers"`
	AirScrubbers  []EquipmentUnit `json:"airScrubbers"`
}

// EquipmentUnit is one scanned piece of equipment.
type EquipmentUnit struct {
	EquipmentID  string          `json:"equipmentId"`
	SerialNumber string          `json:"serialNumber"`
	Model        string          `json:"model,omitempty"`
	AssignedRoom string          `json:"assignedRoom,omitempty"`
	DeployedAt   time.Time       `json:"deploymentTime"`
	RetrievedAt  *time.Time      `json:"removalTime,omitempty"`
	Status       EquipmentStatus `json:"status"`
}

// PlacedCounts totals units across all chambers regardless of status.
func (e Equipment) PlacedCounts() (dehus, movers, scrubbers int) {
	for _, c := range e.Chambers {
		dehus += len(c.Dehumidifiers)
		movers += len(c.AirMovers)
		scrubbers += len(c.AirScrubbers)
	}
	return dehus, movers, scrubbers
}

// EquipmentCalculations is the persisted job-level sizing summary.
type EquipmentCalculations struct {
	TotalAffectedSquareFootage   float64          `json:"totalAffectedSquareFootage"`
	TotalCubicFootage            float64          `json:"totalCubicFootage"`
	EstimatedDryingDays          int              `json:"estimatedDryingDays"`
	RecommendedDehumidifierCount int              `json:"recommendedDehumidifierCount"`
	RecommendedAirMoverCount     int              `json:"recommendedAirMoverCount"`
	RecommendedAirScrubberCount  int              `json:"recommendedAirScrubberCount"`
	DehumidifierType             DehumidifierType `json:"dehumidifierType,omitempty"`
	ChartFactor                  float64          `json:"chartFactor,omitempty"`
	CalculationMethod            string           `json:"calculationMethod"`
	CalculationDetails           string           `json:"calculationDetails,omitempty"`
	LastCalculatedAt             time.Time        `json:"lastCalculatedAt"`
	CalculatedBy                 string           `json:"calculatedBy,omitempty"`
	WaterClass                   WaterClass       `json:"waterClass"`
	WaterCategory                WaterCategory    `json:"waterCategory"`
}
