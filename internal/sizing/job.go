package sizing

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/drylogs/internal/model"
)

// implicitChamberID names the chamber used when a job has none yet.
const implicitChamberID = "job"

// JobSizing aggregates chamber recommendations for a whole job.
type JobSizing struct {
	Chambers            []Recommendation `json:"chambers"`
	TotalCubicFootage   float64          `json:"totalCubicFootage"`
	TotalAffectedSqFt   float64          `json:"totalAffectedSqFt"`
	Dehumidifiers       int              `json:"dehumidifiers"`
	AirMovers           int              `json:"airMovers"`
	AirScrubbers        int              `json:"airScrubbers"`
	EstimatedDryingDays int              `json:"estimatedDryingDays"`
	Notes               []string         `json:"notes"`
}

// SizeJob sizes every chamber on the job with the job's classification and
// dehumidifier settings. A job with rooms but no chambers is sized as a
// single chamber holding every room.
func (c *Calculator) SizeJob(job model.Job) JobSizing {
	class := job.Classification.WaterClass
	dtype := job.Equipment.DehumidifierType
	rating := job.Equipment.DehumidifierRating

	chambers := job.Equipment.Chambers
	if len(chambers) == 0 && len(job.Rooms) > 0 {
		ids := make([]string, 0, len(job.Rooms))
		for _, r := range job.Rooms {
			ids = append(ids, r.RoomID)
		}
		chambers = []model.Chamber{{ChamberID: implicitChamberID, ChamberName: "All rooms", AssignedRooms: ids}}
	}

	out := JobSizing{Chambers: make([]Recommendation, 0, len(chambers))}
	containment := len(chambers) > 0
	for _, ch := range chambers {
		rec := c.Size(ch, job.Rooms, class, dtype, rating)
		out.Chambers = append(out.Chambers, rec)
		out.TotalCubicFootage += rec.CubicFootage
		out.TotalAffectedSqFt += rec.TotalAffectedSqFt
		out.Dehumidifiers += rec.Dehumidifiers
		out.AirMovers += rec.AirMovers
		out.AirScrubbers += rec.AirScrubbers
		if ch.ChamberID == implicitChamberID || !ch.Containment {
			containment = false
		}
	}
	out.EstimatedDryingDays = c.EstimateDryingDays(class, out.TotalAffectedSqFt)
	out.Notes = c.Advise(out, job.Classification.WaterCategory, class, containment)
	return out
}

// Advise returns field guidance for a sized job.
func (c *Calculator) Advise(s JobSizing, category model.WaterCategory, class model.WaterClass, containment bool) []string {
	var notes []string

	if s.Dehumidifiers == 0 {
		notes = append(notes, "No dehumidifiers calculated; verify room dimensions and water class")
	} else if c.cfg.MaxDehumidifiers > 0 && s.Dehumidifiers > c.cfg.MaxDehumidifiers {
		notes = append(notes, fmt.Sprintf(
			"Consider dividing into multiple drying chambers (%d dehumidifiers is high)", s.Dehumidifiers))
	}
	if s.AirMovers < c.cfg.MinAirMovers {
		notes = append(notes, fmt.Sprintf(
			"Minimum %d air movers recommended for proper circulation", c.cfg.MinAirMovers))
	}
	if category.Contaminated() && s.AirScrubbers == 0 {
		notes = append(notes, fmt.Sprintf("%s water requires air scrubbers for contamination control", category))
	}
	if category.Contaminated() && !containment {
		notes = append(notes, "Set up containment barriers for contaminated water")
	}
	if class == model.Class4 {
		notes = append(notes,
			"Class 4 materials may require specialty drying methods (heat drying, injection drying)",
			"Consider extended drying time and additional moisture monitoring")
	}
	for _, rec := range s.Chambers {
		notes = append(notes, rec.Warnings...)
	}
	if len(notes) == 0 {
		notes = append(notes, "Equipment configuration meets IICRC S500 standards")
	}
	return notes
}

// ToCalculations converts the sizing into the persisted calculations block.
func (s JobSizing) ToCalculations(job model.Job, now time.Time, by string) model.EquipmentCalculations {
	calc := model.EquipmentCalculations{
		TotalAffectedSquareFootage:   s.TotalAffectedSqFt,
		TotalCubicFootage:            s.TotalCubicFootage,
		EstimatedDryingDays:          s.EstimatedDryingDays,
		RecommendedDehumidifierCount: s.Dehumidifiers,
		RecommendedAirMoverCount:     s.AirMovers,
		RecommendedAirScrubberCount:  s.AirScrubbers,
		DehumidifierType:             job.Equipment.DehumidifierType,
		CalculationMethod:            "IICRC S500 chart factor",
		LastCalculatedAt:             now,
		CalculatedBy:                 by,
		WaterClass:                   job.Classification.WaterClass,
		WaterCategory:                job.Classification.WaterCategory,
	}
	var details []string
	for _, rec := range s.Chambers {
		if calc.ChartFactor == 0 {
			calc.ChartFactor = rec.ChartFactor
		}
		details = append(details, fmt.Sprintf("[%s] %s", rec.ChamberName, strings.Join(rec.Formulas, "; ")))
	}
	calc.CalculationDetails = strings.Join(details, "\n")
	return calc
}
