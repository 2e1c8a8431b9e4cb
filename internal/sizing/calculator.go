// Package sizing turns room geometry and damage classification into IICRC
// S500 equipment recommendations.
package sizing

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/model"
)

// ceilEps absorbs float noise such as 12.000000000002 before rounding up.
const ceilEps = 1e-9

// RoomPlacement is the per-room air mover breakdown.
type RoomPlacement struct {
	RoomID            string  `json:"roomId"`
	RoomName          string  `json:"roomName"`
	AffectedFloorSqFt float64 `json:"affectedFloorSqFt"`
	AffectedWallSqFt  float64 `json:"affectedWallSqFt"`
	Base              int     `json:"base"`
	Floor             int     `json:"floor"`
	Wall              int     `json:"wall"`
	Total             int     `json:"total"`
	Suggestion        string  `json:"suggestion"`
}

// Recommendation is the derived equipment sizing for one chamber.
type Recommendation struct {
	ChamberID              string                 `json:"chamberId"`
	ChamberName            string                 `json:"chamberName"`
	DehumidifierType       model.DehumidifierType `json:"dehumidifierType"`
	WaterClass             model.WaterClass       `json:"waterClass"`
	CubicFootage           float64                `json:"cubicFootage"`
	TotalAffectedSqFt      float64                `json:"totalAffectedSqFt"`
	ChartFactor            float64                `json:"chartFactor"`
	UsedDefaultChartFactor bool                   `json:"usedDefaultChartFactor"`
	Unsuitable             bool                   `json:"unsuitable"`
	Rating                 float64                `json:"rating"`
	CapacityUnit           string                 `json:"capacityUnit"`
	RequiredCapacity       float64                `json:"requiredCapacity"`
	Dehumidifiers          int                    `json:"dehumidifiers"`
	AirMovers              int                    `json:"airMovers"`
	AirScrubbers           int                    `json:"airScrubbers"`
	EstimatedDryingDays    int                    `json:"estimatedDryingDays"`
	Placements             []RoomPlacement        `json:"placements"`
	Formulas               []string               `json:"formulas"`
	Warnings               []string               `json:"warnings,omitempty"`
}

// Calculator sizes drying equipment from a fixed constants table.
type Calculator struct {
	cfg config.SizingConfig
}

// NewCalculator creates a Calculator with the given constants.
func NewCalculator(cfg config.SizingConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// ChartFactor looks up the factor for (t, class). ok is false when either
// key is outside the table.
func (c *Calculator) ChartFactor(t model.DehumidifierType, class model.WaterClass) (factor float64, ok bool) {
	var row config.ClassFactors
	switch t {
	case model.DehumidifierConventional:
		row = c.cfg.ChartFactors.Conventional
	case model.DehumidifierLGR:
		row = c.cfg.ChartFactors.LGR
	case model.DehumidifierDesiccant:
		row = c.cfg.ChartFactors.Desiccant
	default:
		return 0, false
	}
	switch class {
	case model.Class1:
		return row.Class1, true
	case model.Class2:
		return row.Class2, true
	case model.Class3:
		return row.Class3, true
	case model.Class4:
		return row.Class4, true
	}
	return 0, false
}

// Size computes the recommendation for one chamber. Only rooms listed in
// chamber.AssignedRooms are considered; ids not present in rooms are
// ignored with a warning. It never fails: bad input degrades the result and
// is reported in Warnings.
func (c *Calculator) Size(chamber model.Chamber, rooms []model.Room, class model.WaterClass, t model.DehumidifierType, rating float64) Recommendation {
	rec := Recommendation{
		ChamberID:        chamber.ChamberID,
		ChamberName:      chamber.ChamberName,
		DehumidifierType: t,
		WaterClass:       class,
		CapacityUnit:     "PPD",
		Placements:       []RoomPlacement{},
		Formulas:         []string{},
	}
	if t == model.DehumidifierDesiccant {
		rec.CapacityUnit = "CFM"
	}

	assigned, missing := resolveRooms(chamber.AssignedRooms, rooms)
	for _, id := range missing {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("room %q is not on the job and was ignored", id))
	}
	if len(assigned) == 0 {
		return rec
	}

	cubicParts := make([]string, 0, len(assigned))
	for _, r := range assigned {
		rec.CubicFootage += r.Dimensions.CubicFt()
		rec.TotalAffectedSqFt += r.TotalAffected()
		cubicParts = append(cubicParts, formatNum(r.Dimensions.CubicFt()))

		p := c.placement(r)
		rec.Placements = append(rec.Placements, p)
		rec.AirMovers += p.Total
	}
	rec.Formulas = append(rec.Formulas,
		fmt.Sprintf("Cubic footage: %s = %s cf", strings.Join(cubicParts, " + "), formatNum(rec.CubicFootage)))

	c.sizeDehumidifiers(&rec, rating)

	rec.Formulas = append(rec.Formulas,
		fmt.Sprintf("Air movers: Σ rooms (base + ceil(floor ÷ %s) + ceil(wall ÷ %s)) = %d",
			formatNum(c.cfg.FloorSqFtPerMover), formatNum(c.cfg.WallSqFtPerMover), rec.AirMovers))

	rec.AirScrubbers = ceilDiv(rec.TotalAffectedSqFt, c.cfg.SqFtPerScrubber)
	rec.Formulas = append(rec.Formulas,
		fmt.Sprintf("Air scrubbers: ceil(%s sf ÷ %s) = %d",
			formatNum(rec.TotalAffectedSqFt), formatNum(c.cfg.SqFtPerScrubber), rec.AirScrubbers))

	rec.EstimatedDryingDays = c.EstimateDryingDays(class, rec.TotalAffectedSqFt)
	return rec
}

func (c *Calculator) sizeDehumidifiers(rec *Recommendation, rating float64) {
	factor, ok := c.ChartFactor(rec.DehumidifierType, rec.WaterClass)
	if !ok {
		factor = c.cfg.DefaultChartFactor
		rec.UsedDefaultChartFactor = true
		rec.Warnings = append(rec.Warnings, fmt.Sprintf(
			"no chart factor for %q / %s; used default %s",
			rec.DehumidifierType, rec.WaterClass, formatNum(factor)))
	}
	rec.ChartFactor = factor

	if rating <= 0 {
		rating = c.cfg.DefaultRatingPPD
		if rec.DehumidifierType == model.DehumidifierDesiccant {
			rating = c.cfg.DefaultDesiccantCFM
		}
		rec.Warnings = append(rec.Warnings, fmt.Sprintf(
			"no unit rating given; assumed %s %s per unit", formatNum(rating), rec.CapacityUnit))
	}
	rec.Rating = rating

	if factor <= 0 {
		rec.Unsuitable = true
		rec.Warnings = append(rec.Warnings, fmt.Sprintf(
			"%s is not suitable for %s; use LGR or desiccant dehumidification",
			rec.DehumidifierType, rec.WaterClass))
		rec.Formulas = append(rec.Formulas, fmt.Sprintf(
			"Dehumidifiers: chart factor 0 for %s / %s, none sized", rec.DehumidifierType, rec.WaterClass))
		return
	}

	if rec.DehumidifierType == model.DehumidifierDesiccant {
		rec.RequiredCapacity = rec.CubicFootage * factor / c.cfg.DesiccantMinutes
		rec.Dehumidifiers = ceilDiv(ceil(rec.RequiredCapacity), rating)
		rec.Formulas = append(rec.Formulas, fmt.Sprintf(
			"Dehumidifiers: %s cf × %s ACH ÷ %s = %s CFM; ceil(%d ÷ %s CFM/unit) = %d",
			formatNum(rec.CubicFootage), formatNum(factor), formatNum(c.cfg.DesiccantMinutes),
			formatNum(rec.RequiredCapacity), int(ceil(rec.RequiredCapacity)), formatNum(rating), rec.Dehumidifiers))
		return
	}

	rec.RequiredCapacity = rec.CubicFootage / factor
	rec.Dehumidifiers = ceilDiv(ceil(rec.RequiredCapacity), rating)
	rec.Formulas = append(rec.Formulas, fmt.Sprintf(
		"Dehumidifiers: %s cf ÷ %s = %s PPD; ceil(%d ÷ %s PPD/unit) = %d",
		formatNum(rec.CubicFootage), formatNum(factor), formatNum(rec.RequiredCapacity),
		int(ceil(rec.RequiredCapacity)), formatNum(rating), rec.Dehumidifiers))
}

func (c *Calculator) placement(r model.Room) RoomPlacement {
	p := RoomPlacement{
		RoomID:            r.RoomID,
		RoomName:          r.RoomName,
		AffectedFloorSqFt: r.AffectedFloor(),
		AffectedWallSqFt:  r.AffectedWalls(),
	}
	if r.AffectedStatus != model.AffectedNone {
		p.Base = 1
	}
	p.Floor = ceilDiv(p.AffectedFloorSqFt, c.cfg.FloorSqFtPerMover)
	p.Wall = ceilDiv(p.AffectedWallSqFt, c.cfg.WallSqFtPerMover)
	p.Total = p.Base + p.Floor + p.Wall

	name := r.RoomName
	if name == "" {
		name = r.RoomID
	}
	if p.Total == 0 {
		p.Suggestion = fmt.Sprintf("%s: no air movers needed", name)
		return p
	}
	p.Suggestion = fmt.Sprintf(
		"%s: %d air mover(s): %d base, %d across %s sf wet floor, %d along %s sf wet wall",
		name, p.Total, p.Base, p.Floor, formatNum(p.AffectedFloorSqFt), p.Wall, formatNum(p.AffectedWallSqFt))
	return p
}

// EstimateDryingDays returns the base days for class plus one day per
// step of affected area beyond the large-area threshold.
func (c *Calculator) EstimateDryingDays(class model.WaterClass, affectedSqFt float64) int {
	days := 0
	if class.Valid() && int(class) <= len(c.cfg.BaseDryingDays) {
		days = c.cfg.BaseDryingDays[int(class)-1]
	} else if len(c.cfg.BaseDryingDays) > 0 {
		days = c.cfg.BaseDryingDays[len(c.cfg.BaseDryingDays)-1]
	}
	if affectedSqFt > c.cfg.LargeAreaSqFt && c.cfg.LargeAreaStepSqFt > 0 {
		days += ceilDiv(affectedSqFt-c.cfg.LargeAreaSqFt, c.cfg.LargeAreaStepSqFt)
	}
	return days
}

// resolveRooms returns the assigned rooms in assignment order plus the ids
// that did not match any room. Duplicate ids are counted once.
func resolveRooms(ids []string, rooms []model.Room) ([]model.Room, []string) {
	byID := make(map[string]model.Room, len(rooms))
	for _, r := range rooms {
		byID[r.RoomID] = r
	}
	seen := make(map[string]bool, len(ids))
	var out []model.Room
	var missing []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, r)
	}
	return out, missing
}

func ceil(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Ceil(v - ceilEps)
}

// ceilDiv returns ceil(v / d) as a non-negative int; a non-positive divisor
// yields zero.
func ceilDiv(v, d float64) int {
	if v <= 0 || d <= 0 {
		return 0
	}
	return int(ceil(v / d))
}

func formatNum(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
