package model

import "time"

// Room is one space on the job with its geometry and field data.
type Room struct {
	RoomID           string            `json:"roomId"`
	RoomName         string            `json:"roomName"`
	RoomType         string            `json:"roomType,omitempty"`
	AffectedStatus   AffectedStatus    `json:"affectedStatus"`
	Dimensions       Dimensions        `json:"dimensions"`
	AffectedAreas    AffectedAreas     `json:"affectedAreas"`
	MoistureReadings []MoistureReading `json:"moistureReadings"`
	Photos           []Photo           `json:"photos"`
}

// Dimensions are in feet. Insets and offsets adjust the cubic volume for
// alcoves and obstructions.
type Dimensions struct {
	Length         float64 `json:"length"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	InsetsCubicFt  float64 `json:"insetsCubicFt,omitempty"`
	OffsetsCubicFt float64 `json:"offsetsCubicFt,omitempty"`
}

func nonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Clamped returns d with every negative measurement set to zero.
func (d Dimensions) Clamped() Dimensions {
	return Dimensions{
		Length:         nonNeg(d.Length),
		Width:          nonNeg(d.Width),
		Height:         nonNeg(d.Height),
		InsetsCubicFt:  nonNeg(d.InsetsCubicFt),
		OffsetsCubicFt: nonNeg(d.OffsetsCubicFt),
	}
}

// FloorSqFt is length × width.
func (d Dimensions) FloorSqFt() float64 {
	c := d.Clamped()
	return c.Length * c.Width
}

// CeilingSqFt equals the floor area.
func (d Dimensions) CeilingSqFt() float64 {
	return d.FloorSqFt()
}

// WallSqFt is perimeter × height.
func (d Dimensions) WallSqFt() float64 {
	c := d.Clamped()
	return 2 * (c.Length + c.Width) * c.Height
}

// CubicFt is L × W × H plus insets minus offsets, never negative.
func (d Dimensions) CubicFt() float64 {
	c := d.Clamped()
	return nonNeg(c.Length*c.Width*c.Height + c.InsetsCubicFt - c.OffsetsCubicFt)
}

// AffectedAreas is the per-surface wet area breakdown.
type AffectedAreas struct {
	Floor   SurfaceArea `json:"floor"`
	Walls   SurfaceArea `json:"walls"`
	Ceiling SurfaceArea `json:"ceiling"`
}

// SurfaceArea is total versus affected square footage of one surface.
type SurfaceArea struct {
	TotalSqFt       float64 `json:"totalSqFt"`
	AffectedSqFt    float64 `json:"affectedSqFt"`
	PercentAffected float64 `json:"percentAffected"`
}

// Affected returns the affected square footage clamped to [0, total]. A
// surface with no known total is only clamped at zero.
func (s SurfaceArea) Affected(derivedTotal float64) float64 {
	total := nonNeg(s.TotalSqFt)
	if total == 0 {
		total = nonNeg(derivedTotal)
	}
	a := nonNeg(s.AffectedSqFt)
	if total > 0 && a > total {
		return total
	}
	return a
}

// AffectedFloor returns the clamped affected floor area.
func (r Room) AffectedFloor() float64 {
	return r.AffectedAreas.Floor.Affected(r.Dimensions.FloorSqFt())
}

// AffectedWalls returns the clamped affected wall area.
func (r Room) AffectedWalls() float64 {
	return r.AffectedAreas.Walls.Affected(r.Dimensions.WallSqFt())
}

// AffectedCeiling returns the clamped affected ceiling area.
func (r Room) AffectedCeiling() float64 {
	return r.AffectedAreas.Ceiling.Affected(r.Dimensions.CeilingSqFt())
}

// TotalAffected sums the clamped affected area of all three surfaces.
func (r Room) TotalAffected() float64 {
	return r.AffectedFloor() + r.AffectedWalls() + r.AffectedCeiling()
}

// TotalSurface sums the total area of all three surfaces.
func (r Room) TotalSurface() float64 {
	pick := func(s SurfaceArea, derived float64) float64 {
		if s.TotalSqFt > 0 {
			return s.TotalSqFt
		}
		return derived
	}
	return pick(r.AffectedAreas.Floor, r.Dimensions.FloorSqFt()) +
		pick(r.AffectedAreas.Walls, r.Dimensions.WallSqFt()) +
		pick(r.AffectedAreas.Ceiling, r.Dimensions.CeilingSqFt())
}

// MoistureReading is a single meter reading on a material.
type MoistureReading struct {
	ReadingID          string      `json:"readingId,omitempty"`
	Material           string      `json:"material"`
	Location           string      `json:"location,omitempty"`
	MoisturePercentage float64     `json:"moisturePercentage"`
	RecordedAt         time.Time   `json:"recordedAt"`
	ReadingType        ReadingType `json:"readingType"`
	TechnicianID       string      `json:"technicianId,omitempty"`
	IsDry              bool        `json:"isDry,omitempty"`
	Notes              string      `json:"notes,omitempty"`
}

// Photo is photo metadata only; the image itself lives elsewhere.
type Photo struct {
	PhotoID    string    `json:"photoId"`
	URL        string    `json:"url,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Step       PhotoStep `json:"step"`
	Caption    string    `json:"caption,omitempty"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
}
