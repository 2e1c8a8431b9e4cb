// Package drying turns moisture readings into per-material drying curves
// with a trend and a projected dry date.
package drying

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/model"
)

// Trend classifies the last step of a drying curve.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
	TrendUnknown   Trend = "unknown"
)

// Point is one reading on a curve.
type Point struct {
	At      time.Time         `json:"at"`
	Percent float64           `json:"moisturePercent"`
	Type    model.ReadingType `json:"readingType,omitempty"`
}

// Curve is the drying history of one material in one room.
type Curve struct {
	RoomID           string     `json:"roomId,omitempty"`
	RoomName         string     `json:"roomName,omitempty"`
	Material         string     `json:"material"`
	DryStandard      float64    `json:"dryStandard"`
	Points           []Point    `json:"dataPoints"`
	Trend            Trend      `json:"trend"`
	RatePerDay       float64    `json:"ratePerDay"`
	Dry              bool       `json:"dry"`
	ProjectedDryDate *time.Time `json:"projectedDryDate,omitempty"`
}

// Series is the time-ordered, non-reference readings of one material.
type Series struct {
	Material string
	Readings []model.MoistureReading
}

// Analyzer builds curves using the configured dry standard and tolerances.
type Analyzer struct {
	cfg config.DryingConfig
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg config.DryingConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// IsDry reports whether pct is within tolerance of standard or under the
// default dry standard.
func (a *Analyzer) IsDry(pct, standard float64) bool {
	return pct <= standard+a.cfg.DryTolerance || pct < a.cfg.DefaultStandard
}

// Curve computes trend, rate and projection over points, which must be in
// time order. The trend compares the last two points; the rate is the
// average daily loss from first to last; a projection is only made while
// improving and when it lands inside the configured horizon.
func (a *Analyzer) Curve(points []Point, dryStandard float64) Curve {
	c := Curve{
		DryStandard: dryStandard,
		Points:      points,
		Trend:       TrendUnknown,
	}
	n := len(points)
	if n == 0 {
		return c
	}
	last := points[n-1]
	c.Dry = a.IsDry(last.Percent, dryStandard)
	if n < 2 {
		return c
	}

	diff := last.Percent - points[n-2].Percent
	switch {
	case math.Abs(diff) <= a.cfg.StableBand:
		c.Trend = TrendStable
	case diff < 0:
		c.Trend = TrendImproving
	default:
		c.Trend = TrendWorsening
	}

	days := last.At.Sub(points[0].At).Hours() / 24
	if days > 0 {
		c.RatePerDay = (points[0].Percent - last.Percent) / days
	}

	if c.Trend == TrendImproving && c.RatePerDay > 0 {
		toDry := (last.Percent - dryStandard) / c.RatePerDay
		if toDry > 0 && toDry < float64(a.cfg.MaxProjectedDays) {
			projected := last.At.AddDate(0, 0, int(math.Ceil(toDry)))
			c.ProjectedDryDate = &projected
		}
	}
	return c
}

// RoomCurves builds one curve per material recorded in room. The dry
// standard of a material is its latest reference reading, or the default
// standard when no reference was taken. Curves are sorted by material.
func (a *Analyzer) RoomCurves(room model.Room) []Curve {
	standards := ReferenceStandards(room)
	var out []Curve
	for _, s := range ByMaterial(room) {
		std, ok := standards[materialKey(s.Material)]
		if !ok {
			std = a.cfg.DefaultStandard
		}
		pts := make([]Point, 0, len(s.Readings))
		for _, r := range s.Readings {
			pts = append(pts, Point{At: r.RecordedAt, Percent: r.MoisturePercentage, Type: r.ReadingType})
		}
		c := a.Curve(pts, std)
		c.RoomID = room.RoomID
		c.RoomName = room.RoomName
		c.Material = s.Material
		out = append(out, c)
	}
	return out
}

// ByMaterial groups the room's non-reference readings by material
// (case-insensitive), each series in recorded order.
func ByMaterial(room model.Room) []Series {
	idx := map[string]int{}
	var out []Series
	for _, r := range room.MoistureReadings {
		if r.ReadingType == model.ReadingReference {
			continue
		}
		key := materialKey(r.Material)
		if key == "" {
			continue
		}
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, Series{Material: strings.TrimSpace(r.Material)})
		}
		out[i].Readings = append(out[i].Readings, r)
	}
	for i := range out {
		rs := out[i].Readings
		sort.SliceStable(rs, func(a, b int) bool { return rs[a].RecordedAt.Before(rs[b].RecordedAt) })
	}
	sort.Slice(out, func(a, b int) bool { return materialKey(out[a].Material) < materialKey(out[b].Material) })
	return out
}

// ReferenceStandards maps material to its latest reference reading.
func ReferenceStandards(room model.Room) map[string]float64 {
	latest := map[string]time.Time{}
	out := map[string]float64{}
	for _, r := range room.MoistureReadings {
		if r.ReadingType != model.ReadingReference {
			continue
		}
		key := materialKey(r.Material)
		if t, ok := latest[key]; ok && r.RecordedAt.Before(t) {
			continue
		}
		latest[key] = r.RecordedAt
		out[key] = r.MoisturePercentage
	}
	return out
}

// materialKey folds case, width and accents so "Drywall", "drywall " and
// "ＤＲＹＷＡＬＬ" share a curve.
func materialKey(m string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(m))
	if err != nil {
		folded = strings.TrimSpace(m)
	}
	return strings.ToLower(folded)
}
