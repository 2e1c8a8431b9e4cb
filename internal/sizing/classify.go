package sizing

import (
	"strings"

	"github.com/sells-group/drylogs/internal/model"
)

// ClassifyWater maps the percent of affected surface area to a water class.
// Class 4 is driven by materials, not area; see RequiresClass4Treatment.
func (c *Calculator) ClassifyWater(percentAffected float64) model.WaterClass {
	switch {
	case percentAffected < c.cfg.Class1MaxPercent:
		return model.Class1
	case percentAffected <= c.cfg.Class2MaxPercent:
		return model.Class2
	default:
		return model.Class3
	}
}

// RequiresClass4Treatment reports whether a material holds water tightly
// enough to need specialty drying.
func (c *Calculator) RequiresClass4Treatment(material string) bool {
	m := strings.ToLower(material)
	for _, cm := range c.cfg.Class4Materials {
		if cm != "" && strings.Contains(m, strings.ToLower(cm)) {
			return true
		}
	}
	return false
}

// PercentAffected returns affected ÷ total surface area across rooms, as a
// percentage.
func PercentAffected(rooms []model.Room) float64 {
	var affected, total float64
	for _, r := range rooms {
		affected += r.TotalAffected()
		total += r.TotalSurface()
	}
	if total <= 0 {
		return 0
	}
	return affected / total * 100
}

// SuggestClass classifies the job from its rooms, escalating to Class 4 when
// any moisture reading is on a Class 4 material.
func (c *Calculator) SuggestClass(rooms []model.Room) model.WaterClass {
	for _, r := range rooms {
		for _, mr := range r.MoistureReadings {
			if c.RequiresClass4Treatment(mr.Material) {
				return model.Class4
			}
		}
	}
	return c.ClassifyWater(PercentAffected(rooms))
}
