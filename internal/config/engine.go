package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultEngine returns the IICRC S500 constants the engine ships with.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		Sizing: SizingConfig{
			ChartFactors: ChartFactorTable{
				Conventional: ClassFactors{Class1: 100, Class2: 40, Class3: 30, Class4: 0},
				LGR:          ClassFactors{Class1: 100, Class2: 50, Class3: 40, Class4: 40},
				Desiccant:    ClassFactors{Class1: 1, Class2: 2, Class3: 3, Class4: 3},
			},
			DefaultChartFactor:  50,
			DefaultRatingPPD:    200,
			DefaultDesiccantCFM: 400,
			DesiccantMinutes:    60,
			FloorSqFtPerMover:   60,
			WallSqFtPerMover:    125,
			SqFtPerScrubber:     250,
			MinAirMovers:        2,
			MaxDehumidifiers:    10,
			// Indexed by water class 1..4.
			BaseDryingDays:    []int{2, 3, 5, 7},
			LargeAreaSqFt:     1000,
			LargeAreaStepSqFt: 500,
			Class1MaxPercent:  5,
			Class2MaxPercent:  40,
			Class4Materials:   []string{"hardwood", "plaster", "concrete", "stone", "brick"},
		},
		RedFlag: RedFlagConfig{
			VarianceHigh:         0.20,
			VarianceCritical:     0.50,
			OverrunHigh:          0.15,
			OverrunCritical:      0.30,
			MoistureMinGapDays:   2,
			TimelineBufferDays:   2,
			TimelineEscalateDays: 5,
		},
		Priority: PriorityConfig{
			CriticalFlagPoints:  50,
			HighFlagPoints:      25,
			DayPoints:           5,
			DayGraceDays:        2,
			MissingDocsPoints:   30,
			AwaitingPoints:      40,
			AwaitingDays:        3,
			HighValuePoints:     20,
			HighValueThreshold:  10_000,
			FieldCompletePoints: 15,
			ConcernsPoints:      25,
			ConcernsThreshold:   2,
			UrgencyCritical:     100,
			UrgencyHigh:         50,
			UrgencyMedium:       25,
			AgingDays:           7,
			TopIssues:           5,
		},
		Drying: DryingConfig{
			DefaultStandard:  12,
			DryTolerance:     2,
			StableBand:       0.5,
			MaxProjectedDays: 30,
		},
		Queue: QueueConfig{
			Workers: 8,
			Limit:   200,
		},
	}
}

// Validate checks that the engine table is internally consistent.
func (e EngineConfig) Validate() error {
	var errs []string

	s := e.Sizing
	if s.DefaultChartFactor <= 0 {
		errs = append(errs, "sizing.default_chart_factor must be positive")
	}
	if s.DefaultRatingPPD <= 0 {
		errs = append(errs, "sizing.default_rating_ppd must be positive")
	}
	if s.DefaultDesiccantCFM <= 0 {
		errs = append(errs, "sizing.default_desiccant_cfm must be positive")
	}
	if s.DesiccantMinutes <= 0 {
		errs = append(errs, "sizing.desiccant_minutes must be positive")
	}
	if s.FloorSqFtPerMover <= 0 || s.WallSqFtPerMover <= 0 || s.SqFtPerScrubber <= 0 {
		errs = append(errs, "sizing divisors must be positive")
	}
	if len(s.BaseDryingDays) != 4 {
		errs = append(errs, "sizing.base_drying_days needs one entry per water class")
	}
	if s.LargeAreaStepSqFt <= 0 {
		errs = append(errs, "sizing.large_area_step_sqft must be positive")
	}
	if s.Class1MaxPercent >= s.Class2MaxPercent {
		errs = append(errs, "sizing.class_1_max_percent must be below class_2_max_percent")
	}
	for _, col := range s.ChartFactors.Columns() {
		f := col.Factors
		if f.Class1 < 0 || f.Class2 < 0 || f.Class3 < 0 || f.Class4 < 0 {
			errs = append(errs, "sizing.chart_factors."+col.Name+" must not be negative")
		}
	}

	r := e.RedFlag
	if r.VarianceHigh <= 0 || r.VarianceCritical < r.VarianceHigh {
		errs = append(errs, "redflag variance thresholds must satisfy 0 < high <= critical")
	}
	if r.OverrunHigh <= 0 || r.OverrunCritical < r.OverrunHigh {
		errs = append(errs, "redflag overrun thresholds must satisfy 0 < high <= critical")
	}
	if r.MoistureMinGapDays < 0 || r.TimelineBufferDays < 0 || r.TimelineEscalateDays < 0 {
		errs = append(errs, "redflag day thresholds must not be negative")
	}

	p := e.Priority
	if !(p.UrgencyCritical > p.UrgencyHigh && p.UrgencyHigh > p.UrgencyMedium && p.UrgencyMedium > 0) {
		errs = append(errs, "priority urgency thresholds must be strictly descending and positive")
	}
	if p.TopIssues <= 0 {
		errs = append(errs, "priority.top_issues must be positive")
	}

	if e.Drying.DefaultStandard <= 0 || e.Drying.DryTolerance < 0 || e.Drying.StableBand < 0 {
		errs = append(errs, "drying standard must be positive and tolerances non-negative")
	}
	if e.Drying.MaxProjectedDays <= 0 {
		errs = append(errs, "drying.max_projected_days must be positive")
	}

	if e.Queue.Workers <= 0 {
		errs = append(errs, "queue.workers must be positive")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: engine validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
