package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RetryConfig configures retries of version-conflicted job writes.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// MonitoringConfig configures review-queue alerting. An empty WebhookURL
// disables delivery.
type MonitoringConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	CriticalJobs      int    `yaml:"critical_jobs" mapstructure:"critical_jobs"`
	AdjusterDelayJobs int    `yaml:"adjuster_delay_jobs" mapstructure:"adjuster_delay_jobs"`
	UrgentJobs        int    `yaml:"urgent_jobs" mapstructure:"urgent_jobs"`
}

// EngineConfig is the tuning table for sizing, detection and scoring.
type EngineConfig struct {
	Sizing   SizingConfig   `yaml:"sizing" mapstructure:"sizing"`
	RedFlag  RedFlagConfig  `yaml:"redflag" mapstructure:"redflag"`
	Priority PriorityConfig `yaml:"priority" mapstructure:"priority"`
	Drying   DryingConfig   `yaml:"drying" mapstructure:"drying"`
	Queue    QueueConfig    `yaml:"queue" mapstructure:"queue"`
}

// DryingConfig drives drying-curve trend and dry-date projection.
type DryingConfig struct {
	DefaultStandard  float64 `yaml:"default_standard" mapstructure:"default_standard"`
	DryTolerance     float64 `yaml:"dry_tolerance" mapstructure:"dry_tolerance"`
	StableBand       float64 `yaml:"stable_band" mapstructure:"stable_band"`
	MaxProjectedDays int     `yaml:"max_projected_days" mapstructure:"max_projected_days"`
}

// ClassFactors holds one chart factor per water class.
type ClassFactors struct {
	Class1 float64 `yaml:"class_1" mapstructure:"class_1"`
	Class2 float64 `yaml:"class_2" mapstructure:"class_2"`
	Class3 float64 `yaml:"class_3" mapstructure:"class_3"`
	Class4 float64 `yaml:"class_4" mapstructure:"class_4"`
}

// ChartFactorTable is keyed by dehumidifier type, then water class.
// Desiccant factors are air changes per hour.
type ChartFactorTable struct {
	Conventional ClassFactors `yaml:"conventional" mapstructure:"conventional"`
	LGR          ClassFactors `yaml:"lgr" mapstructure:"lgr"`
	Desiccant    ClassFactors `yaml:"desiccant" mapstructure:"desiccant"`
}

// NamedClassFactors pairs a chart-factor column with its config key.
type NamedClassFactors struct {
	Name    string
	Factors ClassFactors
}

// Columns returns the table's columns in a fixed order.
func (t ChartFactorTable) Columns() []NamedClassFactors {
	return []NamedClassFactors{
		{Name: "conventional", Factors: t.Conventional},
		{Name: "lgr", Factors: t.LGR},
		{Name: "desiccant", Factors: t.Desiccant},
	}
}

// SizingConfig holds the equipment sizing constants.
type SizingConfig struct {
	ChartFactors        ChartFactorTable `yaml:"chart_factors" mapstructure:"chart_factors"`
	DefaultChartFactor  float64          `yaml:"default_chart_factor" mapstructure:"default_chart_factor"`
	DefaultRatingPPD    float64          `yaml:"default_rating_ppd" mapstructure:"default_rating_ppd"`
	DefaultDesiccantCFM float64          `yaml:"default_desiccant_cfm" mapstructure:"default_desiccant_cfm"`
	DesiccantMinutes    float64          `yaml:"desiccant_minutes" mapstructure:"desiccant_minutes"`
	FloorSqFtPerMover   float64          `yaml:"floor_sqft_per_mover" mapstructure:"floor_sqft_per_mover"`
	WallSqFtPerMover    float64          `yaml:"wall_sqft_per_mover" mapstructure:"wall_sqft_per_mover"`
	SqFtPerScrubber     float64          `yaml:"sqft_per_scrubber" mapstructure:"sqft_per_scrubber"`
	MinAirMovers        int              `yaml:"min_air_movers" mapstructure:"min_air_movers"`
	MaxDehumidifiers    int              `yaml:"max_dehumidifiers" mapstructure:"max_dehumidifiers"`
	BaseDryingDays      []int            `yaml:"base_drying_days" mapstructure:"base_drying_days"`
	LargeAreaSqFt       float64          `yaml:"large_area_sqft" mapstructure:"large_area_sqft"`
	LargeAreaStepSqFt   float64          `yaml:"large_area_step_sqft" mapstructure:"large_area_step_sqft"`
	Class1MaxPercent    float64          `yaml:"class_1_max_percent" mapstructure:"class_1_max_percent"`
	Class2MaxPercent    float64          `yaml:"class_2_max_percent" mapstructure:"class_2_max_percent"`
	Class4Materials     []string         `yaml:"class_4_materials" mapstructure:"class_4_materials"`
}

// RedFlagConfig holds detector thresholds. Percentages are fractions.
type RedFlagConfig struct {
	VarianceHigh         float64 `yaml:"variance_high" mapstructure:"variance_high"`
	// VarianceCritical is inclusive: a variance of exactly this value is
	// critical, while VarianceHigh must be exceeded.
	VarianceCritical     float64 `yaml:"variance_critical" mapstructure:"variance_critical"`
	OverrunHigh          float64 `yaml:"overrun_high" mapstructure:"overrun_high"`
	OverrunCritical      float64 `yaml:"overrun_critical" mapstructure:"overrun_critical"`
	MoistureMinGapDays   float64 `yaml:"moisture_min_gap_days" mapstructure:"moisture_min_gap_days"`
	TimelineBufferDays   int     `yaml:"timeline_buffer_days" mapstructure:"timeline_buffer_days"`
	TimelineEscalateDays int     `yaml:"timeline_escalate_days" mapstructure:"timeline_escalate_days"`
}

// PriorityConfig holds the additive point model.
type PriorityConfig struct {
	CriticalFlagPoints  int     `yaml:"critical_flag_points" mapstructure:"critical_flag_points"`
	HighFlagPoints      int     `yaml:"high_flag_points" mapstructure:"high_flag_points"`
	DayPoints           int     `yaml:"day_points" mapstructure:"day_points"`
	DayGraceDays        int     `yaml:"day_grace_days" mapstructure:"day_grace_days"`
	MissingDocsPoints   int     `yaml:"missing_docs_points" mapstructure:"missing_docs_points"`
	AwaitingPoints      int     `yaml:"awaiting_points" mapstructure:"awaiting_points"`
	AwaitingDays        int     `yaml:"awaiting_days" mapstructure:"awaiting_days"`
	HighValuePoints     int     `yaml:"high_value_points" mapstructure:"high_value_points"`
	HighValueThreshold  float64 `yaml:"high_value_threshold" mapstructure:"high_value_threshold"`
	FieldCompletePoints int     `yaml:"field_complete_points" mapstructure:"field_complete_points"`
	ConcernsPoints      int     `yaml:"concerns_points" mapstructure:"concerns_points"`
	ConcernsThreshold   int     `yaml:"concerns_threshold" mapstructure:"concerns_threshold"`
	UrgencyCritical     int     `yaml:"urgency_critical" mapstructure:"urgency_critical"`
	UrgencyHigh         int     `yaml:"urgency_high" mapstructure:"urgency_high"`
	UrgencyMedium       int     `yaml:"urgency_medium" mapstructure:"urgency_medium"`
	AgingDays           int     `yaml:"aging_days" mapstructure:"aging_days"`
	TopIssues           int     `yaml:"top_issues" mapstructure:"top_issues"`
}

// QueueConfig configures the parallel review-queue build.
type QueueConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	Limit   int `yaml:"limit" mapstructure:"limit"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DRYLOGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "drylogs.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.initial_backoff_ms", 50)
	v.SetDefault("retry.max_backoff_ms", 1000)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.critical_jobs", 1)
	v.SetDefault("monitoring.adjuster_delay_jobs", 3)
	v.SetDefault("monitoring.urgent_jobs", 10)

	e := DefaultEngine()
	s := e.Sizing
	for _, col := range s.ChartFactors.Columns() {
		f := col.Factors
		prefix := "engine.sizing.chart_factors." + col.Name + "."
		v.SetDefault(prefix+"class_1", f.Class1)
		v.SetDefault(prefix+"class_2", f.Class2)
		v.SetDefault(prefix+"class_3", f.Class3)
		v.SetDefault(prefix+"class_4", f.Class4)
	}
	v.SetDefault("engine.sizing.default_chart_factor", s.DefaultChartFactor)
	v.SetDefault("engine.sizing.default_rating_ppd", s.DefaultRatingPPD)
	v.SetDefault("engine.sizing.default_desiccant_cfm", s.DefaultDesiccantCFM)
	v.SetDefault("engine.sizing.desiccant_minutes", s.DesiccantMinutes)
	v.SetDefault("engine.sizing.floor_sqft_per_mover", s.FloorSqFtPerMover)
	v.SetDefault("engine.sizing.wall_sqft_per_mover", s.WallSqFtPerMover)
	v.SetDefault("engine.sizing.sqft_per_scrubber", s.SqFtPerScrubber)
	v.SetDefault("engine.sizing.min_air_movers", s.MinAirMovers)
	v.SetDefault("engine.sizing.max_dehumidifiers", s.MaxDehumidifiers)
	v.SetDefault("engine.sizing.base_drying_days", s.BaseDryingDays)
	v.SetDefault("engine.sizing.large_area_sqft", s.LargeAreaSqFt)
	v.SetDefault("engine.sizing.large_area_step_sqft", s.LargeAreaStepSqFt)
	v.SetDefault("engine.sizing.class_1_max_percent", s.Class1MaxPercent)
	v.SetDefault("engine.sizing.class_2_max_percent", s.Class2MaxPercent)
	v.SetDefault("engine.sizing.class_4_materials", s.Class4Materials)

	r := e.RedFlag
	v.SetDefault("engine.redflag.variance_high", r.VarianceHigh)
	v.SetDefault("engine.redflag.variance_critical", r.VarianceCritical)
	v.SetDefault("engine.redflag.overrun_high", r.OverrunHigh)
	v.SetDefault("engine.redflag.overrun_critical", r.OverrunCritical)
	v.SetDefault("engine.redflag.moisture_min_gap_days", r.MoistureMinGapDays)
	v.SetDefault("engine.redflag.timeline_buffer_days", r.TimelineBufferDays)
	v.SetDefault("engine.redflag.timeline_escalate_days", r.TimelineEscalateDays)

	p := e.Priority
	v.SetDefault("engine.priority.critical_flag_points", p.CriticalFlagPoints)
	v.SetDefault("engine.priority.high_flag_points", p.HighFlagPoints)
	v.SetDefault("engine.priority.day_points", p.DayPoints)
	v.SetDefault("engine.priority.day_grace_days", p.DayGraceDays)
	v.SetDefault("engine.priority.missing_docs_points", p.MissingDocsPoints)
	v.SetDefault("engine.priority.awaiting_points", p.AwaitingPoints)
	v.SetDefault("engine.priority.awaiting_days", p.AwaitingDays)
	v.SetDefault("engine.priority.high_value_points", p.HighValuePoints)
	v.SetDefault("engine.priority.high_value_threshold", p.HighValueThreshold)
	v.SetDefault("engine.priority.field_complete_points", p.FieldCompletePoints)
	v.SetDefault("engine.priority.concerns_points", p.ConcernsPoints)
	v.SetDefault("engine.priority.concerns_threshold", p.ConcernsThreshold)
	v.SetDefault("engine.priority.urgency_critical", p.UrgencyCritical)
	v.SetDefault("engine.priority.urgency_high", p.UrgencyHigh)
	v.SetDefault("engine.priority.urgency_medium", p.UrgencyMedium)
	v.SetDefault("engine.priority.aging_days", p.AgingDays)
	v.SetDefault("engine.priority.top_issues", p.TopIssues)

	d := e.Drying
	v.SetDefault("engine.drying.default_standard", d.DefaultStandard)
	v.SetDefault("engine.drying.dry_tolerance", d.DryTolerance)
	v.SetDefault("engine.drying.stable_band", d.StableBand)
	v.SetDefault("engine.drying.max_projected_days", d.MaxProjectedDays)

	v.SetDefault("engine.queue.workers", e.Queue.Workers)
	v.SetDefault("engine.queue.limit", e.Queue.Limit)
}

// Dump renders cfg as YAML.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal yaml")
	}
	return out, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
