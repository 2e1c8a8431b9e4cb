package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/drylogs/internal/config"
)

// Checker runs periodic alert checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
}

// NewChecker creates a background alert checker. A non-positive interval
// defaults to five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{collector: collector, alerter: alerter, interval: interval}
}

// Run checks once immediately and then on every tick. It blocks until ctx
// is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			log.Info("alert checker stopped")
			return
		}
		c.Check(ctx)

		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects one snapshot and sends any alerts. It returns the number
// of alerts triggered.
func (c *Checker) Check(ctx context.Context) int {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		zap.L().Error("monitoring: failed to collect snapshot", zap.Error(err))
		return 0
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("monitoring: no alerts triggered")
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alert check complete",
		zap.Int("jobs", snap.JobsTotal),
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return len(alerts)
}
