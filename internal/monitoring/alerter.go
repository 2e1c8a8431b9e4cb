package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCriticalFlags AlertType = "critical_flags"
	AlertAdjusterDelay AlertType = "adjuster_delay"
	AlertUrgentBacklog AlertType = "urgent_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook. A zero threshold disables that alert.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.DefaultRetryConfig(),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert

	if n := len(snap.CriticalFlagJobs); a.cfg.CriticalJobs > 0 && n >= a.cfg.CriticalJobs {
		alerts = append(alerts, Alert{
			Type:     AlertCriticalFlags,
			Severity: "critical",
			Message:  fmt.Sprintf("%d job(s) carry an open critical red flag", n),
			Details: map[string]any{
				"jobs":      snap.CriticalFlagJobs,
				"threshold": a.cfg.CriticalJobs,
			},
			Timestamp: snap.CollectedAt,
		})
	}

	if n := len(snap.AdjusterDelayJobs); a.cfg.AdjusterDelayJobs > 0 && n >= a.cfg.AdjusterDelayJobs {
		alerts = append(alerts, Alert{
			Type:     AlertAdjusterDelay,
			Severity: "high",
			Message:  fmt.Sprintf("%d job(s) waiting on an adjuster past the response window", n),
			Details: map[string]any{
				"jobs":      snap.AdjusterDelayJobs,
				"threshold": a.cfg.AdjusterDelayJobs,
			},
			Timestamp: snap.CollectedAt,
		})
	}

	if a.cfg.UrgentJobs > 0 && snap.UrgentJobs >= a.cfg.UrgentJobs {
		alerts = append(alerts, Alert{
			Type:     AlertUrgentBacklog,
			Severity: "high",
			Message:  fmt.Sprintf("%d of %d job(s) in the review queue are critical urgency", snap.UrgentJobs, snap.JobsTotal),
			Details: map[string]any{
				"urgent":    snap.UrgentJobs,
				"total":     snap.JobsTotal,
				"threshold": a.cfg.UrgentJobs,
			},
			Timestamp: snap.CollectedAt,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL, retrying 5xx
// and 429 responses with backoff. Returns the number of alerts successfully
// sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return resilience.NewTransientError(eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
