package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/config"
	"github.com/sells-group/roadrisk/internal/metrics"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates run health on a fixed interval while the server is up.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

// NewChecker creates a checker. A non-positive CheckIntervalSecs falls back
// to five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Run checks once immediately and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting run health checker",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.Check(ctx); err != nil && ctx.Err() == nil {
			log.Error("monitoring: check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("run health checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects a snapshot over the lookback window, evaluates it and sends
// whatever alerts fire. It returns the alerts raised.
func (c *Checker) Check(ctx context.Context) ([]Alert, error) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: check")
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("monitoring: no alerts", zap.Int("runs", snap.RunsTotal))
		return nil, nil
	}
	for _, a := range alerts {
		metrics.ObserveAlert(string(a.Type))
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alerts raised",
		zap.String("component", "monitoring.checker"),
		zap.Int("alerts", len(alerts)),
		zap.Int("sent", sent),
	)
	return alerts, nil
}
