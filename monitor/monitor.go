package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/icewatch/ice-monitor/cloud"
	"github.com/icewatch/ice-monitor/config"
	"github.com/icewatch/ice-monitor/health"
	"github.com/icewatch/ice-monitor/logger"
	"github.com/icewatch/ice-monitor/notify"
	"github.com/icewatch/ice-monitor/storage"
	"github.com/icewatch/ice-monitor/validator"
)

// Registry is the device registry consumed by the monitor
type Registry interface {
	ListDevices(ctx context.Context) ([]cloud.Device, error)
	GetDevice(ctx context.Context, id string) (cloud.Device, error)
	PublishProperty(ctx context.Context, thingID, propertyID string, value interface{}) error
}

// MailSender delivers one alert mail
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// AlertFilter can suppress or rewrite an outgoing alert
type AlertFilter interface {
	Apply(alert notify.Alert) (notify.Alert, bool, error)
}

// AlertSink mirrors alerts to a secondary channel
type AlertSink interface {
	PublishAlert(alert notify.Alert) error
}

// Recorder persists status-change audit records
type Recorder interface {
	Record(change storage.StatusChange) error
}

const (
	propNotificationEmail = "notificationEmail"
	propWarning           = "warning"
	propCritical          = "critical"
)

// Options tunes the monitor loop
type Options struct {
	// Interval between fleet sweeps
	Interval time.Duration
	// BatchSize bounds concurrent per-device work within a sweep
	BatchSize int
	// CallTimeout bounds every upstream call
	CallTimeout time.Duration

	// Optional collaborators
	Filter   AlertFilter
	Sink     AlertSink
	Recorder Recorder
}

// Monitor runs the polling loop: fetch each device, derive its health,
// notify when due and publish changed status flags back to the registry.
type Monitor struct {
	registry Registry
	mailer   MailSender
	throttle *notify.Throttle

	interval    time.Duration
	batchSize   int
	callTimeout time.Duration

	filterMu sync.RWMutex
	filter   AlertFilter

	sink     AlertSink
	recorder Recorder

	// now is swapped in tests
	now func() time.Time
}

// New creates a monitor
func New(registry Registry, mailer MailSender, throttle *notify.Throttle, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &Monitor{
		registry:    registry,
		mailer:      mailer,
		throttle:    throttle,
		interval:    opts.Interval,
		batchSize:   opts.BatchSize,
		callTimeout: opts.CallTimeout,
		filter:      opts.Filter,
		sink:        opts.Sink,
		recorder:    opts.Recorder,
		now:         time.Now,
	}
}

// Run executes sweeps until the context is cancelled. The first sweep
// starts immediately. Sweeps never overlap: a tick that fires while the
// previous sweep is still running is skipped.
func (m *Monitor) Run(ctx context.Context) {
	logger.Info("monitor started, sweep interval %s", m.interval)

	if err := m.RunCycle(ctx); err != nil {
		logger.Error("sweep failed: %v", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("monitor stopped")
			return
		case <-ticker.C:
			if err := m.RunCycle(ctx); err != nil {
				logger.Error("sweep failed: %v", err)
			}
			// Drop the tick that may have queued while the sweep ran
			select {
			case <-ticker.C:
				logger.Warn("sweep overran the poll interval, skipping a tick")
			default:
			}
		}
	}
}

// RunCycle performs one fleet sweep. A failing device never stops the
// others; only a failed device listing (which includes auth failure)
// aborts the sweep.
func (m *Monitor) RunCycle(ctx context.Context) error {
	listCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	devices, err := m.registry.ListDevices(listCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("device listing failed, aborting sweep: %v", err)
	}

	logger.Debug("sweeping %d devices", len(devices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.batchSize)
	for _, dev := range devices {
		id := dev.ID
		g.Go(func() error {
			m.processDevice(gctx, id)
			return nil
		})
	}
	return g.Wait()
}

// processDevice runs fetch -> evaluate -> notify -> publish for one
// device. Every failure is logged with the device identifier and left
// for the next sweep; nothing propagates to sibling devices.
func (m *Monitor) processDevice(ctx context.Context, id string) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	dev, err := m.registry.GetDevice(fetchCtx, id)
	cancel()
	if err != nil {
		logger.Error("skipping device %s this sweep: %v", id, err)
		return
	}

	now := m.now()
	verdict := health.Evaluate(dev, now)

	if verdict.Healthy() {
		// Forget the cooldown so a later regression notifies immediately
		m.throttle.Clear(dev.ID)
	} else if verdict.NeedsNotification && m.throttle.ShouldNotify(dev.ID, now) {
		m.sendAlert(ctx, dev, verdict, now)
	}

	m.publishFlags(ctx, dev, verdict, now)
}

// sendAlert composes, filters and delivers one notification. The
// throttle entry is only refreshed after a successful send, so a failed
// delivery is retried on the next sweep.
func (m *Monitor) sendAlert(ctx context.Context, dev cloud.Device, verdict health.Verdict, now time.Time) {
	alert := notify.Compose(dev, verdict, now)

	m.filterMu.RLock()
	filter := m.filter
	m.filterMu.RUnlock()

	if filter != nil {
		filtered, keep, err := filter.Apply(alert)
		if err != nil {
			logger.Error("alert filter failed for device %s: %v", dev.ID, err)
		} else if !keep {
			logger.Info("alert for device %s suppressed by filter", dev.ID)
			return
		} else {
			alert = filtered
		}
	}

	to, ok := dev.StringProperty(propNotificationEmail)
	if !ok || to == "" {
		logger.Warn("device %s has no notification email configured, alert dropped", dev.ID)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	err := m.mailer.Send(sendCtx, to, alert.Subject, alert.Body)
	cancel()
	if err != nil {
		logger.Error("failed to notify for device %s, will retry next sweep: %v", dev.ID, err)
		return
	}

	m.throttle.RecordSent(dev.ID, now)
	logger.Info("sent %s alert for device %s to %s", alert.Severity, dev.ID, to)

	if m.sink != nil {
		if err := m.sink.PublishAlert(alert); err != nil {
			logger.Error("failed to mirror alert for device %s: %v", dev.ID, err)
		}
	}
}

// publishFlags writes the derived warning/critical flags back to the
// registry when they differ from the published ones, and records the
// transition in the audit trail. A failed publish is retried on the
// next sweep only.
func (m *Monitor) publishFlags(ctx context.Context, dev cloud.Device, verdict health.Verdict, now time.Time) {
	changedWarning := verdict.ShouldBeWarning != dev.BoolProperty(propWarning)
	changedCritical := verdict.ShouldBeCritical != dev.BoolProperty(propCritical)
	if !changedWarning && !changedCritical {
		return
	}

	if m.recorder != nil {
		alert := notify.Compose(dev, verdict, now)
		if err := m.recorder.Record(storage.StatusChange{
			DeviceID:   dev.ID,
			DeviceName: dev.Name,
			Warning:    verdict.ShouldBeWarning,
			Critical:   verdict.ShouldBeCritical,
			Issues:     alert.Issues,
			ChangedAt:  now,
		}); err != nil {
			logger.Error("failed to record status change for device %s: %v", dev.ID, err)
		}
	}

	if changedWarning {
		m.publishFlag(ctx, dev, propWarning, verdict.ShouldBeWarning)
	}
	if changedCritical {
		m.publishFlag(ctx, dev, propCritical, verdict.ShouldBeCritical)
	}
}

func (m *Monitor) publishFlag(ctx context.Context, dev cloud.Device, name string, value bool) {
	prop, ok := dev.Properties[name]
	if !ok {
		logger.Warn("device %s has no %q property, cannot publish status", dev.ID, name)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	if err := m.registry.PublishProperty(pubCtx, dev.ID, prop.ID, value); err != nil {
		logger.Error("failed to publish %s=%v for device %s, will retry next sweep: %v", name, value, dev.ID, err)
		return
	}
	logger.Info("published %s=%v for device %s", name, value, dev.ID)
}

// ApplyConfig applies a reloaded monitor configuration. The cooldown
// and alert filter take effect immediately; an interval change needs a
// restart.
func (m *Monitor) ApplyConfig(cfg config.MonitorConfig) error {
	if err := validator.ValidateMonitorConfig(cfg); err != nil {
		return err
	}

	m.throttle.SetCooldown(time.Duration(cfg.CooldownMinutes) * time.Minute)

	filter, err := notify.NewFilterFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to reload alert filter: %v", err)
	}
	m.filterMu.Lock()
	if filter != nil {
		m.filter = filter
	} else {
		m.filter = nil
	}
	m.filterMu.Unlock()

	if time.Duration(cfg.IntervalMinutes)*time.Minute != m.interval {
		logger.Info("poll interval change will take effect after restart")
	}
	return nil
}
