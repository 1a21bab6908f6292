// Package monitor runs the poll loop: fetch every configured network,
// forward each status to change detection, then sleep for an interval
// chosen by whether any firewall was found offline.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/cnmwatch/internal/metrics"
	"github.com/HerbHall/cnmwatch/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoNetworks is returned by New when no network ids are configured.
var ErrNoNetworks = errors.New("no networks configured")

// Default poll intervals.
const (
	DefaultNormalInterval   = 60 * time.Minute
	DefaultDegradedInterval = 5 * time.Minute
)

// Fetcher retrieves the current status of one network.
type Fetcher interface {
	FetchStatus(ctx context.Context, networkID string) (*models.NetworkStatus, error)
}

// StatusUpdater receives every successfully fetched status.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, status models.NetworkStatus) error
}

// ErrorNotifier is told about cycles that ended early.
type ErrorNotifier interface {
	NotifyError(ctx context.Context, err error)
}

// Config configures a Monitor.
type Config struct {
	NetworkIDs       []string
	NormalInterval   time.Duration
	DegradedInterval time.Duration
}

// CycleResult describes one poll cycle.
type CycleResult struct {
	ID       string
	Started  time.Time
	Finished time.Time
	// Checked counts networks fetched and forwarded before the cycle ended.
	Checked int
	// Degraded is true if any checked firewall was not online.
	Degraded bool
	Err      error
}

// Monitor polls networks sequentially, one cycle at a time.
type Monitor struct {
	cfg     Config
	fetcher Fetcher
	updater StatusUpdater
	errs    ErrorNotifier
	logger  *zap.Logger

	mu   sync.RWMutex
	last *CycleResult
}

// New creates a Monitor. Zero intervals take the defaults.
func New(cfg Config, fetcher Fetcher, updater StatusUpdater, errs ErrorNotifier, logger *zap.Logger) (*Monitor, error) {
	if len(cfg.NetworkIDs) == 0 {
		return nil, ErrNoNetworks
	}
	if fetcher == nil || updater == nil || errs == nil {
		return nil, errors.New("monitor: fetcher, updater and error notifier are required")
	}
	if cfg.NormalInterval <= 0 {
		cfg.NormalInterval = DefaultNormalInterval
	}
	if cfg.DegradedInterval <= 0 {
		cfg.DegradedInterval = DefaultDegradedInterval
	}
	ids := make([]string, len(cfg.NetworkIDs))
	copy(ids, cfg.NetworkIDs)
	cfg.NetworkIDs = ids

	return &Monitor{
		cfg:     cfg,
		fetcher: fetcher,
		updater: updater,
		errs:    errs,
		logger:  logger,
	}, nil
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
// Returns nil on cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitoring started",
		zap.Strings("networks", m.cfg.NetworkIDs),
		zap.Duration("normal_interval", m.cfg.NormalInterval),
		zap.Duration("degraded_interval", m.cfg.DegradedInterval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitoring stopped")
			return nil
		case <-timer.C:
		}

		result := m.RunCycle(ctx)
		if ctx.Err() != nil {
			m.logger.Info("monitoring stopped")
			return nil
		}

		interval := m.NextInterval(result.Degraded)
		metrics.PollInterval.Set(interval.Seconds())
		m.logger.Info("next poll scheduled",
			zap.String("cycle_id", result.ID),
			zap.Bool("degraded", result.Degraded),
			zap.Duration("interval", interval),
		)
		timer.Reset(interval)
	}
}

// RunCycle polls every network in order. The first error ends the cycle;
// it is logged and sent to the error notifier unless ctx was cancelled.
func (m *Monitor) RunCycle(ctx context.Context) CycleResult {
	result := CycleResult{ID: uuid.NewString(), Started: time.Now()}
	log := m.logger.With(zap.String("cycle_id", result.ID))
	log.Debug("poll cycle started")

	for _, id := range m.cfg.NetworkIDs {
		if err := m.checkNetwork(ctx, log, id, &result); err != nil {
			result.Err = err
			break
		}
	}

	result.Finished = time.Now()
	metrics.PollCycles.WithLabelValues(metrics.Result(result.Err)).Inc()

	switch {
	case result.Err != nil && ctx.Err() != nil:
		log.Info("poll cycle interrupted by shutdown", zap.Error(result.Err))
	case result.Err != nil:
		log.Error("error monitoring portal",
			zap.Int("checked", result.Checked),
			zap.Error(result.Err),
		)
		m.errs.NotifyError(ctx, result.Err)
	default:
		log.Info("poll cycle complete",
			zap.Int("checked", result.Checked),
			zap.Bool("degraded", result.Degraded),
			zap.Duration("duration", result.Finished.Sub(result.Started)),
		)
	}

	m.mu.Lock()
	m.last = &result
	m.mu.Unlock()
	return result
}

func (m *Monitor) checkNetwork(ctx context.Context, log *zap.Logger, id string, result *CycleResult) error {
	status, err := m.fetcher.FetchStatus(ctx, id)
	if err != nil {
		return err
	}

	log.Info("firewall status",
		zap.String("network_id", status.NetworkID),
		zap.String("network_name", status.NetworkName),
		zap.Int("firewall_status", status.FirewallStatus),
	)
	online := 0.0
	if status.Online() {
		online = 1
	} else {
		result.Degraded = true
	}
	metrics.NetworkOnline.WithLabelValues(id).Set(online)

	if err := m.updater.UpdateStatus(ctx, *status); err != nil {
		return fmt.Errorf("update status for %s: %w", id, err)
	}
	result.Checked++
	return nil
}

// NextInterval returns the sleep before the next cycle.
func (m *Monitor) NextInterval(degraded bool) time.Duration {
	if degraded {
		return m.cfg.DegradedInterval
	}
	return m.cfg.NormalInterval
}

// LastCycle returns the most recent completed cycle, or false if none has
// finished yet.
func (m *Monitor) LastCycle() (CycleResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return CycleResult{}, false
	}
	return *m.last, true
}

// Ready reports an error until the first cycle has completed.
func (m *Monitor) Ready() error {
	if _, ok := m.LastCycle(); !ok {
		return errors.New("no poll cycle completed yet")
	}
	return nil
}
