package notify

import (
	"context"

	"github.com/HerbHall/cnmwatch/internal/metrics"
	"github.com/HerbHall/cnmwatch/internal/state"
	"github.com/HerbHall/cnmwatch/pkg/models"
	"go.uber.org/zap"
)

// PasswordExpiryNotifyDays is the threshold at or below which a change in
// the SSID password expiry is reported.
const PasswordExpiryNotifyDays = 3

// Dispatcher compares each new status with the last saved one and sends a
// notification for every transition. Persistence and delivery failures are
// logged and never returned.
type Dispatcher struct {
	store  state.Store
	sink   Sink
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store state.Store, sink Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, sink: sink, logger: logger}
}

// UpdateStatus records status as the new baseline and notifies on firewall
// and password expiry transitions. The first observation of a network only
// establishes the baseline. The returned error is non-nil only when ctx is
// already done.
func (d *Dispatcher) UpdateStatus(ctx context.Context, status models.NetworkStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := d.logger.With(zap.String("network_id", status.NetworkID))

	previous, err := d.store.Load(ctx, status.NetworkID)
	if err != nil {
		log.Warn("failed to load last status, treating as first observation", zap.Error(err))
		previous = nil
	}
	if err := d.store.Save(ctx, status); err != nil {
		log.Error("failed to save status", zap.Error(err))
	}

	if previous == nil {
		log.Debug("no previous status, baseline recorded")
		return nil
	}

	if status.FirewallStatus != previous.FirewallStatus {
		if status.Online() {
			d.deliver(log, KindOnline, func() error { return d.sink.NotifyOnline(ctx, status) })
		} else {
			d.deliver(log, KindOffline, func() error { return d.sink.NotifyOffline(ctx, status) })
		}
	}

	if !models.SameExpiry(status.PasswordExpiryDays, previous.PasswordExpiryDays) &&
		status.PasswordExpiryDays != nil && *status.PasswordExpiryDays <= PasswordExpiryNotifyDays {
		d.deliver(log, KindPasswordExpiry, func() error { return d.sink.NotifyPasswordExpiring(ctx, status) })
	}

	return nil
}

// NotifyError forwards a cycle failure to the sink, logging delivery errors.
func (d *Dispatcher) NotifyError(ctx context.Context, cause error) {
	d.deliver(d.logger, KindMonitoringError, func() error { return d.sink.NotifyError(ctx, cause) })
}

func (d *Dispatcher) deliver(log *zap.Logger, kind Kind, send func() error) {
	err := send()
	metrics.Notifications.WithLabelValues(string(kind), metrics.Result(err)).Inc()
	if err != nil {
		log.Error("notification delivery failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
