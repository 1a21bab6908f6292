package notify

import (
	"context"
	"fmt"

	"github.com/HerbHall/cnmwatch/pkg/models"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Sink = (*Mailer)(nil)

// Transport delivers a composed Message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer composes notification messages and hands them to a Transport.
type Mailer struct {
	transport Transport
	ssid      string
	logger    *zap.Logger
}

// NewMailer creates a Mailer. ssid names the wireless network in password
// expiry messages.
func NewMailer(transport Transport, ssid string, logger *zap.Logger) *Mailer {
	return &Mailer{transport: transport, ssid: ssid, logger: logger}
}

// NotifyOffline reports a firewall that left the online state.
func (m *Mailer) NotifyOffline(ctx context.Context, status models.NetworkStatus) error {
	return m.send(ctx, KindOffline, offlineMessage(status))
}

// NotifyOnline reports a firewall that returned to the online state.
func (m *Mailer) NotifyOnline(ctx context.Context, status models.NetworkStatus) error {
	return m.send(ctx, KindOnline, onlineMessage(status))
}

// NotifyPasswordExpiring reports an SSID password at or near expiry.
func (m *Mailer) NotifyPasswordExpiring(ctx context.Context, status models.NetworkStatus) error {
	if status.PasswordExpiryDays == nil {
		return fmt.Errorf("network %s has no password expiry", status.NetworkID)
	}
	return m.send(ctx, KindPasswordExpiry, passwordExpiringMessage(status, m.ssid))
}

// NotifyError reports a failed poll cycle.
func (m *Mailer) NotifyError(ctx context.Context, err error) error {
	return m.send(ctx, KindMonitoringError, errorMessage(err))
}

func (m *Mailer) send(ctx context.Context, kind Kind, msg Message) error {
	if err := m.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s notification: %w", kind, err)
	}
	m.logger.Info("sent notification",
		zap.String("kind", string(kind)),
		zap.String("subject", msg.Subject),
	)
	return nil
}
