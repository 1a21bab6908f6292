// Package notify detects status changes between polls and delivers the
// resulting notifications by email.
package notify

import (
	"context"

	"github.com/HerbHall/cnmwatch/pkg/models"
)

// Kind identifies a notification type.
type Kind string

const (
	KindOffline         Kind = "offline"
	KindOnline          Kind = "online"
	KindPasswordExpiry  Kind = "password_expiring"
	KindMonitoringError Kind = "error"
)

// Sink receives the four notification types. Implementations return
// delivery errors; callers decide whether they matter.
type Sink interface {
	NotifyOffline(ctx context.Context, status models.NetworkStatus) error
	NotifyOnline(ctx context.Context, status models.NetworkStatus) error
	NotifyPasswordExpiring(ctx context.Context, status models.NetworkStatus) error
	NotifyError(ctx context.Context, err error) error
}
