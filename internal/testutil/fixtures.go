// Package testutil builds NetworkStatus fixtures for tests.
package testutil

import (
	"github.com/HerbHall/cnmwatch/pkg/models"
)

// NewNetworkStatus returns an online network with no SSID expiry.
// Override individual fields with options.
func NewNetworkStatus(opts ...func(*models.NetworkStatus)) models.NetworkStatus {
	s := models.NetworkStatus{
		NetworkID:      "Q2XX-TEST-0001",
		SerialNumber:   "Q2XX-TEST-0001",
		FirewallStatus: models.FirewallStatusOnline,
		NetworkName:    "Stake Center",
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithNetworkID sets both the network id and the serial number.
func WithNetworkID(id string) func(*models.NetworkStatus) {
	return func(s *models.NetworkStatus) {
		s.NetworkID = id
		s.SerialNumber = id
	}
}

// WithFirewallStatus sets the firewall status code.
func WithFirewallStatus(code int) func(*models.NetworkStatus) {
	return func(s *models.NetworkStatus) { s.FirewallStatus = code }
}

// WithName sets the network display name.
func WithName(name string) func(*models.NetworkStatus) {
	return func(s *models.NetworkStatus) { s.NetworkName = name }
}

// WithExpiry sets the SSID password expiry in days.
func WithExpiry(days int) func(*models.NetworkStatus) {
	return func(s *models.NetworkStatus) { s.PasswordExpiryDays = &days }
}
