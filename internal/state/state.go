// Package state persists the last observed status of each monitored network
// so that changes can be detected across polls and process restarts.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/cnmwatch/pkg/models"
)

// ErrInvalidNetworkID is returned for ids that cannot key a record safely.
var ErrInvalidNetworkID = errors.New("invalid network id")

// Store keeps one independent record per network id.
type Store interface {
	// Load returns the last saved status, or nil, nil if none exists.
	Load(ctx context.Context, networkID string) (*models.NetworkStatus, error)
	// Save replaces the record for status.NetworkID.
	Save(ctx context.Context, status models.NetworkStatus) error
	Close() error
}

func validateID(networkID string) error {
	if networkID == "" || networkID == "." || networkID == ".." ||
		strings.ContainsAny(networkID, `/\`) || strings.ContainsRune(networkID, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidNetworkID, networkID)
	}
	return nil
}
