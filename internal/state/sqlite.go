package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/cnmwatch/internal/store"
	"github.com/HerbHall/cnmwatch/pkg/models"
)

// Compile-time interface guard.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps one network_status row per network id.
type SQLiteStore struct {
	db *store.DB
}

// NewSQLiteStore migrates db and returns a store backed by it. The store
// takes ownership of db and closes it on Close.
func NewSQLiteStore(ctx context.Context, db *store.DB) (*SQLiteStore, error) {
	if err := db.Migrate(ctx, "state", migrations()); err != nil {
		return nil, fmt.Errorf("migrate state: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create network_status table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS network_status (
					network_id           TEXT PRIMARY KEY,
					serial_number        TEXT NOT NULL DEFAULT '',
					firewall_status      INTEGER NOT NULL,
					network_name         TEXT NOT NULL DEFAULT '',
					password_expiry_days INTEGER,
					updated_at           DATETIME NOT NULL
				)`)
				return err
			},
		},
	}
}

func (s *SQLiteStore) Load(ctx context.Context, networkID string) (*models.NetworkStatus, error) {
	var st models.NetworkStatus
	var expiry sql.NullInt64
	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT network_id, serial_number, firewall_status, network_name, password_expiry_days
		FROM network_status WHERE network_id = ?`,
		networkID,
	).Scan(&st.NetworkID, &st.SerialNumber, &st.FirewallStatus, &st.NetworkName, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load status %s: %w", networkID, err)
	}
	if expiry.Valid {
		st.PasswordExpiryDays = models.IntPtr(int(expiry.Int64))
	}
	return &st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, status models.NetworkStatus) error {
	if status.NetworkID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidNetworkID)
	}
	var expiry sql.NullInt64
	if status.PasswordExpiryDays != nil {
		expiry = sql.NullInt64{Int64: int64(*status.PasswordExpiryDays), Valid: true}
	}
	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO network_status (
			network_id, serial_number, firewall_status, network_name, password_expiry_days, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(network_id) DO UPDATE SET
			serial_number = excluded.serial_number,
			firewall_status = excluded.firewall_status,
			network_name = excluded.network_name,
			password_expiry_days = excluded.password_expiry_days,
			updated_at = excluded.updated_at`,
		status.NetworkID, status.SerialNumber, status.FirewallStatus, status.NetworkName,
		expiry, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save status %s: %w", status.NetworkID, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
