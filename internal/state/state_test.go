package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HerbHall/cnmwatch/internal/store"
	"github.com/HerbHall/cnmwatch/pkg/models"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := NewSQLiteStore(context.Background(), db)
	if err != nil {
		db.Close()
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("file", func(t *testing.T) {
		fn(t, NewFileStore(filepath.Join(t.TempDir(), "data")))
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newSQLiteStore(t))
	})
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		got, err := s.Load(context.Background(), "Q2XX-NEVER-SEEN")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got != nil {
			t.Errorf("Load = %+v, want nil", got)
		}
	})
}

func TestStore_SaveAndLoad(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		want := models.NetworkStatus{
			NetworkID:          "Q2XX-0001",
			SerialNumber:       "Q2XX-0001",
			FirewallStatus:     3,
			NetworkName:        "Stake Center",
			PasswordExpiryDays: models.IntPtr(2),
		}
		if err := s.Save(ctx, want); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := s.Load(ctx, want.NetworkID)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got == nil {
			t.Fatal("Load returned nil after Save")
		}
		if got.NetworkID != want.NetworkID || got.FirewallStatus != want.FirewallStatus ||
			got.NetworkName != want.NetworkName || got.SerialNumber != want.SerialNumber {
			t.Errorf("Load = %+v, want %+v", got, want)
		}
		if !models.SameExpiry(got.PasswordExpiryDays, want.PasswordExpiryDays) {
			t.Errorf("PasswordExpiryDays = %v, want 2", got.PasswordExpiryDays)
		}
	})
}

func TestStore_SaveOverwritesAndKeepsNilExpiry(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := models.NetworkStatus{NetworkID: "n1", FirewallStatus: 3, NetworkName: "A", PasswordExpiryDays: models.IntPtr(5)}
		second := models.NetworkStatus{NetworkID: "n1", FirewallStatus: 1, NetworkName: "A"}

		if err := s.Save(ctx, first); err != nil {
			t.Fatalf("Save first: %v", err)
		}
		if err := s.Save(ctx, second); err != nil {
			t.Fatalf("Save second: %v", err)
		}

		got, err := s.Load(ctx, "n1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.FirewallStatus != 1 {
			t.Errorf("FirewallStatus = %d, want 1", got.FirewallStatus)
		}
		if got.PasswordExpiryDays != nil {
			t.Errorf("PasswordExpiryDays = %d, want nil", *got.PasswordExpiryDays)
		}
	})
}

func TestStore_RecordsAreIndependent(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"a", "b"} {
			if err := s.Save(ctx, models.NetworkStatus{NetworkID: id, FirewallStatus: 3, NetworkName: id}); err != nil {
				t.Fatalf("Save %s: %v", id, err)
			}
		}
		got, err := s.Load(ctx, "b")
		if err != nil || got == nil || got.NetworkName != "b" {
			t.Fatalf("Load b = %+v, %v", got, err)
		}
	})
}

func TestFileStore_CorruptRecordIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	if err := s.Save(ctx, models.NetworkStatus{NetworkID: "good", FirewallStatus: 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(s.Path("bad"), []byte("{truncated"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	if _, err := s.Load(ctx, "bad"); err == nil {
		t.Error("expected decode error for corrupt record")
	}
	got, err := s.Load(ctx, "good")
	if err != nil || got == nil {
		t.Fatalf("Load good = %+v, %v", got, err)
	}
}

func TestFileStore_WritesOneFilePerNetwork(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := NewFileStore(dir)
	if err := s.Save(context.Background(), models.NetworkStatus{NetworkID: "Q2XX-0042", FirewallStatus: 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "Q2XX-0042.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want [Q2XX-0042.json]", names)
	}
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, id := range []string{"", "..", "../escape", `a\b`} {
		if err := s.Save(context.Background(), models.NetworkStatus{NetworkID: id}); !errors.Is(err, ErrInvalidNetworkID) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidNetworkID", id, err)
		}
	}
}
