package inventory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/merliyatf/delfin/internal/secrets"
	"github.com/merliyatf/delfin/internal/store"
	"github.com/merliyatf/delfin/pkg/models"
)

func newTestStore(t *testing.T) *StorageStore {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "inventory.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.Migrate(ctx, "inventory", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mgr := secrets.NewManager()
	if err := mgr.Open(ctx, s.DB(), "test-passphrase"); err != nil {
		t.Fatalf("open secrets: %v", err)
	}
	t.Cleanup(mgr.Close)

	return NewStorageStore(s.DB(), mgr)
}

func testStorage(id string) *models.Storage {
	return &models.Storage{
		ID:           id,
		Name:         "array-" + id,
		Vendor:       "hpe",
		Model:        "3par",
		SerialNumber: "CZ3718",
		SSHHost:      "10.0.0.5",
		SSHPort:      22,
		SSHUsername:  "3paradm",
		SSHPassword:  "3pardata",
		RESTHost:     "10.0.0.5",
		RESTPort:     8080,
		RESTUsername: "3paradm",
		RESTPassword: "3pardata",
	}
}

func TestStorageStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testStorage("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing storage")
	}
	if got.SerialNumber != "CZ3718" {
		t.Errorf("serial = %q, want CZ3718", got.SerialNumber)
	}
	if got.SSHPassword != "3pardata" || got.RESTPassword != "3pardata" {
		t.Error("credentials should round-trip through the cipher")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on create")
	}
}

func TestStorageStore_GetAbsent(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %+v, want nil", got)
	}
}

func TestStorageStore_CredentialsEncryptedAtRest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testStorage("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT ssh_password FROM storages WHERE id = ?`, "s1").Scan(&stored)
	if err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if stored == "3pardata" {
		t.Error("ssh_password stored in plaintext")
	}
}

func TestStorageStore_ListOmitsCredentials(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"s2", "s1"} {
		if err := s.Create(ctx, testStorage(id)); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	// Ordered by name.
	if list[0].ID != "s1" || list[1].ID != "s2" {
		t.Errorf("order = [%s %s], want [s1 s2]", list[0].ID, list[1].ID)
	}
	for _, st := range list {
		if st.SSHPassword != "" || st.RESTPassword != "" {
			t.Errorf("List leaked credentials for %s", st.ID)
		}
	}
}

func TestStorageStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testStorage("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deleted, err := s.Delete(ctx, "s1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("Delete(existing) = false, want true")
	}

	deleted, err = s.Delete(ctx, "s1")
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if deleted {
		t.Error("Delete(absent) = true, want false")
	}
}
