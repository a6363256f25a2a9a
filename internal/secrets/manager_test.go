package secrets

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestManager_FirstRun_RoundTrip(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	m := NewManager()
	if err := m.Open(ctx, db, "operator-pass"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	stored, err := m.EncryptString("3pardata")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if stored == "3pardata" {
		t.Error("stored value should not equal plaintext")
	}

	plain, err := m.DecryptString(stored)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if plain != "3pardata" {
		t.Errorf("got %q, want %q", plain, "3pardata")
	}
}

func TestManager_EmptyString_PassesThrough(t *testing.T) {
	db := tempDB(t)
	m := NewManager()
	if err := m.Open(context.Background(), db, "pass"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	stored, err := m.EncryptString("")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if stored != "" {
		t.Errorf("empty plaintext should store as empty, got %q", stored)
	}

	plain, err := m.DecryptString("")
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if plain != "" {
		t.Errorf("empty stored value should decrypt to empty, got %q", plain)
	}
}

func TestManager_Reopen_SamePassphrase(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	m1 := NewManager()
	if err := m1.Open(ctx, db, "operator-pass"); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	stored, err := m1.EncryptString("community-secret")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	m1.Close()

	// A second manager over the same database derives the same key.
	m2 := NewManager()
	if err := m2.Open(ctx, db, "operator-pass"); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer m2.Close()

	plain, err := m2.DecryptString(stored)
	if err != nil {
		t.Fatalf("DecryptString after reopen: %v", err)
	}
	if plain != "community-secret" {
		t.Errorf("got %q, want %q", plain, "community-secret")
	}
}

func TestManager_Reopen_WrongPassphrase(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	m1 := NewManager()
	if err := m1.Open(ctx, db, "correct-pass"); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	m1.Close()

	m2 := NewManager()
	err := m2.Open(ctx, db, "wrong-pass")
	if err == nil {
		t.Fatal("expected error for wrong passphrase")
	}
	if !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("expected ErrWrongPassphrase, got: %v", err)
	}
}

func TestManager_Closed_Errors(t *testing.T) {
	m := NewManager()

	if _, err := m.EncryptString("data"); err == nil {
		t.Error("EncryptString on unopened manager should error")
	}
	if _, err := m.DecryptString("ZGF0YQ=="); err == nil {
		t.Error("DecryptString on unopened manager should error")
	}
}

func TestManager_DecryptString_BadBase64(t *testing.T) {
	db := tempDB(t)
	m := NewManager()
	if err := m.Open(context.Background(), db, "pass"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if _, err := m.DecryptString("not-base64!!!"); err == nil {
		t.Error("expected error for malformed stored value")
	}
}
