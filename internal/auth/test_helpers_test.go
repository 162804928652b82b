package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/secretgate/internal/infrastructure/database"
	_ "github.com/nerrad567/secretgate/migrations" // registers embedded schema
)

// testDB creates a temporary SQLite database with the full schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	db, err := database.Open(context.Background(), database.Config{
		Driver:      database.DialectSQLite,
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}

	return db
}

// testVerifier returns a Verifier over a fresh database with a fast bcrypt cost.
// testProvider is the provider name used for federated test accounts.
const testProvider = "google"

func testVerifier(t *testing.T) (*Verifier, *SQLAccountRepository) {
	t.Helper()

	repo := NewAccountRepository(testDB(t))
	return NewVerifier(repo, BcryptHasher{Cost: bcrypt.MinCost}, 5*time.Second), repo
}

// seedTestAccount registers a local account and returns it.
func seedTestAccount(t *testing.T, v *Verifier, identifier, secret string) *Account {
	t.Helper()

	account, err := v.Register(t.Context(), identifier, secret)
	if err != nil {
		t.Fatalf("registering test account %s: %v", identifier, err)
	}
	return account
}
