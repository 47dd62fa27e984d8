package xtest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/looplj/todohub/internal/server/db"
)

// NewDB opens a migrated SQLite database private to t.
func NewDB(t testing.TB) *db.Client {
	t.Helper()

	path := filepath.Join(t.TempDir(), "todohub.db")

	client, err := db.NewClient(db.Config{
		Dialect: "sqlite3",
		DSN:     fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
