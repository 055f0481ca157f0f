package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hellodevops/greeter/internal/migrate"
	"github.com/hellodevops/greeter/internal/model"
	"github.com/hellodevops/greeter/internal/repository"
	"github.com/hellodevops/greeter/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SQLiteURL returns a database URL for a fresh file under the test's temp dir.
func SQLiteURL(t testing.TB) string {
	t.Helper()
	return "sqlite://" + filepath.Join(t.TempDir(), "test.db")
}

// NewTestRepository opens a repository on databaseURL and closes it when
// the test ends. It does not apply migrations.
func NewTestRepository(t testing.TB, databaseURL string) *repository.Repository {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, databaseURL, repository.Options{Logger: DiscardLogger()})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	return repo
}

// NewMigratedRepository opens a repository on databaseURL and applies the
// embedded migrations.
func NewMigratedRepository(t testing.TB, databaseURL string) *repository.Repository {
	t.Helper()

	repo := NewTestRepository(t, databaseURL)

	mgr, err := migrate.New(repo.DB(), migrations.FS, DiscardLogger())
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if _, err := mgr.Up(context.Background()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	return repo
}

// NewSQLiteRepository returns a migrated repository backed by a temp file.
func NewSQLiteRepository(t testing.TB) *repository.Repository {
	t.Helper()
	return NewMigratedRepository(t, SQLiteURL(t))
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates an unsaved user with a unique name.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	return &model.User{Name: UniqueName("user")}
}

// UniqueName generates a unique name for tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
