// Package repository provides the data-access layer.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Options tunes the data-access layer. Zero values fall back to defaults.
type Options struct {
	Logger             *slog.Logger
	SlowQueryThreshold time.Duration
}

// Repository provides database access methods.
type Repository struct {
	db      *gorm.DB
	dialect string
}

// New opens the store named by databaseURL and verifies the connection.
func New(ctx context.Context, databaseURL string, opts Options) (*Repository, error) {
	dialector, err := openDialector(databaseURL)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	slow := opts.SlowQueryThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(logger, slow),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db, dialect: db.Dialector.Name()}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}

	// Connection pool settings
	if repo.dialect == DialectSQLite {
		// A single writer avoids SQLITE_BUSY on the file-backed store.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	// Verify connection
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return repo, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm handle.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Dialect reports which SQL dialect the store speaks.
func (r *Repository) Dialect() string {
	return r.dialect
}
