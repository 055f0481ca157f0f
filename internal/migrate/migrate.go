// Package migrate provides the schema-migration manager.
// Migrations are versioned SQL files applied in order and recorded in the
// schema_migrations table of the target database.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// ErrIrreversible is returned by Down when a migration has no down file.
var ErrIrreversible = errors.New("migration is irreversible")

// SchemaMigration records one applied migration.
type SchemaMigration struct {
	Version   uint      `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName pins the bookkeeping table name.
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// Status describes a known migration and whether it has been applied.
type Status struct {
	Version   uint       `json:"version"`
	Name      string     `json:"name"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// Manager applies and reverts migrations against one database.
type Manager struct {
	db         *gorm.DB
	migrations []Migration
	logger     *slog.Logger
}

// New builds a Manager for db, loading the migrations that match the
// database's dialect from fsys.
func New(db *gorm.DB, fsys fs.FS, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	migrations, err := Load(fsys, db.Dialector.Name())
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:         db,
		migrations: migrations,
		logger:     logger.With(slog.String("component", "migrate")),
	}, nil
}

// Migrations returns the known migrations in ascending version order.
func (m *Manager) Migrations() []Migration {
	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	return out
}

// Up applies every pending migration and returns how many were applied.
//
// Each migration runs in a transaction together with its bookkeeping row.
// MySQL commits DDL implicitly, so there the transaction only guards the
// row; MySQL migration files therefore hold exactly one statement each.
func (m *Manager) Up(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx, true)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		start := time.Now()
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := execAll(tx, mig.Up); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   mig.Version,
				Name:      mig.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return count, fmt.Errorf("apply migration %d_%s: %w", mig.Version, mig.Name, err)
		}

		m.logger.Info("migration applied",
			slog.Uint64("version", uint64(mig.Version)),
			slog.String("name", mig.Name),
			slog.Duration("duration", time.Since(start)),
		)
		count++
	}

	return count, nil
}

// Down reverts the newest steps applied migrations. steps <= 0 reverts one.
func (m *Manager) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}

	applied, err := m.applied(ctx, true)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(m.migrations) - 1; i >= 0 && count < steps; i-- {
		mig := m.migrations[i]
		if _, ok := applied[mig.Version]; !ok {
			continue
		}
		if !mig.HasDown() {
			return count, fmt.Errorf("%w: %d_%s", ErrIrreversible, mig.Version, mig.Name)
		}

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := execAll(tx, mig.Down); err != nil {
				return err
			}
			return tx.Delete(&SchemaMigration{}, mig.Version).Error
		})
		if err != nil {
			return count, fmt.Errorf("revert migration %d_%s: %w", mig.Version, mig.Name, err)
		}

		m.logger.Info("migration reverted",
			slog.Uint64("version", uint64(mig.Version)),
			slog.String("name", mig.Name),
		)
		count++
	}

	return count, nil
}

// Version returns the highest applied migration version, or 0.
func (m *Manager) Version(ctx context.Context) (uint, error) {
	applied, err := m.applied(ctx, false)
	if err != nil {
		return 0, err
	}

	var version uint
	for v := range applied {
		if v > version {
			version = v
		}
	}
	return version, nil
}

// Pending returns how many known migrations have not been applied.
func (m *Manager) Pending(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx, false)
	if err != nil {
		return 0, err
	}

	pending := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; !ok {
			pending++
		}
	}
	return pending, nil
}

// Status lists every known migration with its applied state.
func (m *Manager) Status(ctx context.Context) ([]Status, error) {
	applied, err := m.applied(ctx, false)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(m.migrations))
	for _, mig := range m.migrations {
		s := Status{Version: mig.Version, Name: mig.Name}
		if rec, ok := applied[mig.Version]; ok {
			at := rec.AppliedAt
			s.Applied = true
			s.AppliedAt = &at
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// applied returns the bookkeeping rows by version. A missing table reads as
// empty unless create is set, so read-only queries leave the schema alone.
func (m *Manager) applied(ctx context.Context, create bool) (map[uint]SchemaMigration, error) {
	db := m.db.WithContext(ctx)

	if !db.Migrator().HasTable(&SchemaMigration{}) {
		if !create {
			return map[uint]SchemaMigration{}, nil
		}
		if err := db.Migrator().CreateTable(&SchemaMigration{}); err != nil {
			return nil, fmt.Errorf("create schema_migrations: %w", err)
		}
	}

	var rows []SchemaMigration
	if err := db.Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}

	applied := make(map[uint]SchemaMigration, len(rows))
	for _, row := range rows {
		applied[row.Version] = row
	}
	return applied, nil
}

func execAll(tx *gorm.DB, body string) error {
	for _, stmt := range splitStatements(body) {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
