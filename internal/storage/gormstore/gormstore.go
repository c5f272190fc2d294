// Package gormstore persists conjunction events through GORM, on SQLite or
// PostgreSQL.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/signalsfoundry/orbital-guard/internal/config"
	"github.com/signalsfoundry/orbital-guard/internal/storage"
	"github.com/signalsfoundry/orbital-guard/model"
)

// conjunctionRow is the table layout.
type conjunctionRow struct {
	ID              string `gorm:"primaryKey;size:36"`
	FocusKey        string `gorm:"index:idx_conj_focus_recorded,priority:1;size:128"`
	FocusName       string `gorm:"size:128"`
	ObjectKey       string `gorm:"size:128"`
	ObjectName      string `gorm:"size:128"`
	ObjectKind      string `gorm:"size:16"`
	DistanceKm      float64
	Severity        string `gorm:"size:16"`
	TimeToCollision *float64
	Collision       bool
	SimTime         time.Time
	RecordedAt      time.Time `gorm:"index:idx_conj_focus_recorded,priority:2"`
}

func (conjunctionRow) TableName() string { return "conjunction_events" }

func toRow(ev storage.ConjunctionEvent) conjunctionRow {
	return conjunctionRow{
		ID:              ev.ID,
		FocusKey:        ev.FocusKey,
		FocusName:       ev.FocusName,
		ObjectKey:       ev.ObjectKey,
		ObjectName:      ev.ObjectName,
		ObjectKind:      string(ev.ObjectKind),
		DistanceKm:      ev.DistanceKm,
		Severity:        string(ev.Severity),
		TimeToCollision: ev.TimeToCollision,
		Collision:       ev.Collision,
		SimTime:         ev.SimTime.UTC(),
		RecordedAt:      ev.RecordedAt.UTC(),
	}
}

func (r conjunctionRow) event() storage.ConjunctionEvent {
	return storage.ConjunctionEvent{
		ID:              r.ID,
		FocusKey:        r.FocusKey,
		FocusName:       r.FocusName,
		ObjectKey:       r.ObjectKey,
		ObjectName:      r.ObjectName,
		ObjectKind:      model.ObjectKind(r.ObjectKind),
		DistanceKm:      r.DistanceKm,
		Severity:        model.Severity(r.Severity),
		TimeToCollision: r.TimeToCollision,
		Collision:       r.Collision,
		SimTime:         r.SimTime.UTC(),
		RecordedAt:      r.RecordedAt.UTC(),
	}
}

// Store is a GORM-backed storage.Recorder.
type Store struct {
	db *gorm.DB
}

var _ storage.Recorder = (*Store)(nil)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// Open wraps an opened database and migrates the schema.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&conjunctionRow{}); err != nil {
		return nil, fmt.Errorf("migrate conjunction_events: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenSQLite opens (or creates) a SQLite database at path. ":memory:" is
// accepted.
func OpenSQLite(path string) (*Store, error) {
	if path == "" {
		path = "orbital-guard.db"
	}
	cfg := gormConfig()
	cfg.PrepareStmt = true
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	sqlDB.SetMaxOpenConns(1)
	return Open(db)
}

// PostgresDSN builds a libpq connection string.
func PostgresDSN(cfg config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, sslMode)
}

// OpenPostgres connects to PostgreSQL.
func OpenPostgres(cfg config.PostgresConfig) (*Store, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres %s:%s/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return Open(db)
}

// Record inserts events in one batch.
func (s *Store) Record(ctx context.Context, events ...storage.ConjunctionEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]conjunctionRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, toRow(ev))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("insert conjunction events: %w", err)
	}
	return nil
}

// List returns matching events, newest first.
func (s *Store) List(ctx context.Context, q storage.Query) ([]storage.ConjunctionEvent, error) {
	var rows []conjunctionRow
	tx := s.db.WithContext(ctx).Model(&conjunctionRow{})
	if q.FocusKey != "" {
		tx = tx.Where("focus_key = ?", q.FocusKey)
	}
	if err := tx.Order("recorded_at DESC").Order("sim_time DESC").Limit(q.EffectiveLimit()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list conjunction events: %w", err)
	}
	out := make([]storage.ConjunctionEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.event())
	}
	return out, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
