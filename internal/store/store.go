// Package store persists mob snapshots through gorm so a world can resume
// after a restart. SQLite (pure Go) and Postgres are supported.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"blockworld/mobs/internal/ai"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// MemoryDSN selects a private in-memory SQLite database.
const MemoryDSN = ":memory:"

var (
	// ErrNotFound is returned when no snapshot exists for a world.
	ErrNotFound = errors.New("store: world not found")
	// ErrDisabled is returned by Open for the "none" driver.
	ErrDisabled = errors.New("store: persistence disabled")
)

// Config selects the database backend.
type Config struct {
	Driver string
	DSN    string
}

// WorldRecord tracks the tick of the latest save for a world.
type WorldRecord struct {
	WorldID   string `gorm:"primaryKey;size:128"`
	Tick      uint64
	MobCount  int
	UpdatedAt time.Time
}

// MobRecord stores one serialized mob.
type MobRecord struct {
	WorldID   string `gorm:"primaryKey;size:128"`
	MobID     string `gorm:"primaryKey;size:128"`
	Species   string `gorm:"size:64;index"`
	Tick      uint64
	State     datatypes.JSON
	UpdatedAt time.Time
}

// Store wraps the gorm connection.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured backend and migrates the schema.
func Open(cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	gcfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverNone:
		return nil, ErrDisabled
	case "", DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" || dsn == MemoryDSN {
			dsn = "file::memory:"
		}
		db, err = gorm.Open(sqlite.Open(dsn), gcfg)
		if err == nil {
			// In-memory databases are per connection.
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store: open: postgres requires a dsn")
		}
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gcfg)
	default:
		return nil, fmt.Errorf("store: open: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.AutoMigrate(&WorldRecord{}, &MobRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return sqlDB.Close()
}

// SaveSnapshots replaces the stored state of a world: present mobs are
// upserted and records of mobs that no longer exist are deleted.
func (s *Store) SaveSnapshots(ctx context.Context, worldID string, tick uint64, snapshots []ai.Snapshot) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if worldID == "" {
		return fmt.Errorf("store: save: empty world id")
	}
	records := make([]MobRecord, 0, len(snapshots))
	ids := make([]string, 0, len(snapshots))
	now := time.Now().UTC()
	for _, snap := range snapshots {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("store: save %s: %w", snap.ID, err)
		}
		records = append(records, MobRecord{
			WorldID:   worldID,
			MobID:     snap.ID,
			Species:   snap.Species,
			Tick:      tick,
			State:     datatypes.JSON(data),
			UpdatedAt: now,
		})
		ids = append(ids, snap.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&WorldRecord{
			WorldID:   worldID,
			Tick:      tick,
			MobCount:  len(records),
			UpdatedAt: now,
		}).Error; err != nil {
			return err
		}
		stale := tx.Where("world_id = ?", worldID)
		if len(ids) > 0 {
			stale = stale.Where("mob_id NOT IN ?", ids)
		}
		if err := stale.Delete(&MobRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "world_id"}, {Name: "mob_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"species", "tick", "state", "updated_at"}),
		}).CreateInBatches(records, 500).Error
	})
	if err != nil {
		return fmt.Errorf("store: save %s: %w", worldID, err)
	}
	return nil
}

// LoadSnapshots returns the last saved tick of a world and its mobs ordered
// by id.
func (s *Store) LoadSnapshots(ctx context.Context, worldID string) (uint64, []ai.Snapshot, error) {
	if s == nil || s.db == nil {
		return 0, nil, ErrDisabled
	}
	db := s.db.WithContext(ctx)
	var w WorldRecord
	if err := db.Where("world_id = ?", worldID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, fmt.Errorf("store: load %s: %w", worldID, err)
	}
	var records []MobRecord
	if err := db.Where("world_id = ?", worldID).Order("mob_id").Find(&records).Error; err != nil {
		return 0, nil, fmt.Errorf("store: load %s: %w", worldID, err)
	}
	out := make([]ai.Snapshot, 0, len(records))
	for _, rec := range records {
		var snap ai.Snapshot
		if err := json.Unmarshal(rec.State, &snap); err != nil {
			return 0, nil, fmt.Errorf("store: load %s/%s: %w", worldID, rec.MobID, err)
		}
		out = append(out, snap)
	}
	return w.Tick, out, nil
}

// DeleteWorld removes every record of a world.
func (s *Store) DeleteWorld(ctx context.Context, worldID string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("world_id = ?", worldID).Delete(&MobRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("world_id = ?", worldID).Delete(&WorldRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", worldID, err)
	}
	return nil
}
