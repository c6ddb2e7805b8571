package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type kvEntry struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value []byte `gorm:"column:value"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQLitePartition backs the durable tier with a single-table SQLite
// database. It survives browser restarts and is only ever cleared by an
// explicit logout or a corruption self-heal.
type SQLitePartition struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the durable database at path.
// ":memory:" is accepted for tests.
func OpenSQLite(path string) (*SQLitePartition, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrUnavailable, err)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}
	return &SQLitePartition{db: db}, nil
}

// NewSQLitePartition wraps an already-open gorm handle. Callers own the
// migration in that case.
func NewSQLitePartition(db *gorm.DB) *SQLitePartition {
	return &SQLitePartition{db: db}
}

func (p *SQLitePartition) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry kvEntry
	err := p.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return entry.Value, true, nil
}

func (p *SQLitePartition) Set(ctx context.Context, key string, value []byte) error {
	entry := kvEntry{Key: key, Value: value}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (p *SQLitePartition) Remove(ctx context.Context, key string) error {
	err := p.db.WithContext(ctx).Delete(&kvEntry{}, "key = ?", key).Error
	if err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Clear wipes the whole table, including the installation identifier. Logout
// uses the narrower per-key removal in the facade instead.
func (p *SQLitePartition) Clear(ctx context.Context) error {
	err := p.db.WithContext(ctx).Exec("DELETE FROM kv_entries").Error
	if err != nil {
		return fmt.Errorf("%w: clear: %v", ErrUnavailable, err)
	}
	return nil
}
