package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/wnt/lbscout/internal/metrics"
	"github.com/wnt/lbscout/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is a Store backed by the cache_entries table
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a migrated database handle
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (g *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry models.CacheEntry
	err := g.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.RecordCacheOperation("postgres", "get", "miss")
			return "", false, nil
		}
		metrics.RecordCacheOperation("postgres", "get", "failed")
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	metrics.RecordCacheOperation("postgres", "get", "success")
	return entry.Value, true, nil
}

func (g *GormStore) Set(ctx context.Context, key, value string) error {
	entry := models.CacheEntry{Key: key, Value: value}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		metrics.RecordCacheOperation("postgres", "set", "failed")
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	metrics.RecordCacheOperation("postgres", "set", "success")
	return nil
}

func (g *GormStore) Remove(ctx context.Context, key string) error {
	err := g.db.WithContext(ctx).Unscoped().Where("key = ?", key).Delete(&models.CacheEntry{}).Error
	if err != nil {
		metrics.RecordCacheOperation("postgres", "remove", "failed")
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}

	metrics.RecordCacheOperation("postgres", "remove", "success")
	return nil
}
