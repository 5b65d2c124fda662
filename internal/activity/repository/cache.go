package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
)

// GetCacheRecord returns the cached body for the key, or ErrCacheMiss when
// absent or expired. Expired rows are left for the sweep to collect.
func (r *repository) GetCacheRecord(ctx context.Context, key string) ([]byte, error) {
	var record activityModel.CacheRecord
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, activityModel.ErrCacheMiss
		}
		return nil, err
	}
	if record.Expired(time.Now().UTC()) {
		return nil, activityModel.ErrCacheMiss
	}
	return record.Body, nil
}

// PutCacheRecord upserts a cache record with the given TTL.
func (r *repository) PutCacheRecord(ctx context.Context, key string, body []byte, ttlSec int) error {
	record := &activityModel.CacheRecord{
		Key:       key,
		Body:      body,
		CreatedAt: time.Now().UTC(),
		TTLSec:    ttlSec,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
}

// PurgeCacheRecords deletes all cache records.
func (r *repository) PurgeCacheRecords(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&activityModel.CacheRecord{}).Error
}
