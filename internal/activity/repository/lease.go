package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
)

// AcquireLease writes a lease for the job if none exists or the existing one
// has expired. Both paths are conditional writes, so concurrent acquirers
// cannot both succeed: the insert loses on a primary-key conflict and the
// takeover loses when the expiry predicate no longer matches.
func (r *repository) AcquireLease(ctx context.Context, id, owner string, ttl time.Duration) error {
	now := time.Now().UTC()
	lease := &activityModel.SyncLease{
		ID:        id,
		LockedBy:  owner,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing activityModel.SyncLease
		err := tx.Where("id = ?", id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if createErr := tx.Create(lease).Error; createErr != nil {
				if isDuplicateError(createErr) {
					return activityModel.ErrLeaseHeld
				}
				return fmt.Errorf("creating sync lease: %w", createErr)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading sync lease: %w", err)
		}

		if !existing.Expired(now) {
			return fmt.Errorf("%w by %s until %s",
				activityModel.ErrLeaseHeld, existing.LockedBy, existing.ExpiresAt.Format(time.RFC3339))
		}

		result := tx.Model(&activityModel.SyncLease{}).
			Where("id = ? AND expires_at <= ?", id, now).
			Updates(map[string]interface{}{
				"locked_by":  owner,
				"locked_at":  now,
				"expires_at": now.Add(ttl),
			})
		if result.Error != nil {
			return fmt.Errorf("taking over sync lease: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return activityModel.ErrLeaseHeld
		}
		return nil
	})
}

// ReleaseLease deletes the lease only when owned by the caller. Releasing a
// lease that is absent or owned by someone else is a no-op.
func (r *repository) ReleaseLease(ctx context.Context, id, owner string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND locked_by = ?", id, owner).
		Delete(&activityModel.SyncLease{})
	if result.Error != nil {
		return fmt.Errorf("releasing sync lease: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		r.logger.Debugw("sync lease not released, not held by owner", "lease_id", id, "owner", owner)
	}
	return nil
}

// GetLease returns the current lease, or nil when none exists.
func (r *repository) GetLease(ctx context.Context, id string) (*activityModel.SyncLease, error) {
	var lease activityModel.SyncLease
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&lease).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lease, nil
}
