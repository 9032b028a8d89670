package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/cascacheck/cascacheck_backend/config"
	"gorm.io/gorm"
)

// ItemRecurrence keeps the running failure streak per (store, item description).
// The streak is monotonic unless RECURRENCE_RESET_ON_CONFORMING is enabled.
type ItemRecurrence struct {
	ID              int       `gorm:"primary_key" json:"id"`
	StoreId         int       `gorm:"not null;uniqueIndex:idx_store_item,priority:1" json:"store_id"`
	ItemDescription string    `gorm:"size:255;not null;uniqueIndex:idx_store_item,priority:2" json:"item_description"`
	Count           int       `gorm:"not null;default:0" json:"count"`
	LastFailedAt    time.Time `json:"last_failed_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func recurrenceLockKey(storeId int, description string) string {
	return fmt.Sprintf("Recurrence:%d:%s", storeId, description)
}

// obtainRecurrenceLock is best effort. The unique key + atomic upsert is the
// real serialization guarantee; the lock only shortens contention windows.
func obtainRecurrenceLock(ctx context.Context, storeId int, description string) *redislock.Lock {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil
	}
	lock, err := locker.Obtain(ctx, recurrenceLockKey(storeId, description), 10*time.Second, nil)
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			logger := config.GetLogger()
			config.LogError(logger, "recurrence", "obtainRecurrenceLock", "obtain lock", recurrenceLockKey(storeId, description), err)
		}
		return nil
	}
	return lock
}

// recordItemFailureTx bumps the streak inside the caller's transaction and
// returns the new count.
func recordItemFailureTx(tx *gorm.DB, storeId int, description string) (int, error) {
	now := time.Now()
	err := tx.Exec(
		`INSERT INTO item_recurrences (store_id, item_description, count, last_failed_at, created_at, updated_at)
		 VALUES (?, ?, 1, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE count = count + 1, last_failed_at = VALUES(last_failed_at), updated_at = VALUES(updated_at)`,
		storeId, description, now, now, now,
	).Error
	if err != nil {
		return 0, err
	}

	var count int
	err = tx.Raw(
		`SELECT count FROM item_recurrences WHERE store_id = ? AND item_description = ?`,
		storeId, description,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// resetItemRecurrenceTx zeroes the streak. Only called when the
// reset-on-conforming flag is enabled.
func resetItemRecurrenceTx(tx *gorm.DB, storeId int, description string) error {
	return tx.Model(&ItemRecurrence{}).
		Where("store_id = ? AND item_description = ?", storeId, description).
		Update("count", 0).Error
}

// RecordItemFailure bumps the streak for one item outside any caller
// transaction and returns the new count.
func RecordItemFailure(ctx context.Context, storeId int, description string) (int, error) {
	if description == "" {
		return 0, NewValidationError("item description is required")
	}

	lock := obtainRecurrenceLock(ctx, storeId, description)
	if lock != nil {
		defer func() {
			_ = lock.Release(ctx)
		}()
	}

	db := config.GetDB()
	var count int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		count, txErr = recordItemFailureTx(tx, storeId, description)
		return txErr
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetRecurrenceCount returns the current streak, zero when the item
// never failed at this store.
func GetRecurrenceCount(ctx context.Context, storeId int, description string) (int, error) {
	db := config.GetDB()
	var rec ItemRecurrence
	err := db.WithContext(ctx).
		Where("store_id = ? AND item_description = ?", storeId, description).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return rec.Count, nil
}

// GetRecurrenceCounts loads the streaks for a batch of descriptions at once,
// used to pre-populate a fresh checklist.
func GetRecurrenceCounts(ctx context.Context, storeId int, descriptions []string) (map[string]int, error) {
	counts := make(map[string]int, len(descriptions))
	if len(descriptions) == 0 {
		return counts, nil
	}

	db := config.GetDB()
	var recs []ItemRecurrence
	err := db.WithContext(ctx).
		Where("store_id = ? AND item_description IN ?", storeId, descriptions).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		counts[rec.ItemDescription] = rec.Count
	}
	return counts, nil
}
