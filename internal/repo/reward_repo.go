// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// RewardItem and RewardClaim models, including the compare-and-set update
// used by the atomic reward-claim protocol.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/domain"
)

// ListClaimableRewardItems returns enabled, unexhausted items in a pool,
// ordered so JD_ECARD items are tried before ALIPAY_CODE items and ties are
// broken by item_id ascending. This ordering gives the reward claimer a
// deterministic candidate sequence.
func ListClaimableRewardItems(ctx context.Context, db *gorm.DB, poolID string) ([]domain.RewardItem, error) {
	var out []domain.RewardItem
	err := db.WithContext(ctx).
		Where("pool_id = ? AND enabled = ? AND claimed_count < max_claims", poolID, true).
		Order("CASE WHEN kind = 'JD_ECARD' THEN 0 ELSE 1 END, item_id ASC").
		Find(&out).Error
	return out, err
}

// TryClaimRewardItem performs the conditional UPDATE at the heart of the
// reward-claim protocol: it increments claimed_count only if doing so would
// not exceed max_claims. RowsAffected == 0 means another claimant won the
// race or the item became exhausted/disabled since it was listed; the
// caller should retry against the next candidate.
func TryClaimRewardItem(ctx context.Context, db *gorm.DB, itemID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.RewardItem{}).
		Where("item_id = ? AND enabled = ? AND claimed_count < max_claims", itemID, true).
		UpdateColumn("claimed_count", gorm.Expr("claimed_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetRewardItemByItemID returns a single reward item by its business key.
func GetRewardItemByItemID(ctx context.Context, db *gorm.DB, itemID string) (*domain.RewardItem, error) {
	var ri domain.RewardItem
	err := db.WithContext(ctx).Where("item_id = ?", itemID).First(&ri).Error
	if err != nil {
		return nil, err
	}
	return &ri, nil
}

// CreateRewardClaim binds one item to one (user, level). The unique index
// on (user_id, level_id) makes a second claim for the same level fail,
// which the caller maps to "already claimed".
func CreateRewardClaim(ctx context.Context, db *gorm.DB, userID string, levelID int, poolID, itemID, codeSnapshot string) (*domain.RewardClaim, error) {
	c := &domain.RewardClaim{
		ID:           uuid.NewString(),
		UserID:       userID,
		LevelID:      levelID,
		PoolID:       poolID,
		ItemID:       itemID,
		CodeSnapshot: codeSnapshot,
		ClaimedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetRewardClaim returns the existing claim for (userID, levelID), or
// ErrNotFound if the user has not claimed a reward on that level.
func GetRewardClaim(ctx context.Context, db *gorm.DB, userID string, levelID int) (*domain.RewardClaim, error) {
	var c domain.RewardClaim
	err := db.WithContext(ctx).
		Where("user_id = ? AND level_id = ?", userID, levelID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListRewardClaimsByUser returns every reward claim a user has been issued,
// ordered oldest first, used by the admin user-lookup operation.
func ListRewardClaimsByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.RewardClaim, error) {
	var out []domain.RewardClaim
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("claimed_at asc").Find(&out).Error
	return out, err
}

// UpsertRewardPool replaces the pool's item set from configuration. Items
// not present in items are disabled rather than deleted, so their
// claimed_count and historical claims survive a content reload.
func UpsertRewardPool(ctx context.Context, db *gorm.DB, poolID string, items []domain.RewardItem) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]string, 0, len(items))
		for i := range items {
			it := items[i]
			it.PoolID = poolID
			it.Enabled = true
			keep = append(keep, it.ItemID)

			var existing domain.RewardItem
			err := tx.Where("item_id = ?", it.ItemID).First(&existing).Error
			switch {
			case err == nil:
				if txErr := tx.Model(&existing).Updates(map[string]any{
					"pool_id":    poolID,
					"kind":       it.Kind,
					"code":       it.Code,
					"max_claims": it.MaxClaims,
					"enabled":    true,
					"updated_at": time.Now().UTC(),
				}).Error; txErr != nil {
					return txErr
				}
			case err == gorm.ErrRecordNotFound:
				if it.ID == "" {
					it.ID = uuid.NewString()
				}
				now := time.Now().UTC()
				it.CreatedAt, it.UpdatedAt = now, now
				if txErr := tx.Create(&it).Error; txErr != nil {
					return txErr
				}
			default:
				return err
			}
		}
		if len(keep) == 0 {
			return tx.Model(&domain.RewardItem{}).Where("pool_id = ?", poolID).Update("enabled", false).Error
		}
		return tx.Model(&domain.RewardItem{}).
			Where("pool_id = ? AND item_id NOT IN ?", poolID, keep).
			Update("enabled", false).Error
	})
}
