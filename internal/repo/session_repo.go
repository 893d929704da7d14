// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// and LevelProgress models.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/domain"
)

// GetSession returns the (user, level) session row, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, userID string, levelID int) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("user_id = ? AND level_id = ?", userID, levelID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a fresh READY session for a (user, level) pair.
func CreateSession(ctx context.Context, db *gorm.DB, userID string, levelID int, chatID string) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		LevelID:   levelID,
		State:     domain.SessionReady,
		ChatID:    chatID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetOrCreateSession returns the existing session for (userID, levelID) or
// creates a READY one.
func GetOrCreateSession(ctx context.Context, db *gorm.DB, userID string, levelID int, chatID string) (*domain.Session, error) {
	s, err := GetSession(ctx, db, userID, levelID)
	if err == nil {
		return s, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	return CreateSession(ctx, db, userID, levelID, chatID)
}

// TryMarkInflight atomically flips a READY or COOLDOWN (if cooldown has
// elapsed) session to INFLIGHT, binding it to taskID. It returns false
// (with no error) if the session is not in an admittable state, which the
// caller treats as "admission denied" rather than a fault.
func TryMarkInflight(ctx context.Context, db *gorm.DB, userID string, levelID int, taskID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ? AND level_id = ? AND (state = ? OR (state = ? AND (cooldown_until IS NULL OR cooldown_until <= ?)))",
			userID, levelID, domain.SessionReady, domain.SessionCooldown, now).
		Updates(map[string]any{
			"state":            domain.SessionInflight,
			"inflight_task_id": taskID,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AdvanceSessionAfterGrade updates a session's turn index and state
// following one graded attempt.
func AdvanceSessionAfterGrade(ctx context.Context, db *gorm.DB, sessionID string, newState domain.SessionState, turnIndex int, cooldownUntil *time.Time) error {
	updates := map[string]any{
		"state":            newState,
		"turn_index":       turnIndex,
		"cooldown_until":   cooldownUntil,
		"inflight_task_id": nil,
		"updated_at":       time.Now().UTC(),
	}
	res := db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", sessionID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLevelProgress returns the pass record for (userID, levelID), or
// ErrNotFound if the level has not been passed.
func GetLevelProgress(ctx context.Context, db *gorm.DB, userID string, levelID int) (*domain.LevelProgress, error) {
	var lp domain.LevelProgress
	err := db.WithContext(ctx).
		Where("user_id = ? AND level_id = ?", userID, levelID).
		First(&lp).Error
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

// ListPassedLevels returns every level a user has passed, ordered ascending.
func ListPassedLevels(ctx context.Context, db *gorm.DB, userID string) ([]domain.LevelProgress, error) {
	var out []domain.LevelProgress
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("level_id asc").
		Find(&out).Error
	return out, err
}

// CreateLevelProgress records a level pass. It is idempotent: a duplicate
// insert for an already-passed level is expected to fail on the unique
// index, and the caller should treat that as "already recorded" rather than
// a fault.
func CreateLevelProgress(ctx context.Context, db *gorm.DB, userID string, levelID, turnsUsed int) (*domain.LevelProgress, error) {
	lp := &domain.LevelProgress{
		ID:        uuid.NewString(),
		UserID:    userID,
		LevelID:   levelID,
		TurnsUsed: turnsUsed,
		PassedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(lp).Error; err != nil {
		return nil, err
	}
	return lp, nil
}

// ResetLevelProgress deletes the pass record and session for one (user,
// level) pair, used by the admin level-reset operation. RewardClaim rows are
// deliberately left untouched: clearing LevelProgress lets the user attempt
// the level again, but a reward already dispensed is never revoked, and a
// second pass cannot mint a second claim because the claim protocol's unique
// index on (user_id, level_id) still holds.
func ResetLevelProgress(ctx context.Context, db *gorm.DB, userID string, levelID int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND level_id = ?", userID, levelID).Delete(&domain.LevelProgress{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND level_id = ?", userID, levelID).Delete(&domain.Session{}).Error
	})
}
