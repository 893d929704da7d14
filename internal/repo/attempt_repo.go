// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Attempt
// model, the immutable record of one submit-to-judge cycle.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/domain"
)

// CreateAttempt inserts an immutable attempt row.
func CreateAttempt(ctx context.Context, db *gorm.DB, a *domain.Attempt) (*domain.Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// CountAttempts returns how many attempts a user has made on a level.
func CountAttempts(ctx context.Context, db *gorm.DB, userID string, levelID int) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Attempt{}).
		Where("user_id = ? AND level_id = ?", userID, levelID).
		Count(&total).Error
	return total, err
}

// ListAttempts returns a user's attempts on a level, ordered by turn index.
func ListAttempts(ctx context.Context, db *gorm.DB, userID string, levelID int) ([]domain.Attempt, error) {
	var out []domain.Attempt
	err := db.WithContext(ctx).
		Where("user_id = ? AND level_id = ?", userID, levelID).
		Order("turn_index asc").
		Find(&out).Error
	return out, err
}
