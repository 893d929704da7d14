// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User and
// Ban models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUserByChannelID returns the user bound to a given channel identity, or
// ErrNotFound if one has never contacted the engine.
func GetUserByChannelID(ctx context.Context, db *gorm.DB, channelUserID string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("channel_user_id = ?", channelUserID).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns the user with the given internal id, or ErrNotFound,
// used by the admin user-lookup operation.
func GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new User row for a first-contact channel identity.
func CreateUser(ctx context.Context, db *gorm.DB, channelUserID, displayName string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		ID:            uuid.NewString(),
		ChannelUserID: channelUserID,
		DisplayName:   displayName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetOrCreateUser returns the user for channelUserID, creating one on first
// contact. It uses a transaction to keep the lookup and insert atomic under
// concurrent first contact from the same identity.
func GetOrCreateUser(ctx context.Context, db *gorm.DB, channelUserID, displayName string) (*domain.User, error) {
	u, err := GetUserByChannelID(ctx, db, channelUserID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var created *domain.User
	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, lookErr := GetUserByChannelID(ctx, tx, channelUserID)
		if lookErr == nil {
			created = existing
			return nil
		}
		if !errors.Is(lookErr, gorm.ErrRecordNotFound) {
			return lookErr
		}
		made, createErr := CreateUser(ctx, tx, channelUserID, displayName)
		if createErr != nil {
			return createErr
		}
		created = made
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// SetUserBanned flips the denormalized ban flag on a user.
func SetUserBanned(ctx context.Context, db *gorm.DB, userID string, banned bool, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"banned": banned, "ban_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateBan appends a ban/unban audit row.
func CreateBan(ctx context.Context, db *gorm.DB, userID, reason, createdBy string, active bool) (*domain.Ban, error) {
	b := &domain.Ban{
		ID:        uuid.NewString(),
		UserID:    userID,
		Reason:    reason,
		Active:    active,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// IsUserBanned reports whether a user's current status is banned.
func IsUserBanned(ctx context.Context, db *gorm.DB, userID string) (bool, error) {
	var u domain.User
	if err := db.WithContext(ctx).Select("banned").Where("id = ?", userID).First(&u).Error; err != nil {
		return false, err
	}
	return u.Banned, nil
}
