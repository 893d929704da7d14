// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for PendingTask,
// the durable mirror of the in-memory work queue used to recover its
// contents after a crash.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/domain"
)

// CreatePendingTask inserts the durable mirror row for an enqueued task.
func CreatePendingTask(ctx context.Context, db *gorm.DB, userID string, levelID int, chatID, userPrompt string) (*domain.PendingTask, error) {
	t := &domain.PendingTask{
		ID:         uuid.NewString(),
		UserID:     userID,
		LevelID:    levelID,
		ChatID:     chatID,
		UserPrompt: userPrompt,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// ListPendingTasksOrdered returns every durable task row in enqueue order,
// used on process start to rebuild the in-memory queue.
func ListPendingTasksOrdered(ctx context.Context, db *gorm.DB) ([]domain.PendingTask, error) {
	var out []domain.PendingTask
	err := db.WithContext(ctx).Order("enqueued_at asc").Find(&out).Error
	return out, err
}

// DeletePendingTask removes the durable mirror row once its attempt has
// reached a terminal state or the task is dropped; dequeueing alone does
// not remove it.
func DeletePendingTask(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Delete(&domain.PendingTask{}, "id = ?", id).Error
}

// CountPendingTasks reports the current durable queue depth.
func CountPendingTasks(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.PendingTask{}).Count(&n).Error
	return n, err
}

// ClearPendingTasks deletes every durable task row, used by the admin
// queue-clear operation. It does not touch in-flight sessions; callers that
// need to also release those should do so in the same transaction.
func ClearPendingTasks(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Where("1 = 1").Delete(&domain.PendingTask{})
	return res.RowsAffected, res.Error
}
