// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for LogEvent, the
// append-only audit trail of the engine.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/domain"
)

// AppendLogEvent inserts one audit row. Content is expected to already be
// truncated/redacted by the caller; this function performs no scrubbing.
func AppendLogEvent(ctx context.Context, db *gorm.DB, e *domain.LogEvent) (*domain.LogEvent, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListLogEventsByTrace returns every event sharing a trace id, ordered by
// creation time, useful for reconstructing one user interaction end to end.
func ListLogEventsByTrace(ctx context.Context, db *gorm.DB, traceID string) ([]domain.LogEvent, error) {
	var out []domain.LogEvent
	err := db.WithContext(ctx).
		Where("trace_id = ?", traceID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListLogEventsByDate returns every event created on the UTC calendar day of
// day, used by the admin log-export operation. A limit <= 0 means no cap.
func ListLogEventsByDate(ctx context.Context, db *gorm.DB, day time.Time, limit int) ([]domain.LogEvent, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	q := db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.LogEvent
	err := q.Find(&out).Error
	return out, err
}
