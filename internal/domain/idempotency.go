// Package domain defines the persistence models for the prompt-challenge
// attempt-processing engine: users, per-level sessions, immutable attempts,
// reward inventory and claims, the durable queue mirror, and the audit log.
// These types are mapped with GORM and form the core data layer of the
// engine.
package domain

import "time"

// Idempotency records the result of a previously processed admin operation,
// keyed by (actor_id, resource_id, key). It lets the admin HTTP surface
// safely retry POST operations such as ban/unban, level reset, and queue
// clear without re-executing their side effects.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ActorID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_actor_resource_key,priority:1"`
	ResourceID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_actor_resource_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_actor_resource_key,priority:3"`
	StatusCode int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
