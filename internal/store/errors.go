// Package store implements the transactional Storage contract used by the
// admission front, worker pool, and game engine: atomic session transitions
// and the durable queue mirror, layered over the thin per-entity
// repositories in internal/repo. The reward-claim protocol lives in
// internal/reward.
package store

import "errors"

var (
	// ErrSessionNotFound indicates no session row exists for a (user, level).
	ErrSessionNotFound = errors.New("store: session not found")

	// ErrNotInflight indicates an operation expected a session in state
	// INFLIGHT but found it in some other state.
	ErrNotInflight = errors.New("store: session not inflight")

	// ErrAlreadyClaimed indicates a reward has already been claimed for
	// this (user, level) pair.
	ErrAlreadyClaimed = errors.New("store: reward already claimed")

	// ErrPoolExhausted indicates every claimable item in a reward pool has
	// reached its max_claims.
	ErrPoolExhausted = errors.New("store: reward pool exhausted")

	// ErrUserBanned indicates the operation was refused because the user
	// is currently banned.
	ErrUserBanned = errors.New("store: user is banned")
)
