// Package reward implements the atomic reward-claim protocol: binding one
// dispensable item to one (user, level) pair without ever letting an item's
// claimed_count exceed its max_claims, even under concurrent claimants.
package reward

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/domain"
	"github.com/arcadehub/promptengine/internal/repo"
)

var (
	// ErrAlreadyClaimed indicates a reward has already been claimed for
	// this (user, level) pair.
	ErrAlreadyClaimed = errors.New("reward: already claimed")

	// ErrPoolExhausted indicates every claimable item in a pool has
	// reached its max_claims.
	ErrPoolExhausted = errors.New("reward: pool exhausted")
)

// maxCandidateRetries bounds the compare-and-set retry loop against
// contention when several claimants race for the same item.
const maxCandidateRetries = 25

// Result is the outcome of a successful claim.
type Result struct {
	ItemID string
	Code   string
	Kind   domain.RewardKind
}

// Claimer executes the reward-claim protocol inside one transaction per call.
type Claimer struct {
	DB *gorm.DB
}

// New returns a Claimer backed by db.
func New(db *gorm.DB) *Claimer {
	return &Claimer{DB: db}
}

// Claim binds one item from poolID to (userID, levelID). It returns
// ErrAlreadyClaimed if the user already holds a claim for this level, or
// ErrPoolExhausted if no enabled item currently has spare capacity.
func (c *Claimer) Claim(ctx context.Context, poolID, userID string, levelID int) (Result, error) {
	var result Result
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetRewardClaim(ctx, tx, userID, levelID); err == nil {
			return ErrAlreadyClaimed
		} else if err != gorm.ErrRecordNotFound {
			return err
		}

		var won *domain.RewardItem
		for attempt := 0; attempt < maxCandidateRetries && won == nil; attempt++ {
			candidates, err := repo.ListClaimableRewardItems(ctx, tx, poolID)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				return ErrPoolExhausted
			}
			for i := range candidates {
				ok, err := repo.TryClaimRewardItem(ctx, tx, candidates[i].ItemID)
				if err != nil {
					return err
				}
				if ok {
					won = &candidates[i]
					break
				}
				// RowsAffected == 0: another claimant won the race for this
				// item since it was listed. Try the next candidate.
			}
		}
		if won == nil {
			return ErrPoolExhausted
		}

		if _, err := repo.CreateRewardClaim(ctx, tx, userID, levelID, poolID, won.ItemID, won.Code); err != nil {
			return err
		}

		result = Result{ItemID: won.ItemID, Code: won.Code, Kind: won.Kind}
		return nil
	})
	return result, err
}
