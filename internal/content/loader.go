package content

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/arcadehub/promptengine/internal/domain"
)

// Load reads and validates the activity, levels, and rewards documents from
// the given paths. It is called at startup and again on admin reload. The
// three documents are independent, so they are read concurrently.
func Load(activityPath, levelsPath, rewardsPath string) (Config, error) {
	var cfg Config
	var g errgroup.Group

	g.Go(func() error {
		if err := readJSON(activityPath, &cfg.Activity); err != nil {
			return fmt.Errorf("content: load activity: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := readJSON(levelsPath, &cfg.Levels); err != nil {
			return fmt.Errorf("content: load levels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := readJSON(rewardsPath, &cfg.Rewards); err != nil {
			return fmt.Errorf("content: load rewards: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

// Validate enforces the reload invariants: contiguous level IDs starting at
// 1, every level's reward_pool_id must name an existing pool, JD_ECARD
// items must have max_claims=1, and ALIPAY_CODE items must have
// max_claims >= 1.
func Validate(cfg Config) error {
	ids := make([]int, 0, len(cfg.Levels))
	for _, l := range cfg.Levels {
		ids = append(ids, l.LevelID)
	}
	sort.Ints(ids)
	for i, id := range ids {
		if id != i+1 {
			return fmt.Errorf("content: level ids must be contiguous starting at 1, got %v", ids)
		}
	}

	pools := make(map[string]RewardPool, len(cfg.Rewards.RewardPools))
	for _, p := range cfg.Rewards.RewardPools {
		pools[p.PoolID] = p
	}

	for _, l := range cfg.Levels {
		if l.RewardPoolID == "" {
			continue
		}
		if _, ok := pools[l.RewardPoolID]; !ok {
			return fmt.Errorf("content: level %d references unknown reward_pool_id %q", l.LevelID, l.RewardPoolID)
		}
	}

	for _, p := range cfg.Rewards.RewardPools {
		for _, item := range p.Items {
			switch domain.RewardKind(item.Kind) {
			case domain.RewardJDECard:
				if item.MaxClaimsPerItem != 1 {
					return fmt.Errorf("content: pool %q item %q is JD_ECARD but max_claims_per_item=%d (must be 1)", p.PoolID, item.ItemID, item.MaxClaimsPerItem)
				}
			case domain.RewardAlipayCode:
				if item.MaxClaimsPerItem < 1 {
					return fmt.Errorf("content: pool %q item %q is ALIPAY_CODE but max_claims_per_item=%d (must be >= 1)", p.PoolID, item.ItemID, item.MaxClaimsPerItem)
				}
			default:
				return fmt.Errorf("content: pool %q item %q has unknown kind %q", p.PoolID, item.ItemID, item.Kind)
			}
		}
	}

	return nil
}

// LevelByID returns the level with the given id, or false if absent.
func (c Config) LevelByID(id int) (Level, bool) {
	for _, l := range c.Levels {
		if l.LevelID == id {
			return l, true
		}
	}
	return Level{}, false
}

// PoolByID returns the reward pool with the given id, or false if absent.
func (c Config) PoolByID(id string) (RewardPool, bool) {
	for _, p := range c.Rewards.RewardPools {
		if p.PoolID == id {
			return p, true
		}
	}
	return RewardPool{}, false
}

// OrderedLevelIDs returns every configured level id in ascending order.
func (c Config) OrderedLevelIDs() []int {
	ids := make([]int, 0, len(c.Levels))
	for _, l := range c.Levels {
		ids = append(ids, l.LevelID)
	}
	sort.Ints(ids)
	return ids
}

// RewardItemsForPool converts a pool's configured items into domain.RewardItem
// rows for an upsert, preserving claimed_count is the repo layer's job.
func RewardItemsForPool(p RewardPool) []domain.RewardItem {
	out := make([]domain.RewardItem, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, domain.RewardItem{
			ItemID:    it.ItemID,
			Kind:      domain.RewardKind(it.Kind),
			Code:      it.Code,
			MaxClaims: it.MaxClaimsPerItem,
			Enabled:   true,
		})
	}
	return out
}
