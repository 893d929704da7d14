package content

import "sync/atomic"

// Holder is the process-wide, hot-swappable view of the three content
// documents. The engine and admission front read it on every message; the
// admin reload/toggle operations swap it out. Reads never block writers and
// vice versa.
type Holder struct {
	val atomic.Pointer[Config]
}

// NewHolder returns a Holder initialized with cfg.
func NewHolder(cfg Config) *Holder {
	h := &Holder{}
	h.Store(cfg)
	return h
}

// Get returns the current config snapshot.
func (h *Holder) Get() Config {
	return *h.val.Load()
}

// Store replaces the current config snapshot wholesale.
func (h *Holder) Store(cfg Config) {
	h.val.Store(&cfg)
}

// SetEnabled flips the activity's global enable switch without touching
// levels or rewards.
func (h *Holder) SetEnabled(enabled bool) {
	cfg := h.Get()
	cfg.Activity.Enabled = enabled
	h.Store(cfg)
}

// SetRewardEnabled flips the independent reward-claim override, leaving the
// activity's own Enabled switch and every level untouched.
func (h *Holder) SetRewardEnabled(enabled bool) {
	cfg := h.Get()
	cfg.Activity.RewardDisabled = !enabled
	h.Store(cfg)
}

// Reload re-reads and re-validates the three documents from disk and, only
// on success, swaps them in. A failed reload leaves the previous config in
// place.
func (h *Holder) Reload(activityPath, levelsPath, rewardsPath string) (Config, error) {
	cfg, err := Load(activityPath, levelsPath, rewardsPath)
	if err != nil {
		return Config{}, err
	}
	h.Store(cfg)
	return cfg, nil
}
