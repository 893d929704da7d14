// Package content loads and validates the three JSON configuration
// documents that drive the engine: activity, levels, and reward pools. They
// are reloadable at runtime via the admin reload operation.
package content

import "github.com/arcadehub/promptengine/internal/grader"

// Activity is the top-level on/off switch and global limits document.
type Activity struct {
	ActivityID string `json:"activity_id"`
	Enabled    bool   `json:"enabled"`
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
	// RewardDisabled is an independent override that pauses reward-code
	// claims without touching the activity's own Enabled switch, so an
	// operator can keep submissions and grading running (levels still
	// passable) while withholding rewards, e.g. once a pool's stock is a
	// concern ahead of a restock. It is phrased as "disabled" rather than
	// "enabled" so the zero value (absent from a content document, or a
	// freshly constructed Activity) leaves rewards on by default.
	RewardDisabled bool `json:"reward_disabled"`
	Channel    struct {
		Name string `json:"name"`
	} `json:"channel"`
	GlobalLimits struct {
		MaxInflightPerUser int `json:"max_inflight_per_user"`
		QueueMaxLength     int `json:"queue_max_length"`
		WorkerConcurrency  int `json:"worker_concurrency"`
	} `json:"global_limits"`
	LLM struct {
		Model                  string `json:"model"`
		TimeoutSeconds         int    `json:"timeout_seconds"`
		DefaultMaxOutputTokens int    `json:"default_max_output_tokens"`
	} `json:"llm"`
}

// Level is one step of the challenge ladder.
type Level struct {
	LevelID int    `json:"level_id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Prompt  struct {
		SystemPrompt string `json:"system_prompt"`
		IntroMessage string `json:"intro_message"`
	} `json:"prompt"`
	Limits struct {
		MaxInputChars           int `json:"max_input_chars"`
		MaxTurns                int `json:"max_turns"`
		CooldownSecondsAfterFail int `json:"cooldown_seconds_after_fail"`
		MaxOutputTokens         int `json:"max_output_tokens"`
	} `json:"limits"`
	Grading struct {
		Keyword struct {
			TargetPhrase string             `json:"target_phrase"`
			MatchPolicy  grader.MatchPolicy `json:"match_policy"`
		} `json:"keyword"`
		Judge struct {
			Enabled bool   `json:"enabled"`
			Policy  string `json:"policy"`
		} `json:"judge"`
	} `json:"grading"`
	RewardPoolID string `json:"reward_pool_id"`
}

// RewardItemSpec is one dispensable item inside a pool's configuration.
type RewardItemSpec struct {
	ItemID         string `json:"item_id"`
	Kind           string `json:"kind"`
	Code           string `json:"code"`
	MaxClaimsPerItem int  `json:"max_claims_per_item"`
}

// RewardPool is one named pool of dispensable items.
type RewardPool struct {
	PoolID             string           `json:"pool_id"`
	Enabled            bool             `json:"enabled"`
	SendMessageTemplate string          `json:"send_message_template"`
	Items              []RewardItemSpec `json:"items"`
}

// Rewards is the top-level rewards configuration document.
type Rewards struct {
	RewardPools []RewardPool `json:"reward_pools"`
}

// Config is the fully loaded and validated set of the three documents.
type Config struct {
	Activity Activity
	Levels   []Level
	Rewards  Rewards
}
