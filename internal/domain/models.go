// Package domain defines the persistence models for the prompt-challenge
// attempt-processing engine: users, per-level sessions, immutable attempts,
// reward inventory and claims, the durable queue mirror, and the audit log.
// These types are mapped with GORM and form the core data layer of the
// engine.
package domain

import "time"

// SessionState is the state of a user's progress on one level.
type SessionState string

const (
	SessionReady     SessionState = "READY"
	SessionInflight  SessionState = "INFLIGHT"
	SessionCooldown  SessionState = "COOLDOWN"
	SessionPassed    SessionState = "PASSED"
	SessionFailedOut SessionState = "FAILED_OUT"
)

// RewardKind distinguishes reward item types with different claim semantics.
type RewardKind string

const (
	RewardAlipayCode RewardKind = "ALIPAY_CODE"
	RewardJDECard    RewardKind = "JD_ECARD"
)

// JudgeVerdict is the LLM judge's raw verdict for one grading call.
type JudgeVerdict string

const (
	JudgePass      JudgeVerdict = "PASS"
	JudgeFail      JudgeVerdict = "FAIL"
	JudgeSensitive JudgeVerdict = "SENSITIVE"
	JudgeError     JudgeVerdict = "ERROR"
)

// FinalVerdict is the combined grader outcome for an attempt.
type FinalVerdict string

const (
	FinalPass      FinalVerdict = "PASS"
	FinalFail      FinalVerdict = "FAIL"
	FinalSensitive FinalVerdict = "SENSITIVE"
)

// EventType classifies an audit log row.
type EventType string

const (
	EventUserIn      EventType = "USER_IN"
	EventSystemOut   EventType = "SYSTEM_OUT"
	EventLLMCall     EventType = "LLM_CALL"
	EventGrade       EventType = "GRADE"
	EventRewardClaim EventType = "REWARD_CLAIM"
	EventError       EventType = "ERROR"
)

// User is the identity of a participant, scoped to the channel that
// delivered their first message. Users are created on first contact and are
// never destroyed.
type User struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ChannelUserID string    `json:"channel_user_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_users_channel_id"`
	DisplayName   string    `json:"display_name"    gorm:"type:varchar(255);not null;default:''"`
	Banned        bool      `json:"banned"          gorm:"not null;default:false"`
	BanReason     string    `json:"ban_reason"      gorm:"type:varchar(255);not null;default:''"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Ban is an audit row recording one ban/unban decision. Unlike User.Banned
// (the current status), Ban rows accumulate so repeated ban/unban cycles
// retain history, matching the audit posture of LogEvent.
type Ban struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;index:idx_bans_user"`
	Reason    string    `json:"reason"     gorm:"type:varchar(255);not null;default:''"`
	Active    bool      `json:"active"     gorm:"not null;default:true"`
	CreatedBy string    `json:"created_by" gorm:"type:varchar(64);not null;default:''"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Ban.
func (Ban) TableName() string { return "bans" }

// Session is the per (user, level) progress record and the anti-double-submit
// barrier: at most one session per user may hold state=INFLIGHT, enforced by
// the admission front's per-user mutex plus the atomic flip performed when a
// task is enqueued.
type Session struct {
	ID             string       `json:"id"                         gorm:"type:char(36);primaryKey"`
	UserID         string       `json:"user_id"                    gorm:"type:char(36);not null;uniqueIndex:ux_sessions_user_level,priority:1"`
	LevelID        int          `json:"level_id"                   gorm:"not null;uniqueIndex:ux_sessions_user_level,priority:2"`
	State          SessionState `json:"state"                      gorm:"type:varchar(16);not null"`
	TurnIndex      int          `json:"turn_index"                 gorm:"not null;default:0"`
	CooldownUntil  *time.Time   `json:"cooldown_until,omitempty"`
	InflightTaskID *string      `json:"inflight_task_id,omitempty" gorm:"type:char(36)"`
	ChatID         string       `json:"chat_id"                    gorm:"type:varchar(64);not null;default:''"`
	UpdatedAt      time.Time    `json:"updated_at"`
	CreatedAt      time.Time    `json:"created_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// LevelProgress is the immutable record of a user having passed a level.
// Once written it is never updated; the admin level reset is the only
// operation that deletes it.
type LevelProgress struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;uniqueIndex:ux_levelprogress_user_level,priority:1"`
	LevelID   int       `json:"level_id"   gorm:"not null;uniqueIndex:ux_levelprogress_user_level,priority:2"`
	TurnsUsed int       `json:"turns_used" gorm:"not null;default:0"`
	PassedAt  time.Time `json:"passed_at"`
}

// TableName returns the database table name for LevelProgress.
func (LevelProgress) TableName() string { return "level_progress" }

// Attempt is the immutable record of one submit-to-judge cycle.
type Attempt struct {
	ID           string       `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string       `json:"user_id"       gorm:"type:char(36);not null;index:idx_attempts_user_level"`
	LevelID      int          `json:"level_id"      gorm:"not null;index:idx_attempts_user_level"`
	TurnIndex    int          `json:"turn_index"    gorm:"not null"`
	UserPrompt   string       `json:"user_prompt"   gorm:"type:text;not null"`
	LLMOutput    string       `json:"llm_output"    gorm:"type:text;not null;default:''"`
	KeywordPass  bool         `json:"keyword_pass"  gorm:"not null;default:false"`
	JudgeVerdict JudgeVerdict `json:"judge_verdict" gorm:"type:varchar(16);not null"`
	JudgeReason  string       `json:"judge_reason"  gorm:"type:varchar(500);not null;default:''"`
	FinalVerdict FinalVerdict `json:"final_verdict" gorm:"type:varchar(16);not null"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TableName returns the database table name for Attempt.
func (Attempt) TableName() string { return "attempts" }

// RewardItem is a single dispensable reward tuple loaded from the rewards
// configuration. ClaimedCount is monotonic non-decreasing and must never
// exceed MaxClaims; that invariant is enforced by the compare-and-set update
// in the reward claim protocol, not by this struct.
type RewardItem struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	ItemID       string     `json:"item_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_reward_items_item_id"`
	PoolID       string     `json:"pool_id"       gorm:"type:varchar(64);not null;index:idx_reward_items_pool"`
	Kind         RewardKind `json:"kind"          gorm:"type:varchar(16);not null"`
	Code         string     `json:"code"          gorm:"type:varchar(255);not null"`
	MaxClaims    int        `json:"max_claims"    gorm:"not null"`
	ClaimedCount int        `json:"claimed_count" gorm:"not null;default:0"`
	Enabled      bool       `json:"enabled"       gorm:"not null;default:true"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for RewardItem.
func (RewardItem) TableName() string { return "reward_items" }

// RewardClaim is the bound record of one item dispensed to one (user, level).
// Unique on (user_id, level_id): a user can claim at most once per level.
type RewardClaim struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string    `json:"user_id"       gorm:"type:char(36);not null;uniqueIndex:ux_reward_claims_user_level,priority:1"`
	LevelID      int       `json:"level_id"      gorm:"not null;uniqueIndex:ux_reward_claims_user_level,priority:2"`
	PoolID       string    `json:"pool_id"       gorm:"type:varchar(64);not null"`
	ItemID       string    `json:"item_id"       gorm:"type:varchar(64);not null;index:idx_reward_claims_item"`
	CodeSnapshot string    `json:"code_snapshot" gorm:"type:varchar(255);not null"`
	ClaimedAt    time.Time `json:"claimed_at"`
}

// TableName returns the database table name for RewardClaim.
func (RewardClaim) TableName() string { return "reward_claims" }

// PendingTask is the durable mirror of one in-flight queue entry, used to
// recover the queue's contents after a crash or restart.
type PendingTask struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id"     gorm:"type:char(36);not null;index:idx_pending_tasks_user"`
	LevelID    int       `json:"level_id"    gorm:"not null"`
	ChatID     string    `json:"chat_id"     gorm:"type:varchar(64);not null;default:''"`
	UserPrompt string    `json:"user_prompt" gorm:"type:text;not null"`
	EnqueuedAt time.Time `json:"enqueued_at" gorm:"index:idx_pending_tasks_order"`
}

// TableName returns the database table name for PendingTask.
func (PendingTask) TableName() string { return "pending_tasks" }

// LogEvent is an append-only audit row. Reward codes are never stored in
// Content; REWARD_CLAIM events reference the item by ItemID instead.
type LogEvent struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	TraceID   string    `json:"trace_id"   gorm:"type:char(36);not null;index:idx_log_events_trace"`
	EventType EventType `json:"event_type" gorm:"type:varchar(16);not null"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;default:''"`
	LevelID   int       `json:"level_id"   gorm:"not null;default:0"`
	TurnIndex int       `json:"turn_index" gorm:"not null;default:0"`
	Content   string    `json:"content"    gorm:"type:varchar(500);not null;default:''"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_log_events_created"`
}

// TableName returns the database table name for LogEvent.
func (LogEvent) TableName() string { return "log_events" }

// InboundMessage is the channel-agnostic shape of one incoming user message,
// as delivered by the channel collaborator to the admission front.
type InboundMessage struct {
	UserID    string
	ChatID    string
	MessageID string
	Text      string
	Timestamp time.Time
}
