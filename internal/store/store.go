package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/domain"
	"github.com/arcadehub/promptengine/internal/repo"
)

// Store is the transactional storage contract consumed by the admission
// front, worker pool, and game engine. It layers atomic multi-row
// operations over the thin per-entity functions in internal/repo, the way
// the teacher's service layer wraps its repo layer.
type Store struct {
	DB *gorm.DB
}

// New returns a Store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// GetOrCreateUser resolves a channel identity to a User row, creating one
// on first contact.
func (s *Store) GetOrCreateUser(ctx context.Context, channelUserID, displayName string) (*domain.User, error) {
	return repo.GetOrCreateUser(ctx, s.DB, channelUserID, displayName)
}

// IsBanned reports whether a user is currently banned.
func (s *Store) IsBanned(ctx context.Context, userID string) (bool, error) {
	return repo.IsUserBanned(ctx, s.DB, userID)
}

// SetBanned flips a user's ban status and records an audit row.
func (s *Store) SetBanned(ctx context.Context, userID string, banned bool, reason, actor string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.SetUserBanned(ctx, tx, userID, banned, reason); err != nil {
			return err
		}
		_, err := repo.CreateBan(ctx, tx, userID, reason, actor, banned)
		return err
	})
}

// CurrentLevel returns the smallest level_id the user has not yet passed,
// given the ordered set of configured level IDs.
func CurrentLevel(passed map[int]bool, orderedLevelIDs []int) int {
	for _, id := range orderedLevelIDs {
		if !passed[id] {
			return id
		}
	}
	if len(orderedLevelIDs) == 0 {
		return 1
	}
	return orderedLevelIDs[len(orderedLevelIDs)-1]
}

// PassedLevelSet returns the set of level IDs a user has passed.
func (s *Store) PassedLevelSet(ctx context.Context, userID string) (map[int]bool, error) {
	rows, err := repo.ListPassedLevels(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(rows))
	for _, r := range rows {
		out[r.LevelID] = true
	}
	return out, nil
}

// GetOrCreateSession returns the session for (userID, levelID), creating a
// READY one if absent.
func (s *Store) GetOrCreateSession(ctx context.Context, userID string, levelID int, chatID string) (*domain.Session, error) {
	return repo.GetOrCreateSession(ctx, s.DB, userID, levelID, chatID)
}

// GetSession returns the session for (userID, levelID), or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, userID string, levelID int) (*domain.Session, error) {
	return repo.GetSession(ctx, s.DB, userID, levelID)
}

// GetRewardClaim returns an existing reward claim for (userID, levelID), or
// ErrNotFound, used to render a reminder of an already-awarded code.
func (s *Store) GetRewardClaim(ctx context.Context, userID string, levelID int) (*domain.RewardClaim, error) {
	return repo.GetRewardClaim(ctx, s.DB, userID, levelID)
}

// AdmitResult is the outcome of Admit.
type AdmitResult struct {
	Admitted bool
	Task     *domain.PendingTask
}

// Admit is the admission front's anti-double-submit barrier: inside one
// transaction it attempts to flip the session to INFLIGHT, and only on
// success inserts the durable PendingTask row and a USER_IN log event. If
// the session is not in an admittable state (already INFLIGHT, in an
// unexpired COOLDOWN, PASSED, or FAILED_OUT) it returns Admitted=false with
// no side effects.
func (s *Store) Admit(ctx context.Context, traceID, userID string, levelID int, chatID, text string) (AdmitResult, error) {
	now := time.Now().UTC()
	taskID := uuid.NewString()

	var result AdmitResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.TryMarkInflight(ctx, tx, userID, levelID, taskID, now)
		if err != nil {
			return err
		}
		if !ok {
			result.Admitted = false
			return nil
		}

		task := &domain.PendingTask{
			ID:         taskID,
			UserID:     userID,
			LevelID:    levelID,
			ChatID:     chatID,
			UserPrompt: text,
			EnqueuedAt: now,
		}
		if err := tx.Create(task).Error; err != nil {
			return err
		}

		if _, err := repo.AppendLogEvent(ctx, tx, &domain.LogEvent{
			TraceID:   traceID,
			EventType: domain.EventUserIn,
			UserID:    userID,
			LevelID:   levelID,
			Content:   truncate(text, 200),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result.Admitted = true
		result.Task = task
		return nil
	})
	return result, err
}

// ListPendingTasksOrdered rehydrates the durable queue mirror on startup.
func (s *Store) ListPendingTasksOrdered(ctx context.Context) ([]domain.PendingTask, error) {
	return repo.ListPendingTasksOrdered(ctx, s.DB)
}

// DeleteTask removes the durable mirror row for a completed or abandoned task.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	return repo.DeletePendingTask(ctx, s.DB, taskID)
}

// ClearQueue deletes every pending task and releases their sessions back to
// READY, used by the admin queue-clear operation.
func (s *Store) ClearQueue(ctx context.Context) (int64, error) {
	var cleared int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []domain.PendingTask
		if err := tx.Find(&tasks).Error; err != nil {
			return err
		}
		for _, t := range tasks {
			if err := tx.Model(&domain.Session{}).
				Where("user_id = ? AND level_id = ?", t.UserID, t.LevelID).
				Updates(map[string]any{
					"state":            domain.SessionReady,
					"inflight_task_id": nil,
					"updated_at":       time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
		}
		res := tx.Where("1 = 1").Delete(&domain.PendingTask{})
		if res.Error != nil {
			return res.Error
		}
		cleared = res.RowsAffected
		return nil
	})
	return cleared, err
}

// ResetUserLevel clears a user's session and pass record for one level
// without revoking a reward already claimed, used by the admin reset
// operation.
func (s *Store) ResetUserLevel(ctx context.Context, userID string, levelID int) error {
	return repo.ResetLevelProgress(ctx, s.DB, userID, levelID)
}

// FinalizeOutcome is the state transition the engine wants applied atomically
// with the attempt row and the deletion of the completed task.
type FinalizeOutcome struct {
	SessionID     string
	NewState      domain.SessionState
	TurnIndex     int
	CooldownUntil *time.Time
	TaskID        string
}

// FinalizeAttempt persists the attempt row, applies the session transition,
// deletes the completed PendingTask row, and writes the GRADE and SYSTEM_OUT
// log events, all inside one transaction, matching the commit boundary the
// engine's per-attempt orchestration requires.
func (s *Store) FinalizeAttempt(ctx context.Context, attempt *domain.Attempt, outcome FinalizeOutcome, events []domain.LogEvent) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateAttempt(ctx, tx, attempt); err != nil {
			return err
		}
		if err := repo.AdvanceSessionAfterGrade(ctx, tx, outcome.SessionID, outcome.NewState, outcome.TurnIndex, outcome.CooldownUntil); err != nil {
			return err
		}
		if outcome.TaskID != "" {
			if err := repo.DeletePendingTask(ctx, tx, outcome.TaskID); err != nil {
				return err
			}
		}
		for i := range events {
			if _, err := repo.AppendLogEvent(ctx, tx, &events[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkLevelPassed inserts the level-progress row for a pass. It is
// idempotent: a duplicate insert is expected to violate the unique index
// and the caller should treat that as "already recorded".
func (s *Store) MarkLevelPassed(ctx context.Context, userID string, levelID, turnsUsed int) error {
	_, err := repo.CreateLevelProgress(ctx, s.DB, userID, levelID, turnsUsed)
	return err
}

// AppendLogEvent inserts one audit row outside a larger transaction.
func (s *Store) AppendLogEvent(ctx context.Context, e *domain.LogEvent) error {
	_, err := repo.AppendLogEvent(ctx, s.DB, e)
	return err
}

// QueueDepth reports the durable queue's current row count.
func (s *Store) QueueDepth(ctx context.Context) (int64, error) {
	return repo.CountPendingTasks(ctx, s.DB)
}

// Stats is the admin dashboard's point-in-time snapshot.
type Stats struct {
	QueueDepth       int64
	InflightSessions int64
	ClaimsToday      int64
	PassesToday      int64
}

// Stats aggregates the counters the admin stats endpoint reports, in the
// style of a service-layer rollup over several narrow repo queries.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	db := s.DB.WithContext(ctx)

	if err := db.Model(&domain.PendingTask{}).Count(&out.QueueDepth).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&domain.Session{}).Where("state = ?", domain.SessionInflight).Count(&out.InflightSessions).Error; err != nil {
		return Stats{}, err
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := db.Model(&domain.RewardClaim{}).Where("claimed_at >= ?", dayStart).Count(&out.ClaimsToday).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&domain.LevelProgress{}).Where("passed_at >= ?", dayStart).Count(&out.PassesToday).Error; err != nil {
		return Stats{}, err
	}

	return out, nil
}

// UserProfile is the admin user-lookup operation's aggregate view of one
// user: their standing, passed levels, and reward history.
type UserProfile struct {
	User         *domain.User
	PassedLevels []int
	Claims       []domain.RewardClaim
}

// GetUserProfile assembles the admin user-lookup view for userID, or
// ErrNotFound if no such user exists.
func (s *Store) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	u, err := repo.GetUserByID(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	passed, err := s.PassedLevelSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	claims, err := repo.ListRewardClaimsByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	levels := make([]int, 0, len(passed))
	for id := range passed {
		levels = append(levels, id)
	}
	sort.Ints(levels)
	return &UserProfile{User: u, PassedLevels: levels, Claims: claims}, nil
}

// LogEventsForDate returns up to limit audit rows created on the given UTC
// day, used by the admin log-export operation. A limit <= 0 means no cap.
func (s *Store) LogEventsForDate(ctx context.Context, day time.Time, limit int) ([]domain.LogEvent, error) {
	return repo.ListLogEventsByDate(ctx, s.DB, day, limit)
}

// ErrNotFound re-exports repo.ErrNotFound so callers outside this package
// need not import internal/repo directly.
var ErrNotFound = repo.ErrNotFound

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
