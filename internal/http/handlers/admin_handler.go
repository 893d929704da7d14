// Package handlers: this file implements the admin operations surface —
// the handful of privileged endpoints an operator uses to toggle the
// activity, reload its content documents, inspect queue/throughput stats,
// ban or unban a user, reset a user's progress on one level, drain the
// queue, and export a day's audit log. None of this is reachable by a
// channel user; it exists for whoever runs the activity.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/arcadehub/promptengine/internal/content"
	"github.com/arcadehub/promptengine/internal/http/middleware"
	"github.com/arcadehub/promptengine/internal/queue"
	"github.com/arcadehub/promptengine/internal/repo"
	"github.com/arcadehub/promptengine/internal/store"
	"github.com/arcadehub/promptengine/internal/sysutil"
	"github.com/arcadehub/promptengine/internal/utils"
)

// AdminPaths is where the three reloadable content documents live on disk.
type AdminPaths struct {
	ActivityPath string
	LevelsPath   string
	RewardsPath  string
}

// Admin groups the collaborators the admin endpoints need: the durable
// store, the hot-swappable content snapshot, the in-memory queue (so a
// clear can drop buffered tasks, not just their durable mirror rows), and
// the raw DB handle for idempotency bookkeeping and reward-pool upserts.
type Admin struct {
	DB      *gorm.DB
	Store   *store.Store
	Content *content.Holder
	Queue   *queue.Persistent
	Paths   AdminPaths
}

// NewAdmin wires an Admin handler set.
func NewAdmin(db *gorm.DB, st *store.Store, ch *content.Holder, q *queue.Persistent, paths AdminPaths) *Admin {
	return &Admin{DB: db, Store: st, Content: ch, Queue: q, Paths: paths}
}

// adminActor identifies who is performing the operation, for the audit
// trail (Ban.CreatedBy) and the idempotency actor_id. There is no operator
// auth layer in scope here; an upstream reverse proxy or VPN is assumed to
// gate access to this surface, the same posture the teacher's admin-only
// middleware slots would expect from a caller.
func adminActor(c *gin.Context) string {
	return sysutil.FirstNonEmpty(strings.TrimSpace(c.GetHeader("X-Admin-ID")), "admin")
}

// idempotencyTTL is how long a recorded admin mutation guards against replay.
const idempotencyTTL = 24 * time.Hour

// checkReplay reports whether idemKey has already been recorded for this
// (actor, resource) pair. When true, the caller should short-circuit
// without re-running the mutation.
func (a *Admin) checkReplay(c *gin.Context, actor, resourceID, idemKey string) bool {
	if idemKey == "" {
		return false
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), a.DB, actor, resourceID, idemKey, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, rec.StatusCode, gin.H{"status": "replayed"})
	return true
}

// recordIdempotency best-effort records a completed mutation so a retry
// with the same key short-circuits via checkReplay.
func (a *Admin) recordIdempotency(c *gin.Context, actor, resourceID, idemKey string, status int) {
	if idemKey == "" {
		return
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), a.DB, actor, resourceID, idemKey, status, idempotencyTTL)
}

// ToggleRequest is the body of POST /admin/toggle.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// Toggle flips the activity's global enable switch without touching levels
// or reward pools.
//
//	@Summary	Toggle the activity on or off
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Param		request	body	ToggleRequest	true	"desired enabled state"
//	@Success	200	{object}	map[string]any
//	@Router		/toggle [post]
func (a *Admin) Toggle(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	actor := adminActor(c)
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if a.checkReplay(c, actor, "toggle", idemKey) {
		return
	}

	a.Content.SetEnabled(req.Enabled)

	a.recordIdempotency(c, actor, "toggle", idemKey, http.StatusOK)
	ok(c, http.StatusOK, gin.H{"enabled": req.Enabled})
}

// ToggleRewardRequest is the body of POST /admin/toggle-reward.
type ToggleRewardRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleReward flips the independent reward-claim override, leaving the
// activity's own enable switch untouched: submissions keep being graded and
// levels keep being passable, but a PASS renders Templates.RewardPaused
// instead of claiming from a pool.
func (a *Admin) ToggleReward(c *gin.Context) {
	var req ToggleRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	actor := adminActor(c)
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if a.checkReplay(c, actor, "toggle-reward", idemKey) {
		return
	}

	a.Content.SetRewardEnabled(req.Enabled)

	a.recordIdempotency(c, actor, "toggle-reward", idemKey, http.StatusOK)
	ok(c, http.StatusOK, gin.H{"reward_enabled": req.Enabled})
}

// Reload re-reads the activity, levels, and rewards documents from disk,
// validates them, swaps the in-memory snapshot, and upserts each reward
// pool's items into storage by item_id, preserving claimed_count for items
// that survive the reload.
func (a *Admin) Reload(c *gin.Context) {
	actor := adminActor(c)
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if a.checkReplay(c, actor, "reload", idemKey) {
		return
	}

	cfg, err := a.Content.Reload(a.Paths.ActivityPath, a.Paths.LevelsPath, a.Paths.RewardsPath)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reload failed: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	for _, pool := range cfg.Rewards.RewardPools {
		if err := repo.UpsertRewardPool(ctx, a.DB, pool.PoolID, content.RewardItemsForPool(pool)); err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "reward pool sync failed: "+err.Error())
			return
		}
	}

	a.recordIdempotency(c, actor, "reload", idemKey, http.StatusOK)
	ok(c, http.StatusOK, gin.H{
		"activity_id": cfg.Activity.ActivityID,
		"enabled":     cfg.Activity.Enabled,
		"levels":      len(cfg.Levels),
		"pools":       len(cfg.Rewards.RewardPools),
	})
}

// Stats reports the queue depth, inflight session count, and today's
// claim/pass counters, the operator's point-in-time view of activity health.
//
//	@Summary	Point-in-time queue and throughput stats
//	@Tags		admin
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Router		/stats [get]
func (a *Admin) Stats(c *gin.Context) {
	stats, err := a.Store.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "stats query failed")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"queue_depth":       stats.QueueDepth,
		"inflight_sessions": stats.InflightSessions,
		"claims_today":      stats.ClaimsToday,
		"passes_today":      stats.PassesToday,
		"queue_buffered":    a.Queue.Len(),
	})
}

// Ping is a health-check endpoint an operator's monitoring can poll: it
// reports database reachability, queue depth, and the activity's and
// reward override's effective on/off state, the same set of signals the
// original system's admin ping command surfaced as a single glance.
//
//	@Summary	Health check and effective toggle state
//	@Tags		admin
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Router		/ping [get]
func (a *Admin) Ping(c *gin.Context) {
	dbStatus := "ok"
	if err := a.DB.WithContext(c.Request.Context()).Exec("SELECT 1").Error; err != nil {
		dbStatus = "error: " + err.Error()
	}

	cfg := a.Content.Get()
	ok(c, http.StatusOK, gin.H{
		"db":             dbStatus,
		"queue_buffered": a.Queue.Len(),
		"activity": gin.H{
			"activity_id": cfg.Activity.ActivityID,
			"enabled":     cfg.Activity.Enabled,
		},
		"reward": gin.H{
			"enabled": !cfg.Activity.RewardDisabled,
		},
	})
}

// BanRequest is the body of POST /admin/ban and POST /admin/unban.
type BanRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// Ban marks a user banned and records an audit row.
func (a *Admin) Ban(c *gin.Context) {
	a.setBanned(c, true)
}

// Unban lifts a user's ban. The prior ban rows are left in place so the
// history survives an unban-then-reban sequence.
func (a *Admin) Unban(c *gin.Context) {
	a.setBanned(c, false)
}

func (a *Admin) setBanned(c *gin.Context, banned bool) {
	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}

	actor := adminActor(c)
	verb := "ban"
	if !banned {
		verb = "unban"
	}
	resourceID := verb + ":" + req.UserID
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if a.checkReplay(c, actor, resourceID, idemKey) {
		return
	}

	if err := a.Store.SetBanned(c.Request.Context(), req.UserID, banned, req.Reason, actor); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, verb+" failed")
		return
	}

	a.recordIdempotency(c, actor, resourceID, idemKey, http.StatusOK)
	ok(c, http.StatusOK, gin.H{"user_id": req.UserID, "banned": banned})
}

// User reports one user's standing — ban status, passed levels, and reward
// claim history — the read-only lookup an operator reaches for before
// deciding whether to ban, unban, or reset a level.
//
//	@Summary	Inspect a user's standing and reward history
//	@Tags		admin
//	@Produce	json
//	@Param		id	path	string	true	"internal user id"
//	@Success	200	{object}	map[string]any
//	@Router		/users/{id} [get]
func (a *Admin) User(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id required")
		return
	}

	profile, err := a.Store.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "user lookup failed")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"user":          profile.User,
		"passed_levels": profile.PassedLevels,
		"claims":        profile.Claims,
	})
}

// ResetUserLevel clears a user's session and pass record for one level.
// Any reward already claimed on that level is left untouched.
func (a *Admin) ResetUserLevel(c *gin.Context) {
	userID := c.Param("id")
	levelID, err := strconv.Atoi(c.Param("level"))
	if userID == "" || err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id or level")
		return
	}

	actor := adminActor(c)
	resourceID := "reset:" + userID + ":" + c.Param("level")
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if a.checkReplay(c, actor, resourceID, idemKey) {
		return
	}

	if err := a.Store.ResetUserLevel(c.Request.Context(), userID, levelID); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reset failed")
		return
	}

	a.recordIdempotency(c, actor, resourceID, idemKey, http.StatusOK)
	ok(c, http.StatusOK, gin.H{"user_id": userID, "level_id": levelID, "reset": true})
}

// QueueClear drops every pending task's durable row, releases the
// corresponding sessions to READY, and drains the same tasks out of the
// in-memory queue so a worker cannot dequeue one whose durable mirror and
// session have already moved on.
func (a *Admin) QueueClear(c *gin.Context) {
	actor := adminActor(c)
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if a.checkReplay(c, actor, "queue:clear", idemKey) {
		return
	}

	cleared, err := a.Store.ClearQueue(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "queue clear failed")
		return
	}
	drained := a.Queue.Drain()

	a.recordIdempotency(c, actor, "queue:clear", idemKey, http.StatusOK)
	ok(c, http.StatusOK, gin.H{"cleared": cleared, "drained": drained})
}

// defaultLogExportLimit and maxLogExportLimit bound the ?limit= query
// parameter on LogsExport so an operator pulling a busy day's audit trail
// cannot accidentally pull the whole table into one JSON response.
const (
	defaultLogExportLimit = 1000
	maxLogExportLimit     = 10000
)

// LogsExport returns every audit row created on the given UTC calendar day
// (default: today), up to ?limit= rows (default 1000, capped at 10000).
// Reward codes are never joined into the export: log events never carry
// them in the first place.
func (a *Admin) LogsExport(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	limit := utils.ClampLimit(utils.AtoiDefault(c.Query("limit"), defaultLogExportLimit), defaultLogExportLimit, maxLogExportLimit)

	events, err := a.Store.LogEventsForDate(c.Request.Context(), day, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "log export failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"date": day.Format("2006-01-02"), "events": events, "limit": limit})
}
