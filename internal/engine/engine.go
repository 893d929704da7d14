// Package engine implements the per-attempt orchestration invoked by a
// worker on a dequeued task: calling the LLM, grading the result, claiming
// a reward on success, and persisting the outcome with an outbound reply.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arcadehub/promptengine/internal/content"
	"github.com/arcadehub/promptengine/internal/domain"
	"github.com/arcadehub/promptengine/internal/grader"
	"github.com/arcadehub/promptengine/internal/http/middleware"
	"github.com/arcadehub/promptengine/internal/ports"
	"github.com/arcadehub/promptengine/internal/reward"
	"github.com/arcadehub/promptengine/internal/store"
)

// Engine orchestrates one attempt end to end: LLM call, grading, reward
// claim, and persistence.
type Engine struct {
	Store     *store.Store
	Grader    *grader.CompositeGrader
	Claimer   *reward.Claimer
	LLM       ports.LLM
	Channel   ports.Channel
	Templates *Templates

	// Config returns the currently active content configuration. It is a
	// function rather than a fixed value so a running engine keeps seeing
	// the latest document after an admin reload swaps it out.
	Config func() content.Config
}

// New returns an Engine wired from its collaborators.
func New(st *store.Store, gr *grader.CompositeGrader, cl *reward.Claimer, llm ports.LLM, ch ports.Channel, tmpl *Templates, cfg func() content.Config) *Engine {
	return &Engine{Store: st, Grader: gr, Claimer: cl, LLM: llm, Channel: ch, Templates: tmpl, Config: cfg}
}

// ProcessAttempt runs one submit-to-judge cycle for a dequeued task.
func (e *Engine) ProcessAttempt(ctx context.Context, task domain.PendingTask) error {
	tr := otel.Tracer("engine/Engine")
	ctx, span := tr.Start(ctx, "engine.ProcessAttempt",
		trace.WithAttributes(
			attribute.String("user.id", task.UserID),
			attribute.Int("level.id", task.LevelID),
		),
	)
	defer span.End()

	cfg := e.Config()
	level, ok := cfg.LevelByID(task.LevelID)
	if !ok {
		log.Error().Str("user_id", task.UserID).Int("level_id", task.LevelID).Msg("engine: task references unknown level, dropping")
		return e.Store.DeleteTask(ctx, task.ID)
	}

	session, err := e.Store.GetSession(ctx, task.UserID, task.LevelID)
	if err != nil {
		log.Error().Err(err).Str("user_id", task.UserID).Int("level_id", task.LevelID).Msg("engine: no session for pending task, dropping")
		return e.Store.DeleteTask(ctx, task.ID)
	}
	if session.State != domain.SessionInflight {
		log.Error().Str("session_id", session.ID).Str("state", string(session.State)).Msg("engine: session not INFLIGHT for dequeued task, dropping")
		return e.Store.DeleteTask(ctx, task.ID)
	}
	span.SetAttributes(attribute.Int("turn.index", session.TurnIndex))

	llmCtx := ctx
	if cfg.Activity.LLM.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Activity.LLM.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	output, err := e.LLM.Generate(llmCtx, level.Prompt.SystemPrompt, task.UserPrompt, level.Limits.MaxOutputTokens)
	if err != nil {
		return e.finishTransient(ctx, task, session, output, err)
	}

	result, err := e.Grader.Grade(ctx, grader.LevelSpec{
		LevelID:         level.LevelID,
		Intro:           level.Prompt.IntroMessage,
		TargetPhrase:    level.Grading.Keyword.TargetPhrase,
		MatchPolicy:     level.Grading.Keyword.MatchPolicy,
		MaxOutputTokens: level.Limits.MaxOutputTokens,
	}, task.UserPrompt, output)
	if err != nil {
		return e.finishTransient(ctx, task, session, output, err)
	}

	switch result.Final {
	case domain.FinalPass:
		return e.finishPass(ctx, task, session, level, cfg, result, output)
	case domain.FinalSensitive:
		return e.finishFail(ctx, task, session, level, result, output, true)
	default:
		return e.finishFail(ctx, task, session, level, result, output, false)
	}
}

// finishTransient handles both the LLM-call failure and the malformed-judge
// path: the attempt is recorded with judge_verdict=ERROR, turn_index is not
// incremented, and the session returns to READY so the user can retry.
func (e *Engine) finishTransient(ctx context.Context, task domain.PendingTask, session *domain.Session, output string, cause error) error {
	log.Warn().Err(cause).Str("user_id", task.UserID).Int("level_id", task.LevelID).Msg("engine: transient failure, returning session to READY")

	now := time.Now().UTC()
	msg, err := e.Templates.Busy(RenderContext{LevelID: task.LevelID})
	if err != nil {
		return err
	}

	attempt := &domain.Attempt{
		ID:           uuid.NewString(),
		UserID:       task.UserID,
		LevelID:      task.LevelID,
		TurnIndex:    session.TurnIndex,
		UserPrompt:   task.UserPrompt,
		LLMOutput:    output,
		KeywordPass:  false,
		JudgeVerdict: domain.JudgeError,
		JudgeReason:  cause.Error(),
		FinalVerdict: domain.FinalFail,
		CreatedAt:    now,
	}
	outcome := store.FinalizeOutcome{
		SessionID: session.ID,
		NewState:  domain.SessionReady,
		TurnIndex: session.TurnIndex,
		TaskID:    task.ID,
	}
	events := []domain.LogEvent{
		{TraceID: task.ID, EventType: domain.EventError, UserID: task.UserID, LevelID: task.LevelID, TurnIndex: session.TurnIndex, Content: truncate(cause.Error(), 500), CreatedAt: now},
		{TraceID: task.ID, EventType: domain.EventSystemOut, UserID: task.UserID, LevelID: task.LevelID, TurnIndex: session.TurnIndex, Content: truncate(msg, 500), CreatedAt: now},
	}

	if err := e.Store.FinalizeAttempt(ctx, attempt, outcome, events); err != nil {
		return err
	}
	middleware.RecordAttempt(string(attempt.FinalVerdict))
	return e.Channel.Send(ctx, task.ChatID, msg)
}

// finishPass handles a PASS verdict: claim a reward, mark the level passed,
// and send the resulting message.
func (e *Engine) finishPass(ctx context.Context, task domain.PendingTask, session *domain.Session, level content.Level, cfg content.Config, result grader.Result, output string) error {
	msg, err := e.rewardMessage(ctx, task, level, cfg)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempt := &domain.Attempt{
		ID:           uuid.NewString(),
		UserID:       task.UserID,
		LevelID:      task.LevelID,
		TurnIndex:    session.TurnIndex,
		UserPrompt:   task.UserPrompt,
		LLMOutput:    output,
		KeywordPass:  result.KeywordPass,
		JudgeVerdict: result.JudgeVerdict,
		JudgeReason:  result.JudgeReason,
		FinalVerdict: domain.FinalPass,
		CreatedAt:    now,
	}
	outcome := store.FinalizeOutcome{
		SessionID: session.ID,
		NewState:  domain.SessionPassed,
		TurnIndex: session.TurnIndex,
		TaskID:    task.ID,
	}
	events := []domain.LogEvent{
		{TraceID: task.ID, EventType: domain.EventGrade, UserID: task.UserID, LevelID: task.LevelID, TurnIndex: session.TurnIndex, Content: "PASS", CreatedAt: now},
		{TraceID: task.ID, EventType: domain.EventSystemOut, UserID: task.UserID, LevelID: task.LevelID, TurnIndex: session.TurnIndex, Content: truncate(msg, 500), CreatedAt: now},
	}

	if err := e.Store.FinalizeAttempt(ctx, attempt, outcome, events); err != nil {
		return err
	}
	// The level-progress row is the durable record of the pass; a duplicate
	// insert (a worker retrying after a crash between the two writes) hits
	// the unique index and is treated as already recorded.
	if err := e.Store.MarkLevelPassed(ctx, task.UserID, task.LevelID, session.TurnIndex+1); err != nil {
		log.Warn().Err(err).Str("user_id", task.UserID).Int("level_id", task.LevelID).Msg("engine: level progress already recorded")
	}

	middleware.RecordAttempt(string(attempt.FinalVerdict))
	return e.Channel.Send(ctx, task.ChatID, msg)
}

// rewardMessage invokes the reward-claim protocol and renders the outcome
// message for all three of its branches.
func (e *Engine) rewardMessage(ctx context.Context, task domain.PendingTask, level content.Level, cfg content.Config) (string, error) {
	rc := RenderContext{LevelID: level.LevelID, LevelName: level.Name}

	if level.RewardPoolID == "" {
		return e.Templates.AlreadyPassed(rc)
	}
	if cfg.Activity.RewardDisabled {
		return e.Templates.RewardPaused(rc)
	}

	pool, _ := cfg.PoolByID(level.RewardPoolID)

	claimed, err := e.Claimer.Claim(ctx, level.RewardPoolID, task.UserID, task.LevelID)
	switch {
	case err == nil:
		rc.RewardCode = claimed.Code
		middleware.RecordRewardClaim()
		return e.Templates.Reward(pool.SendMessageTemplate, rc)
	case errors.Is(err, reward.ErrAlreadyClaimed):
		if existing, gerr := e.Store.GetRewardClaim(ctx, task.UserID, task.LevelID); gerr == nil {
			rc.RewardCode = existing.CodeSnapshot
			return e.Templates.Reward(pool.SendMessageTemplate, rc)
		}
		return e.Templates.AlreadyClaimed(rc)
	case errors.Is(err, reward.ErrPoolExhausted):
		return e.Templates.PoolExhausted(rc)
	default:
		return "", err
	}
}

// finishFail handles a FAIL or SENSITIVE verdict: increments turn_index and
// branches between COOLDOWN and FAILED_OUT depending on the level's
// max_turns. sensitive selects the content-blocked message and audit label
// for a SENSITIVE judge verdict, which the original system treats as a
// distinct outcome from an ordinary FAIL while applying the same turn and
// cooldown bookkeeping.
func (e *Engine) finishFail(ctx context.Context, task domain.PendingTask, session *domain.Session, level content.Level, result grader.Result, output string, sensitive bool) error {
	now := time.Now().UTC()
	turnIndex := session.TurnIndex + 1

	var newState domain.SessionState
	var cooldownUntil *time.Time
	var msg string
	var err error

	if turnIndex >= level.Limits.MaxTurns {
		newState = domain.SessionFailedOut
		rc := RenderContext{LevelID: level.LevelID, LevelName: level.Name}
		if sensitive {
			msg, err = e.Templates.SensitiveTerminalFail(rc)
		} else {
			msg, err = e.Templates.TerminalFail(rc)
		}
	} else {
		newState = domain.SessionCooldown
		until := now.Add(time.Duration(level.Limits.CooldownSecondsAfterFail) * time.Second)
		cooldownUntil = &until
		rc := RenderContext{
			LevelID:         level.LevelID,
			LevelName:       level.Name,
			RemainingTurns:  level.Limits.MaxTurns - turnIndex,
			CooldownSeconds: level.Limits.CooldownSecondsAfterFail,
		}
		if sensitive {
			msg, err = e.Templates.SensitiveCooldown(rc)
		} else {
			msg, err = e.Templates.Cooldown(rc)
		}
	}
	if err != nil {
		return err
	}

	gradeLabel := "FAIL"
	if sensitive {
		gradeLabel = "SENSITIVE"
	}

	attempt := &domain.Attempt{
		ID:           uuid.NewString(),
		UserID:       task.UserID,
		LevelID:      task.LevelID,
		TurnIndex:    turnIndex,
		UserPrompt:   task.UserPrompt,
		LLMOutput:    output,
		KeywordPass:  result.KeywordPass,
		JudgeVerdict: result.JudgeVerdict,
		JudgeReason:  result.JudgeReason,
		FinalVerdict: result.Final,
		CreatedAt:    now,
	}
	outcome := store.FinalizeOutcome{
		SessionID:     session.ID,
		NewState:      newState,
		TurnIndex:     turnIndex,
		CooldownUntil: cooldownUntil,
		TaskID:        task.ID,
	}
	events := []domain.LogEvent{
		{TraceID: task.ID, EventType: domain.EventGrade, UserID: task.UserID, LevelID: task.LevelID, TurnIndex: turnIndex, Content: gradeLabel, CreatedAt: now},
		{TraceID: task.ID, EventType: domain.EventSystemOut, UserID: task.UserID, LevelID: task.LevelID, TurnIndex: turnIndex, Content: truncate(msg, 500), CreatedAt: now},
	}

	if err := e.Store.FinalizeAttempt(ctx, attempt, outcome, events); err != nil {
		return err
	}
	middleware.RecordAttempt(string(attempt.FinalVerdict))
	return e.Channel.Send(ctx, task.ChatID, msg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
