// Package admission implements the inbound entry point: per-user
// serialization, session-state gating, input validation, and the atomic
// admit-to-queue handoff described for the game's front door.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arcadehub/promptengine/internal/content"
	"github.com/arcadehub/promptengine/internal/domain"
	"github.com/arcadehub/promptengine/internal/ports"
	"github.com/arcadehub/promptengine/internal/store"
)

// Queue is the narrow in-memory queue contract the front needs.
type Queue interface {
	Push(task domain.PendingTask) error
	Len() int
}

// Front is the admission front: the single entry point every inbound
// message passes through before a task reaches the worker pool.
type Front struct {
	Store   *store.Store
	Queue   Queue
	Channel ports.Channel
	Config  func() content.Config

	locks *userLocks
}

// New returns a Front wired from its collaborators.
func New(st *store.Store, q Queue, ch ports.Channel, cfg func() content.Config) *Front {
	return &Front{Store: st, Queue: q, Channel: ch, Config: cfg, locks: newUserLocks()}
}

// OnMessage implements the admission front's gating sequence for one
// inbound message, serialized per user so a burst of messages from the
// same user cannot double-submit.
func (f *Front) OnMessage(ctx context.Context, msg domain.InboundMessage) error {
	unlock := f.locks.Lock(msg.UserID)
	defer unlock()

	user, err := f.Store.GetOrCreateUser(ctx, msg.UserID, "")
	if err != nil {
		return fmt.Errorf("admission: get or create user: %w", err)
	}
	if user.Banned {
		return f.reply(ctx, msg.ChatID, "You have been banned from this activity.")
	}

	cfg := f.Config()
	if !cfg.Activity.Enabled {
		return f.reply(ctx, msg.ChatID, "This activity is currently unavailable. Please check back later.")
	}

	passed, err := f.Store.PassedLevelSet(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("admission: load passed levels: %w", err)
	}
	currentLevelID := store.CurrentLevel(passed, cfg.OrderedLevelIDs())
	level, ok := cfg.LevelByID(currentLevelID)
	if !ok {
		return f.reply(ctx, msg.ChatID, "No challenge is configured right now. Please check back later.")
	}

	if err := validateInput(msg.Text, level); err != nil {
		return f.reply(ctx, msg.ChatID, refusalMessage(err, level))
	}

	session, err := f.Store.GetOrCreateSession(ctx, user.ID, level.LevelID, msg.ChatID)
	if err != nil {
		return fmt.Errorf("admission: get or create session: %w", err)
	}

	now := time.Now().UTC()
	switch session.State {
	case domain.SessionInflight:
		return f.reply(ctx, msg.ChatID, "Your previous submission is still processing, please wait.")
	case domain.SessionPassed:
		return f.reply(ctx, msg.ChatID, fmt.Sprintf("You've already passed level %d.", level.LevelID))
	case domain.SessionFailedOut:
		return f.reply(ctx, msg.ChatID, fmt.Sprintf("No more attempts remain for level %d.", level.LevelID))
	case domain.SessionCooldown:
		if session.CooldownUntil != nil && now.Before(*session.CooldownUntil) {
			remaining := int(session.CooldownUntil.Sub(now).Seconds())
			if remaining < 1 {
				remaining = 1
			}
			return f.reply(ctx, msg.ChatID, fmt.Sprintf("Please wait %ds before trying again.", remaining))
		}
		// Cooldown has elapsed; fall through to admission.
	case domain.SessionReady:
		// Proceed.
	}

	if max := cfg.Activity.GlobalLimits.QueueMaxLength; max > 0 && f.Queue.Len() >= max {
		return f.reply(ctx, msg.ChatID, "The system is at capacity right now, please try again shortly.")
	}

	traceID := uuid.NewString()
	result, err := f.Store.Admit(ctx, traceID, user.ID, level.LevelID, msg.ChatID, msg.Text)
	if err != nil {
		return fmt.Errorf("admission: admit: %w", err)
	}
	if !result.Admitted {
		// Lost a race against another message for the same session between
		// the state check above and the atomic flip; the caller sees the
		// same reply as an explicit INFLIGHT hit.
		return f.reply(ctx, msg.ChatID, "Your previous submission is still processing, please wait.")
	}

	ahead := f.Queue.Len()
	if err := f.Queue.Push(*result.Task); err != nil {
		log.Error().Err(err).Str("task_id", result.Task.ID).Msg("admission: durable task admitted but in-memory enqueue failed")
	}

	return f.reply(ctx, msg.ChatID, fmt.Sprintf("Got it! You're queued, approximately %d ahead of you.", ahead))
}

func (f *Front) reply(ctx context.Context, chatID, text string) error {
	return f.Channel.Send(ctx, chatID, text)
}

func refusalMessage(err error, level content.Level) string {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return "Please send a non-empty message."
	case errors.Is(err, ErrInputTooLong):
		return fmt.Sprintf("Your message is too long (max %d characters).", level.Limits.MaxInputChars)
	case errors.Is(err, ErrTooManyLines):
		return "Your message has too many lines."
	case errors.Is(err, ErrRepeatRun):
		return "Your message contains an excessive repeated character run."
	default:
		return "Your message could not be accepted."
	}
}
