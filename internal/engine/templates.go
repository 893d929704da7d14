package engine

import (
	"bytes"
	"fmt"
	"text/template"
)

// defaultTemplates are used whenever a level or reward pool does not
// configure its own send_message_template.
const (
	defaultRewardTemplate    = "Level {{.LevelID}} passed! Your reward code is {{.RewardCode}}."
	defaultAlreadyClaimed    = "You already passed level {{.LevelID}} and claimed your reward."
	defaultPoolExhausted     = "Level {{.LevelID}} passed! Unfortunately the reward pool is exhausted, but your pass is recorded."
	defaultTerminalFail      = "You're out of attempts for level {{.LevelID}}. No more attempts are available."
	defaultCooldown          = "Not quite — {{.RemainingTurns}} attempt(s) left. Try again in {{.CooldownSeconds}}s."
	defaultBusy              = "The system is busy right now, please try again in a moment."
	defaultAlreadyPassedMsg  = "You already passed level {{.LevelID}}."
	defaultSensitiveCooldown = "Your response was blocked for policy-sensitive content. {{.RemainingTurns}} attempt(s) left. Try again in {{.CooldownSeconds}}s."
	defaultSensitiveTerminal = "Your response was blocked for policy-sensitive content. You're out of attempts for level {{.LevelID}}."
	defaultRewardPaused      = "Level {{.LevelID}} passed! Reward distribution is paused right now, but your pass is recorded."
)

// RenderContext carries the fields available to a message template. Not
// every field is populated for every message kind.
type RenderContext struct {
	LevelID         int
	LevelName       string
	Username        string
	RewardCode      string
	RemainingTurns  int
	CooldownSeconds int
}

// Templates holds the parsed text/template set used to render every
// outbound message the engine sends, grounded on the original's per-level
// f-string templates but expressed with Go's text/template package since
// no example repo in the corpus imports a third-party templating library
// for this narrow use.
type Templates struct {
	reward            *template.Template
	alreadyClaimed    *template.Template
	poolExhausted     *template.Template
	terminalFail      *template.Template
	cooldown          *template.Template
	busy              *template.Template
	alreadyPassed     *template.Template
	sensitiveCooldown *template.Template
	sensitiveTerminal *template.Template
	rewardPaused      *template.Template
}

// NewTemplates parses the default message templates. A reward pool's
// send_message_template, if non-empty, overrides the default reward message;
// it is passed to Reward at render time.
func NewTemplates() (*Templates, error) {
	t := &Templates{}
	var err error
	if t.reward, err = template.New("reward").Parse(defaultRewardTemplate); err != nil {
		return nil, err
	}
	if t.alreadyClaimed, err = template.New("already_claimed").Parse(defaultAlreadyClaimed); err != nil {
		return nil, err
	}
	if t.poolExhausted, err = template.New("pool_exhausted").Parse(defaultPoolExhausted); err != nil {
		return nil, err
	}
	if t.terminalFail, err = template.New("terminal_fail").Parse(defaultTerminalFail); err != nil {
		return nil, err
	}
	if t.cooldown, err = template.New("cooldown").Parse(defaultCooldown); err != nil {
		return nil, err
	}
	if t.busy, err = template.New("busy").Parse(defaultBusy); err != nil {
		return nil, err
	}
	if t.alreadyPassed, err = template.New("already_passed").Parse(defaultAlreadyPassedMsg); err != nil {
		return nil, err
	}
	if t.sensitiveCooldown, err = template.New("sensitive_cooldown").Parse(defaultSensitiveCooldown); err != nil {
		return nil, err
	}
	if t.sensitiveTerminal, err = template.New("sensitive_terminal").Parse(defaultSensitiveTerminal); err != nil {
		return nil, err
	}
	if t.rewardPaused, err = template.New("reward_paused").Parse(defaultRewardPaused); err != nil {
		return nil, err
	}
	return t, nil
}

func render(tmpl *template.Template, rc RenderContext) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, rc); err != nil {
		return "", fmt.Errorf("engine: render template %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// Reward renders the reward-grant message, using a pool-specific template
// string when one is configured, otherwise the default.
func (t *Templates) Reward(poolTemplate string, rc RenderContext) (string, error) {
	if poolTemplate == "" {
		return render(t.reward, rc)
	}
	tmpl, err := template.New("pool_reward").Parse(poolTemplate)
	if err != nil {
		return "", fmt.Errorf("engine: parse reward pool template: %w", err)
	}
	return render(tmpl, rc)
}

// AlreadyClaimed renders the reminder sent when a reward was already
// claimed for this level.
func (t *Templates) AlreadyClaimed(rc RenderContext) (string, error) { return render(t.alreadyClaimed, rc) }

// PoolExhausted renders the "passed but rewards exhausted" message.
func (t *Templates) PoolExhausted(rc RenderContext) (string, error) { return render(t.poolExhausted, rc) }

// TerminalFail renders the message sent when a user reaches FAILED_OUT.
func (t *Templates) TerminalFail(rc RenderContext) (string, error) { return render(t.terminalFail, rc) }

// Cooldown renders the "fail, remaining N turns, wait T s" message.
func (t *Templates) Cooldown(rc RenderContext) (string, error) { return render(t.cooldown, rc) }

// Busy renders the transient "system busy, try again" message.
func (t *Templates) Busy(rc RenderContext) (string, error) { return render(t.busy, rc) }

// AlreadyPassed renders the generic "already passed this level" message,
// used when a claim cannot be recovered from an existing RewardClaim row.
func (t *Templates) AlreadyPassed(rc RenderContext) (string, error) { return render(t.alreadyPassed, rc) }

// SensitiveCooldown renders the "output blocked for unsafe content, N
// attempts left" message sent on a SENSITIVE judge verdict that leaves the
// user with remaining turns.
func (t *Templates) SensitiveCooldown(rc RenderContext) (string, error) {
	return render(t.sensitiveCooldown, rc)
}

// SensitiveTerminalFail renders the "output blocked for unsafe content, out
// of attempts" message sent when a SENSITIVE judge verdict exhausts the
// level's max_turns.
func (t *Templates) SensitiveTerminalFail(rc RenderContext) (string, error) {
	return render(t.sensitiveTerminal, rc)
}

// RewardPaused renders the "passed, but reward distribution is paused"
// message sent when a level has a reward pool configured but the
// independent reward override (content.Activity.RewardDisabled) withholds
// the claim, distinct from PoolExhausted (stock ran out) and AlreadyPassed
// (no pool configured at all).
func (t *Templates) RewardPaused(rc RenderContext) (string, error) { return render(t.rewardPaused, rc) }
