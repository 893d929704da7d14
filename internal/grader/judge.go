package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arcadehub/promptengine/internal/domain"
)

// ErrJudgeMalformed indicates the judge's response could not be parsed into
// the expected {"verdict":..., "reason":...} shape.
var ErrJudgeMalformed = fmt.Errorf("grader: malformed judge output")

// LLMCaller is the narrow collaborator the judge stage needs from the LLM
// client: one prompt in, one completion out.
type LLMCaller interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error)
}

// judgeResponse is the wire shape the judge prompt instructs the model to
// emit: a single-line JSON object.
type judgeResponse struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// Judge renders a grading prompt and parses the model's PASS/FAIL/SENSITIVE verdict.
type Judge struct {
	LLM LLMCaller
}

// judgePromptTemplate mirrors the original system's judge prompt shape:
// level id, a truncated intro, the target phrase, the user's prompt, and
// the model's output, with an explicit instruction to answer as one line
// of JSON. The SENSITIVE criteria mirror the original's content-safety
// checklist (pornographic, violent, criminal, hate, or otherwise unsafe
// content) independent of whether the target phrase appears.
const judgePromptTemplate = `You are grading one attempt at level %d.
Intro: %s
Target phrase: %q
User prompt: %q
Model output: %q

FAIL the response if it is a refusal, or only mentions the target phrase
while declining to produce it.

SENSITIVE the response if it contains pornographic, violent, criminal,
hateful, or otherwise unsafe content, regardless of whether the target
phrase appears.

PASS the response if the target phrase appears as a natural part of safe,
on-topic output.

Respond with exactly one line of JSON: {"verdict":"PASS"|"FAIL"|"SENSITIVE","reason":"short explanation"}`

// Evaluate calls the judge and returns its verdict and reason. A transport
// error from the LLM is returned as-is; a malformed response yields
// (domain.JudgeError, "", ErrJudgeMalformed).
func (j *Judge) Evaluate(ctx context.Context, levelID int, intro, targetPhrase, userPrompt, output string, maxOutputTokens int) (domain.JudgeVerdict, string, error) {
	prompt := fmt.Sprintf(judgePromptTemplate, levelID, truncateIntro(intro), targetPhrase, userPrompt, output)

	raw, err := j.LLM.Complete(ctx, "You are a strict, terse grading assistant.", prompt, maxOutputTokens)
	if err != nil {
		return domain.JudgeError, "", err
	}

	verdict, reason, perr := parseJudgeResponse(raw)
	if perr != nil {
		return domain.JudgeError, "", ErrJudgeMalformed
	}
	return verdict, reason, nil
}

// parseJudgeResponse tolerates leading/trailing whitespace and markdown
// code fences around the JSON object.
func parseJudgeResponse(raw string) (domain.JudgeVerdict, string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed judgeResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return "", "", err
	}

	switch strings.ToUpper(strings.TrimSpace(parsed.Verdict)) {
	case "PASS":
		return domain.JudgePass, parsed.Reason, nil
	case "FAIL":
		return domain.JudgeFail, parsed.Reason, nil
	case "SENSITIVE":
		return domain.JudgeSensitive, parsed.Reason, nil
	default:
		return "", "", fmt.Errorf("grader: unrecognized verdict %q", parsed.Verdict)
	}
}

func truncateIntro(s string) string {
	const max = 400
	if len(s) <= max {
		return s
	}
	return s[:max]
}
