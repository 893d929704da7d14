package grader

import (
	"context"

	"github.com/arcadehub/promptengine/internal/domain"
)

// Result is the combined outcome of the keyword and judge stages.
type Result struct {
	KeywordPass  bool
	JudgeVerdict domain.JudgeVerdict
	JudgeReason  string
	Final        domain.FinalVerdict
}

// LevelSpec carries the grading inputs the composite grader needs from a
// level's configuration.
type LevelSpec struct {
	LevelID         int
	Intro           string
	TargetPhrase    string
	MatchPolicy     MatchPolicy
	MaxOutputTokens int
}

// CompositeGrader runs the keyword stage and the judge stage and combines
// them into one final verdict. Unlike the reference implementation this is
// grounded on, the judge stage always runs, even when the keyword stage
// already failed, so logs capture both signals for every attempt.
type CompositeGrader struct {
	Keyword KeywordGrader
	Judge   *Judge
}

// New returns a CompositeGrader backed by judge.
func New(judge *Judge) *CompositeGrader {
	return &CompositeGrader{Judge: judge}
}

// Grade evaluates one attempt against a level's grading configuration.
func (g *CompositeGrader) Grade(ctx context.Context, level LevelSpec, userPrompt, output string) (Result, error) {
	keywordPass, err := g.Keyword.Check(level.TargetPhrase, output, level.MatchPolicy)
	if err != nil {
		return Result{}, err
	}

	verdict, reason, err := g.Judge.Evaluate(ctx, level.LevelID, level.Intro, level.TargetPhrase, userPrompt, output, level.MaxOutputTokens)
	if err != nil {
		// Both a judge transport error and ErrJudgeMalformed propagate here;
		// the engine treats either as a transient, uncounted attempt.
		return Result{KeywordPass: keywordPass, JudgeVerdict: domain.JudgeError}, err
	}

	// A SENSITIVE judge verdict overrides the keyword result: unsafe content
	// is a content-safety concern, not a phrase-matching one, and the
	// original system flags it this way even when the target phrase is
	// present.
	final := domain.FinalFail
	switch {
	case verdict == domain.JudgeSensitive:
		final = domain.FinalSensitive
	case keywordPass && verdict == domain.JudgePass:
		final = domain.FinalPass
	}

	return Result{
		KeywordPass:  keywordPass,
		JudgeVerdict: verdict,
		JudgeReason:  reason,
		Final:        final,
	}, nil
}
