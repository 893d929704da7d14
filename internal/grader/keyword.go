// Package grader implements the composite grader: a keyword-match stage and
// an LLM judge stage, combined into one final verdict per attempt.
package grader

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchPolicy selects how the keyword stage compares a level's target
// phrase against the model's output.
type MatchPolicy string

const (
	MatchExactSubstring          MatchPolicy = "exact_substring"
	MatchCaseInsensitiveSubstring MatchPolicy = "case_insensitive_substring"
	MatchRegex                   MatchPolicy = "regex"
)

// KeywordGrader checks whether a level's target phrase appears in the
// model's output, under one of three policies.
type KeywordGrader struct{}

// Check reports whether output satisfies targetPhrase under policy. An
// empty or unrecognized policy falls back to case_insensitive_substring,
// the Open Question default recorded for this engine.
func (KeywordGrader) Check(targetPhrase, output string, policy MatchPolicy) (bool, error) {
	switch policy {
	case MatchExactSubstring:
		return strings.Contains(output, targetPhrase), nil
	case MatchRegex:
		re, err := regexp.Compile(targetPhrase)
		if err != nil {
			return false, fmt.Errorf("grader: invalid regex target phrase: %w", err)
		}
		return re.MatchString(output), nil
	case MatchCaseInsensitiveSubstring, "":
		return strings.Contains(strings.ToLower(output), strings.ToLower(targetPhrase)), nil
	default:
		return strings.Contains(strings.ToLower(output), strings.ToLower(targetPhrase)), nil
	}
}
