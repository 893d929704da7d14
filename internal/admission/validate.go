package admission

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/arcadehub/promptengine/internal/content"
)

// maxInputLines and maxRepeatRun are the character-class policy limits the
// spec leaves to implementation discretion: a pathological number of lines
// or a long run of one repeated character is refused inline rather than
// ever reaching the LLM.
const (
	maxInputLines = 20
	maxRepeatRun  = 40
)

var (
	// ErrEmptyInput indicates the submitted text was blank after trimming.
	ErrEmptyInput = errors.New("admission: empty input")

	// ErrInputTooLong indicates the text exceeded the level's max_input_chars.
	ErrInputTooLong = errors.New("admission: input too long")

	// ErrTooManyLines indicates the text exceeded the line-count policy.
	ErrTooManyLines = errors.New("admission: too many lines")

	// ErrRepeatRun indicates the text contains a disallowed repeated-character run.
	ErrRepeatRun = errors.New("admission: repeated-character run")
)

// validateInput enforces the character-class policy ahead of admission: a
// violation yields an inline refusal with no state change and no enqueue.
func validateInput(text string, level content.Level) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyInput
	}
	if level.Limits.MaxInputChars > 0 && utf8.RuneCountInString(trimmed) > level.Limits.MaxInputChars {
		return ErrInputTooLong
	}
	if strings.Count(trimmed, "\n")+1 > maxInputLines {
		return ErrTooManyLines
	}
	if hasRepeatRun(trimmed, maxRepeatRun) {
		return ErrRepeatRun
	}
	return nil
}

func hasRepeatRun(s string, limit int) bool {
	runs := []rune(s)
	run := 1
	for i := 1; i < len(runs); i++ {
		if runs[i] == runs[i-1] {
			run++
			if run > limit {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
