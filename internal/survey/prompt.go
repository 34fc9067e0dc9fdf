// Package survey holds the survey document model and prompt canonicalization.
package survey

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinPromptLength = 3
	MaxPromptLength = 200
)

// ErrInvalidPrompt is returned by ValidatePrompt when the trimmed prompt is out of bounds.
var ErrInvalidPrompt = errors.New("invalid prompt")

// NormalizePrompt returns the dedup key for a raw prompt: trimmed, lowercased,
// and with every run of whitespace collapsed to a single space.
func NormalizePrompt(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// ValidatePrompt trims the raw prompt and checks its length in characters.
func ValidatePrompt(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(trimmed)
	if n < MinPromptLength || n > MaxPromptLength {
		return "", fmt.Errorf("%w: prompt must be %d-%d characters, got %d", ErrInvalidPrompt, MinPromptLength, MaxPromptLength, n)
	}
	return trimmed, nil
}
