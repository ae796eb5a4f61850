// Package llmutils provides helpers for model text and messages.
package llmutils

import (
	"maps"
	"strings"
)

// EnsureEndsWithNewline trims the spaces around s and terminates it with
// a single newline. An empty result stays empty.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return s + "\n"
}

// MergeInputs returns the union of the inputs, userInputs take precedence.
func MergeInputs(configInputs map[string]any, userInputs map[string]any) map[string]any {
	res := make(map[string]any, len(configInputs)+len(userInputs))
	maps.Copy(res, configInputs)
	maps.Copy(res, userInputs)
	return res
}
