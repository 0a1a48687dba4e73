// Package sanitizer normalizes free-text input before validation and
// storage. All functions are idempotent and never return errors; invalid
// input comes back as an empty string or slice.
package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims leading/trailing space and collapses any internal
// whitespace runs to a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeName normalizes room and user display names.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizePurpose normalizes booking purpose text.
func NormalizePurpose(purpose string) string {
	return TrimAndNormalize(purpose)
}

// NormalizeLabels normalizes equipment labels: lowercased, whitespace
// collapsed, duplicates and empties dropped, original order kept.
func NormalizeLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		normalized := strings.ToLower(TrimAndNormalize(label))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
