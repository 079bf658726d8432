package constants

import (
	"strings"
)

// MatchMode decides how many of a template's patterns must hit.
type MatchMode string

const (
	MatchAll MatchMode = "all"
	MatchAny MatchMode = "any"
)

var allMatchModes = []MatchMode{
	MatchAll,
	MatchAny,
}

func MatchModesAsStringSlice() []string {
	result := make([]string, len(allMatchModes))
	for i, m := range allMatchModes {
		result[i] = string(m)
	}
	return result
}

// CanonicalizeMatchMode maps user input onto a MatchMode. Unknown or empty
// input yields MatchAll and false.
func CanonicalizeMatchMode(input string) (MatchMode, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return MatchAll, false
	}

	synonyms := map[string]MatchMode{
		"every": MatchAll,
		"and":   MatchAll,
		"some":  MatchAny,
		"or":    MatchAny,
	}
	if m, ok := synonyms[normalized]; ok {
		return m, true
	}

	for _, m := range allMatchModes {
		if normalized == string(m) {
			return m, true
		}
	}
	return MatchAll, false
}
