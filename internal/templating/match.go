package templating

import (
	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/entity"
)

// Evaluate counts how many of t's patterns hit text and whether the hits
// satisfy its match mode. Invalid patterns count as misses. A template
// without patterns never matches.
func Evaluate(t *entity.Template, text string) (ok bool, score int) {
	if t == nil || len(t.MatchPatterns) == 0 {
		return false, 0
	}
	for _, p := range t.MatchPatterns {
		if re := compile(p); re != nil && re.MatchString(text) {
			score++
		}
	}
	if t.MatchMode == constants.MatchAny {
		return score > 0, score
	}
	return score == len(t.MatchPatterns), score
}

// Match picks the accepted template with the highest score. On equal
// scores the later template wins. Disabled templates are ignored.
func Match(templates []*entity.Template, text string) (best *entity.Template, bestScore int, ok bool) {
	bestScore = -1
	for _, t := range templates {
		if t == nil || !t.Enabled {
			continue
		}
		accepted, score := Evaluate(t, text)
		if accepted && score >= bestScore {
			best, bestScore = t, score
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestScore, true
}
