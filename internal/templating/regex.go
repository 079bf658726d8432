package templating

import (
	"regexp"
	"sync"
)

// compiled patterns keyed by source; nil marks a pattern that failed to compile.
var regexCache sync.Map

// compile returns pattern compiled case-insensitive and multiline, or nil
// if it is empty or invalid.
func compile(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	if v, ok := regexCache.Load(pattern); ok {
		return v.(*regexp.Regexp)
	}
	re, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		re = nil
	}
	regexCache.Store(pattern, re)
	return re
}
