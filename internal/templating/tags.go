package templating

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/docrouter/internal/entity"
)

var (
	reTagSpace   = regexp.MustCompile(`\s+`)
	reTagInvalid = regexp.MustCompile(`[^a-z0-9_-]`)
	reTagDashes  = regexp.MustCompile(`-{2,}`)
)

// NormalizeTag folds diacritics, lowercases, turns whitespace into '-',
// drops path separators and keeps only [a-z0-9_-].
func NormalizeTag(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(fold, s); err == nil {
		s = out
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("/", "", `\`, "").Replace(s)
	s = reTagSpace.ReplaceAllString(s, "-")
	s = reTagInvalid.ReplaceAllString(s, "")
	s = reTagDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// DocumentTags derives the tag set of a routed document from its template
// and extracted company.
func DocumentTags(t *entity.Template, company string) entity.TagSet {
	var set entity.TagSet
	add := func(v string) {
		if n := NormalizeTag(v); n != "" {
			set.Add(n)
		}
	}
	docType := entity.DefaultDocType
	if t != nil {
		if t.DocType != "" {
			docType = t.DocType
		}
		for _, tag := range t.Tags.Slice() {
			add(tag)
		}
	}
	add(docType)
	add(company)
	return set
}
