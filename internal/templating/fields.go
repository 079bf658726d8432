package templating

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/joseph-ayodele/docrouter/internal/entity"
)

// Fields are the values pulled out of a document's text.
type Fields struct {
	Company       string
	InvoiceNumber string
	Date          *time.Time
	DocType       string
	DocFolder     string
}

// ISODate renders Date as YYYY-MM-DD, or "" when absent.
func (f Fields) ISODate() string {
	if f.Date == nil {
		return ""
	}
	return f.Date.Format("2006-01-02")
}

// ExtractFields applies t's field patterns to text. Missing or invalid
// patterns yield empty values; an unparsable date yields nil.
func ExtractFields(t *entity.Template, text string, dayFirst bool) Fields {
	f := Fields{
		DocType:   entity.DefaultDocType,
		DocFolder: entity.DefaultDocFolder,
	}
	if t == nil {
		return f
	}
	if t.DocType != "" {
		f.DocType = t.DocType
	}
	if t.DocFolder != "" {
		f.DocFolder = t.DocFolder
	}
	f.Company = FirstGroup(t.CompanyRegex, text)
	f.InvoiceNumber = FirstGroup(t.InvoiceNumberRegex, text)
	if raw := FirstGroup(t.DateRegex, text); raw != "" {
		f.Date = ParseDate(raw, dayFirst)
	}
	return f
}

// FirstGroup returns group 1 of the first match when the pattern has
// groups, otherwise the whole match, trimmed.
func FirstGroup(pattern, text string) string {
	re := compile(pattern)
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if re.NumSubexp() > 0 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(m[0])
}

var dateCandidates = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}(?:[T ]\d{1,2}:\d{2}(?::\d{2})?)?`),
	regexp.MustCompile(`\d{1,2}[./-]\d{1,2}[./-]\d{2,4}`),
	regexp.MustCompile(`(?i)\d{1,2}(?:st|nd|rd|th)?\.?\s+[a-z]{3,9}\.?,?\s+\d{4}`),
	regexp.MustCompile(`(?i)[a-z]{3,9}\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`),
}

var (
	reOrdinal    = regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th)\b`)
	reNumericDMY = regexp.MustCompile(`^\d{1,2}[./-]\d{1,2}[./-]\d{2,4}$`)
)

// ParseDate reads a free-form date, tolerating surrounding text. Ambiguous
// numeric dates follow dayFirst. It returns nil when nothing parses.
func ParseDate(s string, dayFirst bool) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, ok := parseOne(s, dayFirst); ok {
		return &t
	}
	for _, re := range dateCandidates {
		for _, c := range re.FindAllString(s, -1) {
			if t, ok := parseOne(c, dayFirst); ok {
				return &t
			}
		}
	}
	return nil
}

func parseOne(s string, dayFirst bool) (time.Time, bool) {
	s = reOrdinal.ReplaceAllString(strings.TrimSpace(s), "$1")
	s = strings.TrimRight(s, ".,;:")
	if reNumericDMY.MatchString(s) {
		// dateparse only honours the day/month preference for '/'
		s = strings.NewReplacer(".", "/", "-", "/").Replace(s)
	}
	t, err := dateparse.ParseAny(s,
		dateparse.PreferMonthFirst(!dayFirst),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil || t.Year() < 1900 || t.Year() > 2200 {
		return time.Time{}, false
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d, true
}
