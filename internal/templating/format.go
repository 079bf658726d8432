package templating

import (
	"regexp"
	"strings"

	"github.com/ncruces/go-strftime"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/entity"
	"github.com/joseph-ayodele/docrouter/internal/storage"
)

// Placeholders rendered when a value could not be extracted.
const (
	PlaceholderCompany = "UnknownCompany"
	PlaceholderInvoice = "UnknownInvoice"
)

const defaultDateFormat = "%Y-%m-%d"

var (
	reVariable = regexp.MustCompile(`\{([a-zA-Z_]+)(?::([^}]+))?\}`)
	reSlugSep  = regexp.MustCompile(`[\s/\\]+`)
)

// FormatPath renders t's folder and file name templates. folder is
// '/'-separated and relative to the library root; name has no extension.
//
// Missing company and invoice number render as placeholders, a missing
// date renders empty.
func FormatPath(t *entity.Template, f Fields, originalStem, ext string) (folder, name string) {
	pathTpl, nameTpl := entity.DefaultOutputPathTemplate, entity.DefaultFilenameTemplate
	if t != nil {
		if t.OutputPathTemplate != "" {
			pathTpl = t.OutputPathTemplate
		}
		if t.FilenameTemplate != "" {
			nameTpl = t.FilenameTemplate
		}
	}
	docFolder := f.DocFolder
	if docFolder == "" {
		docFolder = entity.DefaultDocFolder
	}
	f.DocFolder = docFolder

	folder = storage.SafeRelPath(render(pathTpl, f, originalStem, ext))
	if folder == "" {
		folder = storage.SafeRelPath(docFolder)
	}
	if folder == "" {
		folder = entity.DefaultDocFolder
	}

	name = strings.Trim(storage.SafeSegment(render(nameTpl, f, originalStem, ext)), "_- ")
	if name == "" {
		name = storage.SafeSegment(originalStem)
	}
	if name == "" {
		name = storage.FallbackName
	}
	return folder, name
}

func render(tpl string, f Fields, originalStem, ext string) string {
	return reVariable.ReplaceAllStringFunc(tpl, func(m string) string {
		sub := reVariable.FindStringSubmatch(m)
		return value(sub[1], sub[2], f, originalStem, ext)
	})
}

func value(name, layout string, f Fields, originalStem, ext string) string {
	switch name {
	case "doc_folder":
		return f.DocFolder
	case "doc_type":
		return f.DocType
	case "company":
		if v := slug(f.Company); v != "" {
			return v
		}
		return PlaceholderCompany
	case "invoice_number":
		if v := slug(f.InvoiceNumber); v != "" {
			return v
		}
		return PlaceholderInvoice
	case "date":
		if f.Date == nil {
			return ""
		}
		if layout == "" {
			layout = defaultDateFormat
		}
		return strftime.Format(layout, *f.Date)
	case "original_name":
		return originalStem
	case "ext":
		return constants.NormalizeExt(ext)
	default:
		return ""
	}
}

// slug makes an extracted value usable as a single path component:
// whitespace and separator runs become '-'.
func slug(s string) string {
	s = reSlugSep.ReplaceAllString(strings.TrimSpace(s), "-")
	s = storage.SafeSegment(s)
	return strings.Trim(s, "-")
}
