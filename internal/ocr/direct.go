package ocr

import (
	"bytes"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/joseph-ayodele/docrouter/constants"
)

// maxDirectBytes bounds how much of a file is read for direct extraction.
const maxDirectBytes = 8 << 20

// extractDirect reads text straight from the file. It never fails: anything
// unreadable yields method "none" with a warning.
func (e *Extractor) extractDirect(path string, format constants.Format) ExtractionResult {
	res := ExtractionResult{SourceType: format, Method: constants.MethodNone}

	raw, err := readHead(path, maxDirectBytes)
	if err != nil {
		res.Warnings = append(res.Warnings, "read: "+err.Error())
		return res
	}

	var text string
	switch format {
	case constants.HTML:
		text, err = htmlToText(raw)
		if err != nil {
			res.Warnings = append(res.Warnings, "html: "+err.Error())
			return res
		}
	default:
		if !looksLikeText(raw) {
			return res
		}
		text = strings.ToValidUTF8(string(raw), "")
	}

	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return res
	}
	res.Text = text
	res.Method = constants.MethodText
	res.Pages = 1
	return res
}

func readHead(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

// looksLikeText rejects binary content: NUL bytes or mostly invalid UTF-8.
func looksLikeText(b []byte) bool {
	if len(b) == 0 || bytes.IndexByte(b, 0) >= 0 {
		return false
	}
	if utf8.Valid(b) {
		return true
	}
	bad := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			bad++
		}
		b = b[size:]
	}
	return bad < 16
}

func htmlToText(raw []byte) (string, error) {
	clean := bluemonday.UGCPolicy().SanitizeBytes(raw)
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return conv.ConvertString(string(clean))
}
