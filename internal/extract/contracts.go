package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/docrouter/constants"
)

// TextExtractor turns a file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType constants.Format
	Method     string // "text" | "ocr" | "none"
	Language   string
	Duration   time.Duration
	Warnings   []string
}

// Extracted reports whether any usable text was produced.
func (r TextExtractionResult) Extracted() bool {
	return r.Method != constants.MethodNone && r.Method != "" && r.Text != ""
}
