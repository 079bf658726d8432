package ocr

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	MinTextChars  int    // text-layer threshold below which PDFs are OCR'd, default 25
	DPI           int    // rasterization DPI for scanned PDFs, default 200
	MaxPages      int    // 0 = no limit

	TessdataDir   string
	HeicConverter string // "heif-convert" | "magick" | "sips"

	// Live, when set, is consulted on every call for settings that can be
	// reloaded at runtime.
	Live func() Tunables
}

// Tunables are the settings that may change between calls.
type Tunables struct {
	TesseractLang string
	MinTextChars  int
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType constants.Format
	Method     string // constants.MethodText | MethodOCR | MethodNone
	Language   string
	Duration   time.Duration
	Warnings   []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 25
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

func (e *Extractor) tunables() Tunables {
	t := Tunables{TesseractLang: e.cfg.TesseractLang, MinTextChars: e.cfg.MinTextChars}
	if e.cfg.Live == nil {
		return t
	}
	live := e.cfg.Live()
	if live.TesseractLang != "" {
		t.TesseractLang = live.TesseractLang
	}
	if live.MinTextChars > 0 {
		t.MinTextChars = live.MinTextChars
	}
	return t
}

// Extract picks a strategy based on file extension. Recognition failures
// are returned as *common.ExtractionError; text-layer failures only add
// warnings.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	tun := e.tunables()
	e.logger.Debug("starting text extraction", "path", path, "ext", ext)

	var (
		res ExtractionResult
		err error
	)
	switch format := constants.MapExtToFormat(ext); format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path, tun)
	case constants.IMAGE:
		res, err = e.extractImageFile(ctx, path, ext, tun)
	default:
		res = e.extractDirect(path, format)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("text extraction failed", "path", path, "error", err)
		return res, err
	}
	e.logger.Debug("text extraction done",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractImageFile(ctx context.Context, path, ext string, tun Tunables) (ExtractionResult, error) {
	if !constants.IsHEICExt(ext) {
		return e.extractImage(ctx, path, tun)
	}
	out, warns, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.cfg.HeicConverter, path)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE, Warnings: warns},
			&common.ExtractionError{Path: path, Stage: "heic", Cause: err}
	}
	res, err := e.extractImage(ctx, out, tun)
	res.Warnings = append(res.Warnings, warns...)
	var xe *common.ExtractionError
	if errors.As(err, &xe) {
		xe.Path = path
	}
	return res, err
}

func hasEnoughText(text string, min int) bool {
	return len(strings.TrimSpace(text)) >= min
}
