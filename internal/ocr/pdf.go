package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
)

func (e *Extractor) extractPDF(ctx context.Context, path string, tun Tunables) (ExtractionResult, error) {
	text, pages, warns := e.pdfTextLayer(ctx, path)
	text = Normalize(text)
	if hasEnoughText(text, tun.MinTextChars) {
		return ExtractionResult{
			Text:       text,
			Pages:      pages,
			SourceType: constants.PDF,
			Method:     constants.MethodText,
			Warnings:   warns,
		}, nil
	}

	e.logger.Debug("pdf text layer below threshold, running ocr",
		"path", path, "chars", len(strings.TrimSpace(text)), "min", tun.MinTextChars)
	ocrText, ocrPages, ocrWarns, err := e.pdfToOCR(ctx, path, tun)
	warns = append(warns, ocrWarns...)
	if err != nil {
		return ExtractionResult{SourceType: constants.PDF, Warnings: warns}, err
	}
	return ExtractionResult{
		Text:       Normalize(ocrText),
		Pages:      ocrPages,
		SourceType: constants.PDF,
		Method:     constants.MethodOCR,
		Language:   tun.TesseractLang,
		Warnings:   warns,
	}, nil
}

// pdfTextLayer reads embedded text with pdftotext, falling back to the
// built-in reader. Failures are reported as warnings only.
func (e *Extractor) pdfTextLayer(ctx context.Context, path string) (string, int, []string) {
	text, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil {
		return text, pages, warns
	}
	warns = append(warns, "pdftotext: "+err.Error())

	text, pages, err = readPDFTextLayer(path)
	if err != nil {
		warns = append(warns, "pdf text layer: "+err.Error())
		return "", 0, warns
	}
	return text, pages, warns
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, nonEmpty(string(errb)), err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string, tun Tunables) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "docrouter-pp-*")
	if err != nil {
		return "", 0, nil, &common.ExtractionError{Path: path, Stage: "pdftoppm", Cause: err}
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 200 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, nonEmpty(string(errb)), &common.ExtractionError{Path: path, Stage: "pdftoppm", Cause: err}
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPages(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"},
			&common.ExtractionError{Path: path, Stage: "pdftoppm", Cause: fmt.Errorf("no pages rendered")}
	}

	texts := make([]string, 0, len(matches))
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img, tun.TesseractLang)
		warns = append(warns, w...)
		if err != nil {
			return "", 0, warns, &common.ExtractionError{Path: path, Stage: "tesseract", Cause: err}
		}
		texts = append(texts, txt)
	}
	return strings.Join(texts, "\n"), len(matches), warns, nil
}

// sortPages orders page-N.png files by N; pdftoppm zero-pads only for
// large documents.
func sortPages(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndexByte(base, '-')
		n := 0
		fmt.Sscanf(base[i+1:], "%d", &n)
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}

func nonEmpty(s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return []string{s}
}
