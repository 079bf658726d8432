package ocr

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
)

func (e *Extractor) extractImage(ctx context.Context, path string, tun Tunables) (ExtractionResult, error) {
	txt, warn, err := e.tesseractOCR(ctx, path, tun.TesseractLang)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE, Warnings: warn},
			&common.ExtractionError{Path: path, Stage: "tesseract", Cause: err}
	}
	return ExtractionResult{
		Text:       Normalize(txt),
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     constants.MethodOCR,
		Language:   tun.TesseractLang,
		Warnings:   warn,
	}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path, lang string) (string, []string, error) {
	args := []string{path, "stdout", "-l", lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", nonEmpty(string(errb)), fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}
