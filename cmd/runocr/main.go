package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/extract"
	"github.com/joseph-ayodele/docrouter/internal/ocr"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLogger(common.LogConfig{Level: cfg.Log.Level, Format: "json"}, os.Stderr)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file>")
		os.Exit(2)
	}
	path := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ocrx := ocr.NewExtractor(ocr.Config{
		TesseractLang: cfg.OCR.TesseractLang,
		MinTextChars:  cfg.OCR.MinTextChars,
		DPI:           cfg.OCR.DPI,
		HeicConverter: cfg.OCR.HeicConverter,
		TessdataDir:   cfg.OCR.TessdataDir,
	}, logger)
	textExtractor := extract.NewOCRAdapter(ocrx, logger)

	res, err := textExtractor.Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"path", path,
		"method", res.Method,
		"source_type", res.SourceType,
		"pages", res.Pages,
		"chars", len([]rune(res.Text)),
		"duration_ms", res.Duration.Milliseconds(),
		"warnings", len(res.Warnings),
	)
	fmt.Println(res.Text)
}
