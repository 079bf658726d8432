package common

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Runtime-overridable setting keys, stored in the app_config table.
const (
	KeyScanEnabled         = "scan_enabled"
	KeyScanIntervalSeconds = "scan_interval_seconds"
	KeyTesseractLang       = "tesseract_lang"
	KeyPDFTextMinChars     = "pdf_text_min_chars"
)

// OverrideKeys lists the keys seeded into the app_config table.
var OverrideKeys = []string{
	KeyScanEnabled,
	KeyScanIntervalSeconds,
	KeyTesseractLang,
	KeyPDFTextMinChars,
}

// OverrideSource loads stored overrides; empty values mean "not set".
type OverrideSource func(ctx context.Context) (map[string]string, error)

// Holder hands out immutable config snapshots. Reload swaps the snapshot
// atomically so readers never observe a half-applied change.
type Holder struct {
	base   Config
	src    OverrideSource
	logger *slog.Logger

	cur atomic.Pointer[Config]
	mu  sync.Mutex // serializes Reload
}

func NewHolder(base *Config, src OverrideSource, logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Holder{base: *base, src: src, logger: logger}
	snap := *base
	h.cur.Store(&snap)
	return h
}

// Current returns the active snapshot. Callers must not modify it.
func (h *Holder) Current() *Config {
	return h.cur.Load()
}

// Reload re-reads the override source and publishes a new snapshot built
// from the base configuration. Invalid override values are logged and ignored.
func (h *Holder) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.src == nil {
		return nil
	}
	kv, err := h.src(ctx)
	if err != nil {
		h.logger.Error("config reload failed", "error", err)
		return fmt.Errorf("load overrides: %w", err)
	}
	next, errs := ApplyOverrides(h.base, kv)
	for _, e := range errs {
		h.logger.Warn("ignoring config override", "error", e)
	}
	h.cur.Store(&next)
	h.logger.Info("config reloaded",
		"scan_enabled", next.Scan.Enabled,
		"scan_interval_seconds", next.Scan.IntervalSeconds,
		"tesseract_lang", next.OCR.TesseractLang,
		"pdf_text_min_chars", next.OCR.MinTextChars,
	)
	return nil
}

// ApplyOverrides returns base with the recognised, non-empty overrides applied.
func ApplyOverrides(base Config, kv map[string]string) (Config, []error) {
	out := base
	var errs []error
	for key, raw := range kv {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		switch key {
		case KeyScanEnabled:
			b, ok := parseBool(v)
			if !ok {
				errs = append(errs, fmt.Errorf("%s: invalid bool %q", key, v))
				continue
			}
			out.Scan.Enabled = b
		case KeyScanIntervalSeconds:
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				errs = append(errs, fmt.Errorf("%s: invalid interval %q", key, v))
				continue
			}
			out.Scan.IntervalSeconds = n
		case KeyTesseractLang:
			out.OCR.TesseractLang = v
		case KeyPDFTextMinChars:
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				errs = append(errs, fmt.Errorf("%s: threshold must be a positive integer, got %q", key, v))
				continue
			}
			out.OCR.MinTextChars = n
		}
	}
	return out, errs
}
