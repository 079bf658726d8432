package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/pipeline"
)

func TestApplyFlagsUsesDirAsIngestRoot(t *testing.T) {
	dir := t.TempDir()
	cfg := common.DefaultConfig()
	cfg.Paths.IngestDir = filepath.Join(t.TempDir(), "elsewhere")

	if err := applyFlags(cfg, true, dir); err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.IngestDir != dir {
		t.Errorf("ingest dir = %q, want %q", cfg.Paths.IngestDir, dir)
	}
	if cfg.Database.DSN != ":memory:" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if got := pipeline.IngestSubdir(cfg.Paths.IngestDir, filepath.Join(dir, "clients", "north", "a.pdf")); got != "clients/north" {
		t.Errorf("routed sub-folder = %q, want clients/north", got)
	}
}

func TestApplyFlagsRejectsBadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.pdf")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{filepath.Join(t.TempDir(), "missing"), file} {
		if err := applyFlags(common.DefaultConfig(), false, dir); err == nil {
			t.Errorf("applyFlags(%q) succeeded", dir)
		}
	}
}
