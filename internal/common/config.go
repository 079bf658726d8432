package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "DOCROUTER_"

// Config holds all application configuration
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	Scan     ScanConfig     `yaml:"scan"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Log      LogConfig      `yaml:"log"`

	// TemplatesFile optionally points at a YAML file of templates to seed.
	TemplatesFile string `yaml:"templates_file"`
}

// PathsConfig holds the four managed directory trees.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir"`
	IngestDir  string `yaml:"ingest_dir"`
	LibraryDir string `yaml:"library_dir"`
	FailedDir  string `yaml:"failed_dir"`
	TmpDir     string `yaml:"tmp_dir"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractLang string `yaml:"tesseract_lang"`
	MinTextChars  int    `yaml:"pdf_text_min_chars"`
	DPI           int    `yaml:"pdf_ocr_dpi"`
	HeicConverter string `yaml:"heic_converter"`
	TessdataDir   string `yaml:"tessdata_dir"`
}

// ScanConfig controls the periodic library indexer.
type ScanConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// IngestConfig controls the arrival watcher and field parsing.
type IngestConfig struct {
	InitialScan    bool          `yaml:"initial_scan"`
	SettleInterval time.Duration `yaml:"settle_interval"`
	SettleAttempts int           `yaml:"settle_attempts"`
	DateOrder      string        `yaml:"date_order"` // "dmy" or "mdy"
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the built-in defaults rooted at ./data.
func DefaultConfig() *Config {
	c := &Config{
		Paths: PathsConfig{DataDir: "./data"},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
			HTTPAddr: ":8081",
		},
		OCR: OCRConfig{
			TesseractLang: "eng",
			MinTextChars:  25,
			DPI:           200,
			HeicConverter: "magick",
		},
		Scan: ScanConfig{
			Enabled:         true,
			IntervalSeconds: 15,
		},
		Ingest: IngestConfig{
			InitialScan:    true,
			SettleInterval: 250 * time.Millisecond,
			SettleAttempts: 24,
			DateOrder:      "dmy",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
	return c
}

// LoadConfig loads defaults, then the optional YAML file named by
// DOCROUTER_CONFIG_FILE, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := getEnv(envPrefix+"CONFIG_FILE", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.deriveDefaults()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	p := envPrefix
	c.Paths.DataDir = getEnv(p+"DATA_DIR", c.Paths.DataDir)
	c.Paths.IngestDir = getEnv(p+"INGEST_DIR", c.Paths.IngestDir)
	c.Paths.LibraryDir = getEnv(p+"LIBRARY_DIR", c.Paths.LibraryDir)
	c.Paths.FailedDir = getEnv(p+"FAILED_DIR", c.Paths.FailedDir)
	c.Paths.TmpDir = getEnv(p+"TMP_DIR", c.Paths.TmpDir)

	c.Database.DSN = getEnv(p+"DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32(p+"DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32(p+"DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration(p+"DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration(p+"DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration(p+"DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration(p+"DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv(p+"GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.HTTPAddr = getEnv(p+"HTTP_ADDR", c.Server.HTTPAddr)

	c.OCR.TesseractLang = getEnv(p+"TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.MinTextChars = getEnvAsInt(p+"PDF_TEXT_MIN_CHARS", c.OCR.MinTextChars)
	c.OCR.DPI = getEnvAsInt(p+"PDF_OCR_DPI", c.OCR.DPI)
	c.OCR.HeicConverter = getEnv(p+"HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)

	c.Scan.Enabled = getEnvAsBool(p+"SCAN_ENABLED", c.Scan.Enabled)
	c.Scan.IntervalSeconds = getEnvAsInt(p+"SCAN_INTERVAL_SECONDS", c.Scan.IntervalSeconds)

	c.Ingest.InitialScan = getEnvAsBool(p+"INITIAL_SCAN", c.Ingest.InitialScan)
	c.Ingest.SettleInterval = getEnvAsDuration(p+"SETTLE_INTERVAL", c.Ingest.SettleInterval)
	c.Ingest.SettleAttempts = getEnvAsInt(p+"SETTLE_ATTEMPTS", c.Ingest.SettleAttempts)
	c.Ingest.DateOrder = strings.ToLower(getEnv(p+"DATE_ORDER", c.Ingest.DateOrder))
	c.Ingest.ProcessTimeout = getEnvAsDuration(p+"PROCESS_TIMEOUT", c.Ingest.ProcessTimeout)

	c.Log.Level = getEnv(p+"LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv(p+"LOG_FORMAT", c.Log.Format)

	c.TemplatesFile = getEnv(p+"TEMPLATES_FILE", c.TemplatesFile)
}

// deriveDefaults fills unset directories and the DSN from DataDir.
func (c *Config) deriveDefaults() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "./data"
	}
	sub := func(cur, name string) string {
		if cur != "" {
			return cur
		}
		return filepath.Join(c.Paths.DataDir, name)
	}
	c.Paths.IngestDir = sub(c.Paths.IngestDir, "ingest")
	c.Paths.LibraryDir = sub(c.Paths.LibraryDir, "library")
	c.Paths.FailedDir = sub(c.Paths.FailedDir, "failed")
	c.Paths.TmpDir = sub(c.Paths.TmpDir, "tmp")
	if c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(c.Paths.DataDir, "docrouter.db")
	}
}

// EnsureDirs creates the drop, library, quarantine and temp trees.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.Paths.IngestDir, c.Paths.LibraryDir, c.Paths.FailedDir, c.Paths.TmpDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return NewAppError("CONFIG_ERROR", fmt.Sprintf("create directory %s", d), err)
		}
	}
	return nil
}

// DayFirst reports whether ambiguous numeric dates read day before month.
func (c *Config) DayFirst() bool {
	return c.Ingest.DateOrder != "mdy"
}

// ScanInterval is the indexer period, never below the 10 second floor.
func (c *Config) ScanInterval() time.Duration {
	s := c.Scan.IntervalSeconds
	if s <= 0 {
		s = 15
	}
	if s < 10 {
		s = 10
	}
	return time.Duration(s) * time.Second
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, ok := parseBool(value); ok {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	for name, dir := range map[string]string{
		"INGEST_DIR":  c.Paths.IngestDir,
		"LIBRARY_DIR": c.Paths.LibraryDir,
		"FAILED_DIR":  c.Paths.FailedDir,
		"TMP_DIR":     c.Paths.TmpDir,
	} {
		if dir == "" {
			return NewAppError("CONFIG_ERROR", name+" is required", ErrInvalidInput)
		}
	}
	if c.OCR.MinTextChars < 0 {
		return NewAppError("CONFIG_ERROR", "PDF_TEXT_MIN_CHARS must not be negative", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "PDF_OCR_DPI must be positive", ErrInvalidInput)
	}
	if c.Ingest.DateOrder != "dmy" && c.Ingest.DateOrder != "mdy" {
		return NewAppError("CONFIG_ERROR", "DATE_ORDER must be dmy or mdy", ErrInvalidInput)
	}
	if c.Ingest.SettleAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", "SETTLE_ATTEMPTS must be positive", ErrInvalidInput)
	}
	return nil
}
