// Package httpapi serves the admin HTTP surface: health, counters, library
// folders, XLSX exports and settings reload.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/export"
	"github.com/joseph-ayodele/docrouter/internal/indexer"
	"github.com/joseph-ayodele/docrouter/internal/pipeline"
	"github.com/joseph-ayodele/docrouter/internal/repository"
	"github.com/joseph-ayodele/docrouter/internal/utils"
)

const (
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultExportJobs = 500
)

type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error
}

type Reloader interface {
	Reload(ctx context.Context) error
}

// Deps are the components the handlers read from.
type Deps struct {
	DB        HealthChecker
	Config    pipeline.ConfigSource
	Reloader  Reloader
	Documents repository.DocumentRepository
	Export    *export.Service
	// Stats returns the counters shown by /api/stats.
	Stats  func() map[string]any
	Logger *slog.Logger
}

type Server struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, logger: logger}
}

// Router returns the chi router with every admin route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/library/folders", s.handleFolders)
		r.Get("/documents", s.handleDocuments)
		r.Get("/export/documents.xlsx", s.handleExportDocuments)
		r.Get("/export/jobs.xlsx", s.handleExportJobs)
		r.Post("/config/reload", s.handleReload)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		reqID := middleware.GetReqID(r.Context())
		next.ServeHTTP(ww, r.WithContext(common.WithRequestID(r.Context(), reqID)))
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", reqID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(r.Context(), 2*time.Second, s.logger); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	out := map[string]any{}
	if s.deps.Stats != nil {
		out = s.deps.Stats()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFolders(w http.ResponseWriter, _ *http.Request) {
	cfg := s.deps.Config.Current()
	folders, err := indexer.Folders(cfg.Paths.LibraryDir, indexer.DefaultFolderDepth)
	if err != nil {
		s.logger.Error("list library folders failed", "error", err)
		http.Error(w, "list folders failed", http.StatusInternalServerError)
		return
	}
	if folders == nil {
		folders = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	loc, ok := parseLocation(r)
	if !ok {
		http.Error(w, "location must be library or failed", http.StatusBadRequest)
		return
	}
	docs, err := s.deps.Documents.List(r.Context(), loc)
	if err != nil {
		s.logger.Error("list documents failed", "error", err)
		http.Error(w, "list documents failed", http.StatusInternalServerError)
		return
	}
	items := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		items = append(items, utils.DocumentMap(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": items})
}

func (s *Server) handleExportDocuments(w http.ResponseWriter, r *http.Request) {
	loc, ok := parseLocation(r)
	if !ok {
		http.Error(w, "location must be library or failed", http.StatusBadRequest)
		return
	}
	var buf bytes.Buffer
	if _, err := s.deps.Export.WriteDocuments(r.Context(), &buf, loc); err != nil {
		s.logger.Error("export.documents.failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	writeXLSX(w, "documents.xlsx", buf.Bytes())
}

func (s *Server) handleExportJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultExportJobs
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	var buf bytes.Buffer
	if _, err := s.deps.Export.WriteJobs(r.Context(), &buf, limit); err != nil {
		s.logger.Error("export.jobs.failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	writeXLSX(w, "jobs.xlsx", buf.Bytes())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reloader != nil {
		if err := s.deps.Reloader.Reload(r.Context()); err != nil {
			http.Error(w, "reload failed", http.StatusInternalServerError)
			return
		}
	}
	cfg := s.deps.Config.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		common.KeyScanEnabled:         cfg.Scan.Enabled,
		common.KeyScanIntervalSeconds: cfg.Scan.IntervalSeconds,
		common.KeyTesseractLang:       cfg.OCR.TesseractLang,
		common.KeyPDFTextMinChars:     cfg.OCR.MinTextChars,
	})
}

func parseLocation(r *http.Request) (constants.Location, bool) {
	switch loc := constants.Location(r.URL.Query().Get("location")); loc {
	case "", constants.LocationLibrary, constants.LocationFailed:
		return loc, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeXLSX(w http.ResponseWriter, name string, b []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}
