package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"lozenge/pkg/codegen"
	"lozenge/pkg/config"
	"lozenge/pkg/fastjson"
	"lozenge/pkg/ir"
	"lozenge/pkg/isa"
	"lozenge/pkg/journal"
	"lozenge/pkg/logger"
	"lozenge/pkg/metrics"
	"lozenge/pkg/middleware"
	"lozenge/pkg/runner"
	"lozenge/pkg/vm"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes = 1 << 20
	// runs over HTTP are always bounded
	defaultMaxSteps = 10_000_000
	runTimeout      = 10 * time.Second
)

// Server exposes the generator and machine over a JSON API.
type Server struct {
	cfg     config.Config
	runner  *runner.Runner
	journal *journal.Journal
}

// New builds a server. j may be nil when no journal is configured.
func New(cfg config.Config, j *journal.Journal) *Server {
	maxSteps := cfg.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps
	}
	opts := []runner.Option{
		runner.WithVMOptions(cfg.VMOptions()...),
		runner.WithVMOptions(vm.WithMaxSteps(maxSteps)),
	}
	if j != nil {
		opts = append(opts, runner.WithRecorder(j))
	}
	return &Server{cfg: cfg, runner: runner.New(opts...), journal: j}
}

// Router wires middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(logger.Middleware)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer(s.cfg.Env))
	r.Use(middleware.SecurityHeaders(s.cfg.Env))

	if s.cfg.RateLimitRequests > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
	} else {
		slog.Info("⚠️  Rate Limiting Disabled (RATE_LIMIT_REQUESTS not set)")
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.JWTSecret != "" {
			r.Use(middleware.BearerAuth(s.cfg.JWTSecret))
		}
		r.Use(middleware.BodyLimit(maxBodyBytes))
		r.Post("/run", s.handleRun)
		r.Post("/build", s.handleBuild)
		r.Post("/disasm", s.handleDisasm)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/export", s.handleExport)
	})
	return r
}

var namePolicy = sync.OnceValue(bluemonday.StrictPolicy)

type sourceRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

func decodeSource(r *http.Request) (sourceRequest, error) {
	var req sourceRequest
	if err := fastjson.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.Source) == "" {
		return req, errors.New("source is required")
	}
	// names are echoed back and journaled
	req.Name = strings.TrimSpace(namePolicy().Sanitize(req.Name))
	if req.Name == "" {
		req.Name = "playground"
	}
	return req, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.journal != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := s.journal.Recent(ctx, 1); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "DOWN", "error": "journal unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "OK"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	res, err := s.runner.RunSource(ctx, req.Name, strings.NewReader(req.Source))
	logger.Annotate(r.Context(), "program", req.Name)
	if res == nil {
		writeBuildError(w, err)
		return
	}
	logger.Annotate(r.Context(), "state", res.State, "steps", res.Steps)
	if res.Fault != nil {
		logger.Annotate(r.Context(), "fault", res.Fault.Kind.String(), "pc", res.Fault.PC)
	}

	body := map[string]interface{}{
		"success":     res.State == runner.StateHalted,
		"name":        res.Name,
		"state":       res.State,
		"output":      nonNil(res.Output),
		"steps":       res.Steps,
		"words":       res.Words,
		"duration_ns": res.Duration,
	}
	if res.Fault != nil {
		body["fault"] = res.Fault
	} else if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	prog, err := s.runner.BuildSource(strings.NewReader(req.Source))
	logger.Annotate(r.Context(), "program", req.Name)
	if err != nil {
		writeBuildError(w, err)
		return
	}
	logger.Annotate(r.Context(), "words", len(prog.Words))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"words":   prog.Words,
		"symbols": prog.Symbols,
		"layout":  prog.Layout,
	})
}

func (s *Server) handleDisasm(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	prog, err := s.runner.BuildSource(strings.NewReader(req.Source))
	if err != nil {
		writeBuildError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"entries": isa.Decompile(prog.Words, prog.ListingOptions()),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	entries, ok := s.recentRuns(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "runs": nonNil(entries)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, ok := s.recentRuns(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="lozenge_runs.xlsx"`)
	if err := journal.WriteXLSX(w, entries); err != nil {
		slog.Error("❌ Export failed", "error", err)
	}
}

// recentRuns reads the ?limit'ed journal tail, writing the error response itself on failure.
func (s *Server) recentRuns(w http.ResponseWriter, r *http.Request) ([]journal.Entry, bool) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, errors.New("journal is not configured"))
		return nil, false
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 500"))
			return nil, false
		}
		limit = n
	}
	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("❌ Journal query failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("journal query failed"))
		return nil, false
	}
	return entries, true
}

// writeBuildError reports listing and generation errors as 422 with a line number when known.
func writeBuildError(w http.ResponseWriter, err error) {
	body := map[string]interface{}{"success": false, "error": err.Error()}

	var se *ir.SyntaxError
	var le *codegen.LabelError
	var oe *codegen.OperandError
	var ste *codegen.StructureError
	switch {
	case errors.As(err, &se):
		body["line"] = se.Line
	case errors.As(err, &le):
		body["index"] = le.Line
	case errors.As(err, &oe):
		body["index"] = oe.Line
	case errors.As(err, &ste):
		body["index"] = ste.Line
	case errors.Is(err, vm.ErrProgramTooLarge):
	default:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := fastjson.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
