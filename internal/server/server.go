// Package server exposes the operations API: health, job history, company
// listings, rate-limit status and asynchronous stage triggers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/pipeline"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store is the subset of the record store the API reads.
type Store interface {
	FindJobRuns(ctx context.Context, filter store.JobFilter) ([]model.JobRun, error)
	ListCompanies(ctx context.Context, userID string, filter store.CompanyFilter) ([]model.Company, error)
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
}

// Runner executes stages.
type Runner interface {
	Run(ctx context.Context, stage model.JobType, s *model.Settings, trigger pipeline.Trigger) (*pipeline.Report, error)
}

// Jobs reports whether a stage is already running.
type Jobs interface {
	IsRunning(ctx context.Context, userID string, jobType model.JobType) (bool, error)
}

// Limits reports quota state.
type Limits interface {
	Quota(api string) (ratelimit.Quota, bool)
	Allowed(ctx context.Context, userID, api string) (ratelimit.Decision, error)
}

// Server holds the API dependencies. Stage triggers run on the base
// context passed to New, so they outlive the request that started them.
type Server struct {
	base    context.Context
	store   Store
	runner  Runner
	jobs    Jobs
	limits  Limits
	origins []string

	wg sync.WaitGroup
}

// New creates a Server.
func New(base context.Context, st Store, runner Runner, jobs Jobs, limits Limits, origins []string) *Server {
	return &Server{base: base, store: st, runner: runner, jobs: jobs, limits: limits, origins: origins}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/users/{user}", func(r chi.Router) {
		r.Get("/jobs", s.listJobs)
		r.Get("/companies", s.listCompanies)
		r.Post("/stages/{stage}", s.triggerStage)
		r.Get("/rate-limits/{api}", s.rateLimit)
	})
	return r
}

// Wait blocks until triggered stages have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	filter := store.JobFilter{
		UserID: chi.URLParam(r, "user"),
		Status: model.JobStatus(r.URL.Query().Get("status")),
		Limit:  limit,
	}
	if jt := r.URL.Query().Get("type"); jt != "" {
		stage, err := pipeline.ParseStage(jt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.JobType = stage
	}

	runs, err := s.store.FindJobRuns(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list jobs", err)
		return
	}
	if runs == nil {
		runs = []model.JobRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	filter := store.CompanyFilter{Limit: limit}
	if raw := r.URL.Query().Get("stage"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := model.ParseStage(strings.TrimSpace(part))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			filter.Stages = append(filter.Stages, st)
		}
	}

	companies, err := s.store.ListCompanies(r.Context(), chi.URLParam(r, "user"), filter)
	if err != nil {
		s.internalError(w, "list companies", err)
		return
	}
	if companies == nil {
		companies = []model.Company{}
	}
	writeJSON(w, http.StatusOK, companies)
}

func (s *Server) triggerStage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	stage, err := pipeline.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := s.store.GetSettings(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no settings for user")
		return
	}
	if err != nil {
		s.internalError(w, "load settings", err)
		return
	}

	guardUser := userID
	if stage == model.JobCleanup {
		guardUser = pipeline.SystemUser
	}
	running, err := s.jobs.IsRunning(r.Context(), guardUser, stage)
	if err != nil {
		s.internalError(w, "check running", err)
		return
	}
	if running {
		writeError(w, http.StatusConflict, "stage already running")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log := zap.L().With(zap.String("user", userID), zap.String("stage", string(stage)))
		rep, err := s.runner.Run(s.base, stage, settings, pipeline.TriggerManual)
		if err != nil {
			log.Error("server: triggered stage failed", zap.Error(err))
			return
		}
		if rep.Skipped != "" {
			log.Info("server: triggered stage skipped", zap.String("reason", rep.Skipped))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"user":   userID,
		"stage":  string(stage),
	})
}

type rateLimitStatus struct {
	API               string  `json:"api"`
	Allowed           bool    `json:"allowed"`
	RetryAfterSeconds float64 `json:"retry_after_seconds"`
	Requests          int     `json:"requests"`
	WindowSeconds     float64 `json:"window_seconds"`
}

func (s *Server) rateLimit(w http.ResponseWriter, r *http.Request) {
	api := chi.URLParam(r, "api")
	q, ok := s.limits.Quota(api)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown api")
		return
	}
	d, err := s.limits.Allowed(r.Context(), chi.URLParam(r, "user"), api)
	if err != nil {
		s.internalError(w, "check rate limit", err)
		return
	}
	writeJSON(w, http.StatusOK, rateLimitStatus{
		API:               api,
		Allowed:           d.Allowed,
		RetryAfterSeconds: d.RetryAfter.Seconds(),
		Requests:          q.Requests,
		WindowSeconds:     q.Window.Seconds(),
	})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, maxListLimit), true
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("server: "+action, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
