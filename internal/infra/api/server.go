package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-start-bot/internal/config"
	"telegram-start-bot/internal/infra/logging"
	"telegram-start-bot/internal/infra/metrics"
	"telegram-start-bot/internal/usecase"
)

// Pinger reports store reachability. *postgres.Connector satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the admin HTTP surface: health, metrics and read-only stats.
type Server struct {
	stats usecase.StatsUseCase // nil when the store is unavailable
	db    Pinger
	auth  *AuthManager
	log   *zerolog.Logger
	srv   *http.Server
}

func NewServer(cfg config.AdminConfig, stats usecase.StatsUseCase, db Pinger, logger *zerolog.Logger) *Server {
	s := &Server{stats: stats, db: db, log: logger}
	if cfg.JWTSecret != "" {
		s.auth = NewAuthManager(cfg.JWTSecret, 0)
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(10*time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if s.auth != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/stats", s.handleStats)
		})
	} else {
		s.log.Info().Msg("admin jwt secret not set; /api/v1 disabled")
	}
	return r
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("admin server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type statsBody struct {
	Users         int `json:"users"`
	InactiveUsers int `json:"inactive_users"`
	InactiveDays  int `json:"inactive_days"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthBody{Status: "degraded", Database: "disabled"})
		return
	}
	if err := s.db.Ping(r.Context()); err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("health check: database unreachable")
		writeJSON(w, http.StatusServiceUnavailable, healthBody{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "ok", Database: "ok"})
}

const defaultInactiveDays = 7

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store unavailable"})
		return
	}
	ctx := r.Context()
	total, err := s.stats.Totals(ctx)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("stats: count users")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to load stats"})
		return
	}
	inactive, err := s.stats.InactiveUsers(ctx, time.Now().AddDate(0, 0, -defaultInactiveDays))
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("stats: count inactive users")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to load stats"})
		return
	}
	writeJSON(w, http.StatusOK, statsBody{Users: total, InactiveUsers: inactive, InactiveDays: defaultInactiveDays})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
