package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/famtasks/internal/alert"
	"github.com/dukerupert/famtasks/internal/auth"
	"github.com/dukerupert/famtasks/internal/handler"
	"github.com/dukerupert/famtasks/internal/middleware"
	"github.com/dukerupert/famtasks/internal/store"
	"github.com/dukerupert/famtasks/internal/task"
	ws "github.com/dukerupert/famtasks/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Config struct {
	JWTSecret     string
	TokenTTL      time.Duration
	Location      *time.Location
	AlertInterval time.Duration
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	familyH        *handler.FamilyHandler
	taskH          *handler.TaskHandler
	statsH         *handler.StatsHandler
	familyStore    *store.FamilyStore
	issuer         *auth.TokenIssuer
	rateLimiter    *middleware.RateLimiter
	alertScheduler *alert.Scheduler
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	taskStore := store.NewTaskStore(db)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	var opts []task.Option
	if cfg.Location != nil {
		opts = append(opts, task.WithLocation(cfg.Location))
	}
	taskSvc := task.NewService(taskStore, familyStore, logger.With("component", "task"), opts...)

	interval := cfg.AlertInterval
	if interval <= 0 {
		interval = time.Minute
	}

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(familyStore, issuer, logger.With("component", "auth")),
		familyH:        handler.NewFamilyHandler(familyStore, hub, logger.With("component", "family")),
		taskH:          handler.NewTaskHandler(taskSvc, hub, logger.With("component", "task_handler")),
		statsH:         handler.NewStatsHandler(taskSvc, logger.With("component", "stats")),
		familyStore:    familyStore,
		issuer:         issuer,
		rateLimiter:    middleware.NewRateLimiter(),
		alertScheduler: alert.NewScheduler(taskStore, taskSvc, hub, interval, logger.With("component", "alert")),
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// AlertScheduler returns the overdue alert scheduler.
func (s *Server) AlertScheduler() *alert.Scheduler {
	return s.alertScheduler
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	mux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protect := middleware.RequireAuth(s.issuer, s.familyStore)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	handle("GET /api/family", s.familyH.Get)
	handle("GET /api/members", s.familyH.ListMembers)
	handle("POST /api/members", s.familyH.CreateMember)

	handle("GET /api/tasks", s.taskH.List)
	handle("POST /api/tasks", s.taskH.Create)
	handle("GET /api/tasks/{id}", s.taskH.Get)
	handle("PUT /api/tasks/{id}", s.taskH.Update)
	handle("DELETE /api/tasks/{id}", s.taskH.Delete)
	handle("PUT /api/tasks/{id}/assign", s.taskH.Assign)
	handle("POST /api/tasks/{id}/comments", s.taskH.AddComment)
	handle("POST /api/tasks/{id}/complete", s.taskH.Complete)

	handle("GET /api/stats/members", s.statsH.Members)
	handle("GET /api/stats/history", s.statsH.History)
	handle("GET /api/alerts/overdue", s.statsH.Overdue)

	handle("GET /ws", ws.HandleWebSocket(s.hub))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(mux)
	return middleware.Trace(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, authRateLimit, authRateWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
