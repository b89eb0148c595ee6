// Package web exposes the monitoring state over an HTTP API, including
// a server-sent-events stream of live samples, route changes, and
// alerts.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/user/pathwatch/internal/live"
	"github.com/user/pathwatch/internal/model"
)

// Controller is the engine surface the API drives: registering and
// cancelling recurring trace jobs.
type Controller interface {
	Activate(target model.Target) error
	Deactivate(targetID int64)
}

// TargetStore is the target persistence surface.
type TargetStore interface {
	Create(ctx context.Context, t *model.Target) error
	Get(ctx context.Context, id int64) (*model.Target, error)
	List(ctx context.Context) ([]model.Target, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// SampleStore is the sample query surface.
type SampleStore interface {
	Recent(ctx context.Context, targetID int64, hopNumber, limit int) ([]model.Sample, error)
	HopNumbers(ctx context.Context, targetID int64) ([]int, error)
	Timeline(ctx context.Context, targetID int64, hopNumber int, since, until time.Time) ([]model.Sample, error)
}

// RouteStore is the route-history query surface.
type RouteStore interface {
	LastRoute(ctx context.Context, targetID int64) ([]string, error)
	Changes(ctx context.Context, targetID int64, limit int) ([]model.RouteChange, error)
}

// AlertStore is the alert rule and event surface.
type AlertStore interface {
	CreateRule(ctx context.Context, r *model.AlertRule) error
	Rules(ctx context.Context, targetID int64, enabledOnly bool) ([]model.AlertRule, error)
	DeleteRule(ctx context.Context, id int64) (bool, error)
	SetRuleEnabled(ctx context.Context, id int64, enabled bool) error
	Events(ctx context.Context, targetID int64, limit int) ([]model.AlertEvent, error)
}

// Server wires the stores, the engine, and the live hub into an HTTP
// handler tree.
type Server struct {
	logger  *zap.Logger
	targets TargetStore
	samples SampleStore
	routes  RouteStore
	alerts  AlertStore
	engine  Controller
	hub     *live.Hub

	probeDefaults model.ProbeConfig
	focusSize     int
}

// Options collects the server's collaborators.
type Options struct {
	Logger        *zap.Logger
	Targets       TargetStore
	Samples       SampleStore
	Routes        RouteStore
	Alerts        AlertStore
	Engine        Controller
	Hub           *live.Hub
	ProbeDefaults model.ProbeConfig
	FocusSize     int
}

// NewServer creates an API server.
func NewServer(opts Options) *Server {
	if opts.FocusSize <= 0 {
		opts.FocusSize = 10
	}
	return &Server{
		logger:        opts.Logger,
		targets:       opts.Targets,
		samples:       opts.Samples,
		routes:        opts.Routes,
		alerts:        opts.Alerts,
		engine:        opts.Engine,
		hub:           opts.Hub,
		probeDefaults: opts.ProbeDefaults,
		focusSize:     opts.FocusSize,
	}
}

// Router builds the handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/targets", func(r chi.Router) {
		r.Get("/", s.handleListTargets)
		r.Post("/", s.handleAddTarget)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTarget)
			r.Delete("/", s.handleDeleteTarget)
			r.Post("/pause", s.handlePauseTarget)
			r.Post("/resume", s.handleResumeTarget)
			r.Get("/stats", s.handleHopStats)
			r.Get("/timeline", s.handleTimeline)
			r.Get("/route", s.handleRoute)
			r.Get("/route/changes", s.handleRouteChanges)
			r.Get("/live", s.handleLive)
			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", s.handleListRules)
				r.Post("/", s.handleAddRule)
				r.Get("/events", s.handleAlertEvents)
			})
		})
	})

	r.Route("/api/alerts/{ruleID}", func(r chi.Router) {
		r.Delete("/", s.handleDeleteRule)
		r.Post("/enable", s.handleEnableRule)
		r.Post("/disable", s.handleDisableRule)
	})

	return r
}
