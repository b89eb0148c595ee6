// Package daemon runs the monitoring service: scheduler, HTTP API,
// PID file, and signal handling.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/pathwatch/internal/alerts"
	"github.com/user/pathwatch/internal/dnscache"
	"github.com/user/pathwatch/internal/engine"
	"github.com/user/pathwatch/internal/live"
	"github.com/user/pathwatch/internal/logging"
	"github.com/user/pathwatch/internal/model"
	"github.com/user/pathwatch/internal/probes"
	"github.com/user/pathwatch/internal/route"
	"github.com/user/pathwatch/internal/storage"
	"github.com/user/pathwatch/internal/util"
	"github.com/user/pathwatch/internal/web"
)

// Daemon wires storage, probing, the sampling engine, and the HTTP API
// into one background service.
type Daemon struct {
	config *util.Config
	logger *zap.Logger
	db     *storage.DB
	engine *engine.Engine
	server *http.Server
	hub    *live.Hub

	targets *storage.TargetStorage

	pidFile   string
	startTime time.Time

	mu      sync.RWMutex
	running bool
}

// New builds a daemon from the configuration. Nothing starts running
// until Run is called.
func New(cfg *util.Config) (*Daemon, error) {
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	tracer, err := probes.Detect(model.PacketType(cfg.ProbePacketType), logger)
	if err != nil && !errors.Is(err, probes.ErrProbeToolUnavailable) {
		db.Close()
		return nil, fmt.Errorf("failed to detect probe tool: %w", err)
	}
	if tracer == nil {
		// Keep the service up; every run will log the missing tool and
		// the targets stay scheduled for when it appears.
		tracer = probes.Unavailable()
	}

	targets := storage.NewTargetStorage(db)
	samples := storage.NewSampleStorage(db)
	routes := storage.NewRouteStorage(db)
	alertStore := storage.NewAlertStorage(db)

	resolver := dnscache.New(cfg.DNSCacheSize, cfg.DNSLookupTimeout)
	hub := live.NewHub()
	dispatcher := alerts.NewActionDispatcher(logger)
	evaluator := alerts.NewEvaluator(dispatcher.Async(), cfg.AlertRenotifyInterval, logger)
	detector := route.NewDetector(routes, cfg.RouteIgnoreTimeouts)

	eng, err := engine.New(engine.Options{
		Tracer:    tracer,
		Resolver:  resolver,
		Samples:   samples,
		Rules:     alertStore,
		Events:    alertStore,
		Detector:  detector,
		Evaluator: evaluator,
		Hub:       hub,
		Logger:    logger,
		FocusSize: cfg.DefaultFocusSize,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	api := web.NewServer(web.Options{
		Logger:        logger,
		Targets:       targets,
		Samples:       samples,
		Routes:        routes,
		Alerts:        alertStore,
		Engine:        eng,
		Hub:           hub,
		ProbeDefaults: cfg.ProbeDefaults(),
		FocusSize:     cfg.DefaultFocusSize,
	})

	return &Daemon{
		config:  cfg,
		logger:  logger,
		db:      db,
		engine:  eng,
		hub:     hub,
		targets: targets,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.WebPort),
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		pidFile: filepath.Join(cfg.DataDir, pidFileName),
	}, nil
}

// Run starts the daemon and blocks until a stop signal arrives or a
// component fails.
func (d *Daemon) Run() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer d.removePIDFile()
	defer d.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	active, err := d.targets.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active targets: %w", err)
	}
	for _, t := range active {
		if err := d.engine.Activate(t); err != nil {
			return err
		}
	}
	d.engine.Start()
	d.logger.Info("daemon started",
		zap.Int("pid", os.Getpid()),
		zap.Int("active_targets", len(active)),
		zap.Int("web_port", d.config.WebPort))

	if err := d.writeStatusFile(len(active)); err != nil {
		d.logger.Warn("failed to write status file", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		d.logger.Info("daemon stopping")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("http shutdown incomplete", zap.Error(err))
		}
		return d.engine.Shutdown()
	})

	err = g.Wait()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	if closeErr := d.db.Close(); closeErr != nil {
		d.logger.Warn("failed to close database", zap.Error(closeErr))
	}
	d.logger.Info("daemon stopped")
	return err
}

func (d *Daemon) writePIDFile() error {
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (d *Daemon) removePIDFile() {
	os.Remove(d.pidFile)
}

func (d *Daemon) writeStatusFile(activeTargets int) error {
	return WriteStatusFile(d.config.DataDir, &Status{
		Running:       true,
		PID:           os.Getpid(),
		StartTime:     d.startTime,
		WebPort:       d.config.WebPort,
		ActiveTargets: activeTargets,
	})
}
