/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/accounts"
	"github.com/friendsincode/worktime/internal/api"
	"github.com/friendsincode/worktime/internal/audit"
	"github.com/friendsincode/worktime/internal/cache"
	"github.com/friendsincode/worktime/internal/config"
	"github.com/friendsincode/worktime/internal/db"
	"github.com/friendsincode/worktime/internal/eventbus"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/leadership"
	"github.com/friendsincode/worktime/internal/logbuffer"
	"github.com/friendsincode/worktime/internal/settings"
	"github.com/friendsincode/worktime/internal/tasks"
	"github.com/friendsincode/worktime/internal/telemetry"
	"github.com/friendsincode/worktime/internal/version"
	"github.com/friendsincode/worktime/internal/webhooks"
	"github.com/friendsincode/worktime/internal/worktime"
)

const (
	sessionReapInterval = 15 * time.Minute
	dbMetricsInterval   = 30 * time.Second
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db         *gorm.DB
	cache      *cache.Cache
	logBuffer  *logbuffer.Buffer
	bus        *events.Bus
	publisher  events.Publisher
	leader     leadership.Leader
	election   *leadership.Election
	tracer     *telemetry.TracerProvider
	api        *api.API
	accounts   *accounts.Service
	settings   *settings.Service
	tasks      *tasks.Service
	auditSvc   *audit.Service
	webhookSvc *webhooks.Service

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware(telemetry.ServiceName))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Event streams are long-lived.
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout.ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
		leader:    leadership.Always{},
	}
	srv.publisher = srv.bus

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Zero read/write deadlines keep event streams open; the middleware
		// timeout bounds ordinary requests.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		w.Header().Set("Cache-Control", "no-store")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	tp, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		Enabled:        s.cfg.TracingEnabled,
		ServiceName:    telemetry.ServiceName,
		ServiceVersion: version.Version,
		Commit:         version.Get().Commit,
		Environment:    s.cfg.Environment,
		InstanceID:     s.cfg.InstanceID,
		OTLPEndpoint:   s.cfg.OTLPEndpoint,
		SampleRate:     s.cfg.TracingSampleRate,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	s.tracer = tp
	s.DeferClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	})

	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := db.SeedDefaultManager(database, s.cfg.SeedManagerPassword, s.logger); err != nil {
		return fmt.Errorf("seed manager: %w", err)
	}

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return entityCache.Close() })
		}
	}

	if s.cfg.NATSURL != "" {
		natsBus, err := eventbus.NewNATSBus(eventbus.DefaultNATSConfig(s.cfg.NATSURL), s.bus, s.cfg.InstanceID, s.logger)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		s.publisher = natsBus
		s.DeferClose(natsBus.Close)
	} else if s.cfg.RedisEventsEnabled {
		busCfg := eventbus.DefaultRedisConfig()
		busCfg.Addr = s.cfg.RedisAddr
		busCfg.Password = s.cfg.RedisPassword
		busCfg.DB = s.cfg.RedisDB

		redisBus, err := eventbus.NewRedisBus(busCfg, s.bus, s.cfg.InstanceID, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("redis event bus unavailable, events stay in-process")
		} else {
			s.publisher = redisBus
			s.DeferClose(redisBus.Close)
		}
	}

	if s.cfg.LeaderElectionEnabled {
		electionCfg := leadership.DefaultConfig()
		electionCfg.RedisAddr = s.cfg.RedisAddr
		electionCfg.RedisPassword = s.cfg.RedisPassword
		electionCfg.RedisDB = s.cfg.RedisDB
		if s.cfg.InstanceID != "" {
			electionCfg.InstanceID = s.cfg.InstanceID
		}
		election, err := leadership.NewElection(electionCfg, s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}
		s.election = election
		s.leader = election
		s.DeferClose(election.Stop)

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", electionCfg.InstanceID).
			Msg("leader election enabled for maintenance jobs")
	}

	window, err := s.cfg.DefaultWindow()
	if err != nil {
		return err
	}
	publicHolidays, err := worktime.PublicHolidays(s.cfg.PublicHolidays)
	if err != nil {
		return err
	}

	s.accounts = accounts.NewService(database, s.publisher, s.cache, []byte(s.cfg.JWTSigningKey), s.cfg.JWTTTL, s.logger)
	s.settings = settings.NewService(database, s.publisher, s.cache, settings.Options{
		DefaultWindow:  window,
		PublicHolidays: publicHolidays,
	}, s.logger)
	s.tasks = tasks.NewService(database, s.publisher, s.settings, s.logger)
	s.auditSvc = audit.NewService(database, s.bus, s.logger)
	s.webhookSvc = webhooks.NewService(database, s.bus, s.logger)

	s.api = api.New(database, []byte(s.cfg.JWTSigningKey), s.accounts, s.tasks, s.settings, s.auditSvc, s.webhookSvc, s.publisher, s.logBuffer, s.logger)
	s.api.SetEventStream(s.bus)
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close stops background work and releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Subscriptions are registered before the first request is served.
	s.auditSvc.Start(ctx)
	s.webhookSvc.Start(ctx)
	s.settings.Watch(ctx, s.bus)

	if s.election != nil {
		if err := s.election.Start(ctx); err != nil {
			s.logger.Error().Err(err).Msg("leader election failed to start")
		}
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		leadership.RunWhenLeader(ctx, s.leader, sessionReapInterval, s.logger, "session-reaper", func(ctx context.Context) error {
			_, err := s.accounts.ReapSessions(ctx, s.cfg.SessionMaxAge)
			return err
		})
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(dbMetricsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.auditSvc.Wait()
	s.webhookSvc.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "ok",
		"version": version.Version,
		"build":   version.Get(),
	}
	status := http.StatusOK

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		response["status"] = "degraded"
		response["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if s.election != nil {
		response["leader"] = s.election.IsLeader()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
