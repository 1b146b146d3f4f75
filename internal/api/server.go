package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/meterdetect/internal/detection"
	"github.com/nerrad567/meterdetect/internal/infrastructure/config"
	"github.com/nerrad567/meterdetect/internal/infrastructure/logging"
	"github.com/nerrad567/meterdetect/internal/monitor"
	"github.com/nerrad567/meterdetect/internal/preset"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ChannelDetectionResult is the WebSocket channel live detection events are broadcast on.
const ChannelDetectionResult = "detection.result"

// EventSource delivers live detection events. *monitor.Monitor satisfies it.
type EventSource interface {
	WatchEvents(handler func(monitor.Event)) (detection.StopFunc, error)
}

// HealthChecker is implemented by components reported on /api/v1/health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Catalog  *preset.Catalog
	Detector *detection.Detector
	Events   EventSource              // optional: live feed for /api/v1/ws
	Checks   map[string]HealthChecker // optional: components reported by /health
	Monitor  MonitorStats             // optional: counters on /metrics
	MQTT     ConnectionState          // optional
	DB       PoolStats                // optional
	Version  string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	catalog  *preset.Catalog
	detector *detection.Detector
	events   EventSource
	checks   map[string]HealthChecker
	monitor  MonitorStats
	mqtt     ConnectionState
	db       PoolStats
	version  string
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
	stopFeed detection.StopFunc

	startTime time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, catalog, detector)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("preset catalog is required")
	}
	if deps.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		catalog:   deps.Catalog,
		detector:  deps.Detector,
		events:    deps.Events,
		checks:    deps.Checks,
		monitor:   deps.Monitor,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger),
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays live detection events to it and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the live feed cannot be attached
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if err := s.relayEvents(); err != nil {
		s.cancel()
		return err
	}

	s.server = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// relayEvents broadcasts every live detection event on ChannelDetectionResult.
func (s *Server) relayEvents() error {
	if s.events == nil {
		return nil
	}
	stop, err := s.events.WatchEvents(func(ev monitor.Event) {
		s.hub.Broadcast(ChannelDetectionResult, ev.Source, ev)
	})
	if err != nil {
		return fmt.Errorf("attaching live detection feed: %w", err)
	}
	s.stopFeed = stop
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.stopFeed != nil {
		s.stopFeed()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
