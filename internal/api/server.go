package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-display/internal/supervisor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DisplaySource looks up configured displays. *supervisor.Supervisor
// satisfies it.
type DisplaySource interface {
	Lookup(key string) (*display.Device, bool)
	Devices() []*display.Device
}

// StatusSource reports device counts for the health endpoint.
type StatusSource interface {
	StatusCounts() supervisor.DeviceCounts
}

// Subscriber is the MQTT surface used by the join relay. *mqtt.Client
// satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Displays DisplaySource
	Status   StatusSource
	MQTT     Subscriber // optional; without it the join relay is disabled
	BusID    string
	Version  string
}

// Server is the HTTP API server of the display bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	displays DisplaySource
	status   StatusSource
	mqtt     Subscriber
	busID    string
	version  string
	topics   mqtt.Topics

	mu         sync.Mutex
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc
	relayTopic string
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Displays == nil {
		return nil, fmt.Errorf("display source is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		displays: deps.Displays,
		status:   deps.Status,
		mqtt:     deps.MQTT,
		busID:    deps.BusID,
		version:  deps.Version,
		hub:      NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start runs the WebSocket hub, subscribes the join relay and launches the
// HTTP listener in a background goroutine. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	if err := s.subscribeJoinUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to join updates for WebSocket", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		s.logger.Info("API server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	relayTopic := s.relayTopic
	s.server = nil
	s.cancel = nil
	s.relayTopic = ""
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if relayTopic != "" && s.mqtt != nil {
		if err := s.mqtt.Unsubscribe(relayTopic); err != nil {
			s.logger.Debug("join relay unsubscribe failed", "topic", relayTopic, "error", err)
		}
	}
	if cancel != nil {
		cancel()
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelShutdown()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
