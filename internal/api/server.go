// Package api provides the HTTP REST API and WebSocket server for
// Flower Core.
//
// It exposes fleet CRUD, the command catalog, command dispatch, bus
// management and show control to front ends, plus a WebSocket feed of
// unit state changes and settled command outcomes.
//
// The server follows the same lifecycle pattern as the other
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/flower-core/internal/bus"
	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/dispatch"
	"github.com/nerrad567/flower-core/internal/flower"
	"github.com/nerrad567/flower-core/internal/infrastructure/config"
	"github.com/nerrad567/flower-core/internal/infrastructure/logging"
	"github.com/nerrad567/flower-core/internal/show"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests
// during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Broadcast channels for the WebSocket feed.
const (
	ChannelFlowerState    = "flower.state"
	ChannelCommandSettled = "command.settled"
	ChannelShowStatus     = "show.status"
)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Registry   *flower.Registry
	Builder    *command.Builder
	Dispatcher *dispatch.Dispatcher
	Buses      *bus.Directory
	BusRepo    bus.Repository
	ShowStore  show.Store
	Player     *show.Player
	Version    string
}

// Server is the HTTP API server for Flower Core.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registry  *flower.Registry
	builder   *command.Builder
	queue     *dispatch.Dispatcher
	buses     *bus.Directory
	busRepo   bus.Repository
	showStore show.Store
	player    *show.Player
	version   string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates an API server. The server does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("fleet registry is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Builder == nil {
		return nil, fmt.Errorf("command builder is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		builder:   deps.Builder,
		queue:     deps.Dispatcher,
		buses:     deps.Buses,
		busRepo:   deps.BusRepo,
		showStore: deps.ShowStore,
		player:    deps.Player,
		version:   deps.Version,
	}, nil
}

// Hub returns the WebSocket hub, available after Start.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start builds the router, starts the WebSocket hub and launches the
// listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts the server down.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
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
