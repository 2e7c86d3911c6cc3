package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/phaselink-core/internal/audit"
	"github.com/nerrad567/phaselink-core/internal/auth"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/config"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/logging"
	"github.com/nerrad567/phaselink-core/internal/link"
	"github.com/nerrad567/phaselink-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	DeviceLink config.DeviceLinkConfig
	Logger     *logging.Logger
	Auth       *auth.Service
	Manager    *link.Manager
	Relay      *link.Relay
	Status     *link.StatusService
	Telemetry  *telemetry.Service
	Version    string

	// Audit is optional. When nil, nothing is recorded and the audit
	// endpoint answers 503.
	Audit audit.Repository
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes and middleware. Device WebSocket
// sessions are handed to the link manager and outlive the request that
// opened them; Close cancels them.
type Server struct {
	cfg       config.APIConfig
	linkCfg   config.DeviceLinkConfig
	logger    *logging.Logger
	auth      *auth.Service
	manager   *link.Manager
	relay     *link.Relay
	status    *link.StatusService
	telemetry *telemetry.Service
	audit     audit.Repository
	version   string

	server   *http.Server
	listener net.Listener
	ctx      context.Context // parent of every device session
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Auth == nil:
		return nil, fmt.Errorf("auth service is required")
	case deps.Manager == nil || deps.Relay == nil || deps.Status == nil:
		return nil, fmt.Errorf("device link components are required")
	case deps.Telemetry == nil:
		return nil, fmt.Errorf("telemetry service is required")
	}

	return &Server{
		cfg:       deps.Config,
		linkCfg:   deps.DeviceLink,
		logger:    deps.Logger,
		auth:      deps.Auth,
		manager:   deps.Manager,
		relay:     deps.Relay,
		status:    deps.Status,
		telemetry: deps.Telemetry,
		audit:     deps.Audit,
		version:   deps.Version,
		ctx:       context.Background(),
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
//
// ctx bounds device sessions opened through this server: cancelling it, or
// calling Close, closes every device link with a going-away frame.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It stops accepting requests, waits up to 10 seconds for in-flight requests,
// and cancels the context of every device session.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if err != nil {
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
