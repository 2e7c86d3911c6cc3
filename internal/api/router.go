package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// defaultDevicePath is where devices dial when no path is configured.
const defaultDevicePath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(middleware.StripSlashes)

	r.Get("/health", s.handleHealth)

	// Device link (identity comes from the connect handshake)
	devicePath := s.linkCfg.Path
	if devicePath == "" {
		devicePath = defaultDevicePath
	}
	r.Get(devicePath, s.handleDeviceLink)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/sign-up", s.handleSignUp)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(s.authMiddleware).Post("/write-data", s.handleWriteData)
		r.Get("/query-data", s.handleQueryData)
		r.With(s.authMiddleware).Get("/audit", s.handleListAudit)
	})

	// Tokens are optional here. On analytics a valid token supplies the default
	// device; remote-control only uses it to name the operator in the audit trail.
	r.Group(func(r chi.Router) {
		r.Use(s.optionalAuthMiddleware)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/power", s.handleAnalytics(analyticsPower))
			r.Get("/energy", s.handleAnalytics(analyticsEnergy))
		})

		r.Route("/remote-control", func(r chi.Router) {
			r.Post("/", s.handleRemoteControl)
			r.Get("/status", s.handleRemoteStatus)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"version":           s.version,
		"devices_connected": s.manager.Connected(),
	})
}
