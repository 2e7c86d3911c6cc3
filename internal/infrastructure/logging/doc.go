// Package logging provides structured logging for PhaseLink Core.
//
// It wraps the standard log/slog package so every component logs the same
// way: JSON in production, text during development, with the service name
// and build version attached to every record.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	linkLog := logger.Component("device_link")
//	linkLog.Info("device connected", "device_id", id)
//
// Never log secrets, tokens or passwords. Device pairing codes count as secrets.
package logging
