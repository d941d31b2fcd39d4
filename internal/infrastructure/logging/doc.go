// Package logging provides structured logging for the display bridge.
//
// It wraps log/slog. Every entry carries service and version fields;
// components add their own with Component and Device.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	busLog := logger.Component("joinbus")
//	busLog.Info("bus online", "bus", "eisc-01")
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
