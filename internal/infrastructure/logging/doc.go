// Package logging provides structured logging for meterdetect.
//
// This package wraps Go's standard log/slog package so every component logs
// the same way: JSON in production, text for development, with service and
// version fields attached to each entry.
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("detection complete", "meter_id", id, "confidence", 95)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
