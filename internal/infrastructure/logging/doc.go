// Package logging wraps log/slog with the conventions used across
// Fleet Core: JSON or text output, level filtering from config, and
// service/version fields stamped on every record.
//
// Configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components take a *Logger and derive their own with With:
//
//	hubLog := log.With("component", "hub")
//	hubLog.Info("device connected", "device_id", id)
//
// Device secrets and admin tokens must never reach a log record, in
// any field.
package logging
