// Package common holds build metadata and logger setup shared by the
// command-line entry points.
package common

import (
	"log/slog"
	"os"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// LoggingOpts configures SetupLogger.
type LoggingOpts struct {
	// Debug lowers the log level to debug.
	Debug bool

	// JSON switches output to JSON format.
	JSON bool

	// Service is added as a 'service' attribute to all messages when set.
	Service string

	// Version is added as a 'version' attribute to all messages when set.
	Version string
}

// SetupLogger creates a slog logger writing to stderr.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}
