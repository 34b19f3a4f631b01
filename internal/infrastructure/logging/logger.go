package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/uwb-ranging-core/internal/infrastructure/config"
)

// Component names for the coordinator's subsystems. Every logger handed
// to a subsystem carries its component, so one JSON stream can be
// filtered per layer.
const (
	ComponentAdapter    = "adapter"
	ComponentSession    = "session"
	ComponentCorrelator = "correlator"
	ComponentTransport  = "transport"
	ComponentEvents     = "events"
	ComponentStorage    = "storage"
)

// Logger wraps slog.Logger with service-specific functionality.
//
// It provides structured logging with default fields and level-based filtering.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	// Determine output writer
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	// Parse log level
	level := parseLevel(cfg.Level)

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	// Add default fields
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "uwbcore"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Parameters:
//   - args: Key-value pairs to add as default attributes
//
// Returns:
//   - *Logger: New logger with added attributes
//
// Example:
//
//	mqttLogger := logger.With("broker", "localhost:1883")
//	mqttLogger.Info("connected") // Includes broker=localhost:1883
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// ForComponent returns a logger scoped to one coordinator subsystem.
//
// Parameters:
//   - name: One of the Component constants
//
// Returns:
//   - *Logger: New logger carrying the component attribute
func (l *Logger) ForComponent(name string) *Logger {
	return l.With("component", name)
}

// ForSession returns a logger carrying a session's identifiers, used
// where a log line must be traceable to one ranging engagement.
//
// Parameters:
//   - sessionID: Protocol-level session id
//   - handle: Caller-scoped session handle
//
// Returns:
//   - *Logger: New logger carrying both identifiers
func (l *Logger) ForSession(sessionID uint32, handle string) *Logger {
	return l.With("session_id", sessionID, "handle", handle)
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
// It should only be used during early startup before config is available.
//
// Returns:
//   - *Logger: Default logger
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
