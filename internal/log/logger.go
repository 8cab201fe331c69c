// Package log configures the process-wide slog logger and names the
// structured fields shared across packages.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default slog logger. Level accepts debug, info,
// warn or error (case-insensitive); anything else means info. Format
// "json" selects the JSON handler, any other value the text handler.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ForComponent returns a logger tagged with a component name, for
// startup and shutdown logs where the calling package is not obvious.
func ForComponent(component string) *slog.Logger {
	return slog.Default().With(FieldComponent, component)
}
