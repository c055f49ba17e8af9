package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the application logger: JSON output when LOG_FORMAT is
// "json" (production deployments), text otherwise. Debug records are kept
// outside production so booking traces stay visible in development.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: slog.LevelDebug}
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
