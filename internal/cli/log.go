package cli

import (
	"log/slog"
	"os"

	"github.com/barryels/Spark/internal/config"
)

// setupLogging installs a text handler on stderr as the default logger.
// --verbose forces debug level; otherwise log.level applies.
func setupLogging(verbose bool, cfg *config.Config) {
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
