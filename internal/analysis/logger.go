package analysis

import (
	"log/slog"

	"github.com/scaqms/aqms-go/internal/conf"
	"github.com/scaqms/aqms-go/internal/logging"
)

// serviceLogger returns the logger for a service: a rotating file logger
// when file logging is configured, the console logger otherwise. A file
// logger that cannot be created falls back to the console with a warning.
// The returned close function is a no-op for console loggers.
func serviceLogger(settings *conf.Settings, service string) (*slog.Logger, func() error) {
	if settings.Main.Log.Enabled && settings.Main.Log.Path != "" {
		level := slog.LevelInfo
		if settings.Debug {
			level = slog.LevelDebug
		}
		logger, closeLogger, err := logging.NewFileLogger(settings.Main.Log.Path, service, level)
		if err == nil {
			return logger.With("node", settings.Main.Name), closeLogger
		}
		logging.ForService(service).Warn("file logging unavailable, using console",
			"path", settings.Main.Log.Path, "error", err)
	}
	return logging.ForService(service), func() error { return nil }
}
