// internal/logging/logging.go
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/dlms-backend/internal/config"
)

// Configure applies the level and format from cfg to the standard logrus logger.
// An unknown level falls back to info.
func Configure(cfg config.LoggingConfig, out io.Writer) {
	logrus.SetOutput(out)
	Apply(logrus.StandardLogger(), cfg)
}

func Apply(logger *logrus.Logger, cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logger.SetFormatter(&logrus.JSONFormatter{})
}
