package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/ibhelm/service-agent/internal/config"
)

// NewLogger creates the process-wide zerolog.Logger. When a Better
// Stack source token is configured, log lines are also forwarded to
// the ingest endpoint.
func NewLogger(cfg *config.Config) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.BetterStackSourceToken != "" {
		w = zerolog.MultiLevelWriter(os.Stdout, NewBetterStackWriter(cfg.BetterStackSourceToken, cfg.BetterStackIngestHost))
	}

	logger := zerolog.New(w).With().
		Timestamp().
		Str("service", "service-agent").
		Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
