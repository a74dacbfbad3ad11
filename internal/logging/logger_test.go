package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/ibhelm/service-agent/internal/config"
)

func TestNewLogger_Level(t *testing.T) {
	logger := NewLogger(&config.Config{LogLevel: "debug"})
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger := NewLogger(&config.Config{LogLevel: "noisy"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestBetterStackWriter_NeverBlocks(t *testing.T) {
	// No listener behind the URL; every ship attempt fails. Writes must
	// still return immediately and report full length.
	w := NewBetterStackWriter("token", "localhost:1")

	line := []byte(`{"level":"info","message":"hello"}`)
	for range 1000 {
		n, err := w.Write(line)
		assert.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
}
