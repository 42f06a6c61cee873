package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_ParsesLevel(t *testing.T) {
	New(Config{Level: "warn"})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	New(Config{Level: "verbose"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestNew_LevelIsCaseInsensitive(t *testing.T) {
	New(Config{Level: " DEBUG "})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestService_TagsPipelineStage(t *testing.T) {
	var buf bytes.Buffer
	parent := zerolog.New(&buf)

	svc := Service(parent, "analysis")
	svc.Info().Msg("run complete")

	assert.Contains(t, buf.String(), `"service":"analysis"`)
	assert.Contains(t, buf.String(), "run complete")
}
