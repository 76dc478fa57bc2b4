package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/instinctd/internal/config"
)

func TestNew_ValidConfigs(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := New(config.LoggingConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Debug("wired")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "shout", Format: "json"})
	assert.Error(t, err)
}
