package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		environment string
		debug       bool
	}{
		{environment: "development", debug: true},
		{environment: "test", debug: true},
		{environment: "production", debug: false},
		{environment: "", debug: false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			logger, err := New(tt.environment)
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zapcore.DebugLevel))
		})
	}
}
