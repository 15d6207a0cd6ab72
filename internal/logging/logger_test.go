package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		enabled zap.AtomicLevel
		want    bool
	}{
		{"dev debug", "dev", "debug", zap.NewAtomicLevelAt(zap.DebugLevel), true},
		{"prod info hides debug", "prod", "info", zap.NewAtomicLevelAt(zap.DebugLevel), false},
		{"unknown defaults to info", "dev", "loud", zap.NewAtomicLevelAt(zap.InfoLevel), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.env, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.Core().Enabled(tt.enabled.Level()))
		})
	}
}
