package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New("warn", false)
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("chatty", false)
	require.Error(t, err)
}

func TestMustFallsBackToNop(t *testing.T) {
	logger := Must("chatty", true)
	require.NotNil(t, logger)
	require.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
