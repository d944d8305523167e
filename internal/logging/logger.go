// Package logging builds the zap loggers shared by every binary.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON production logger, or a console logger when development is set.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}

// Must is New for main functions: it falls back to a no-op logger on failure
// after printing the reason.
func Must(level string, development bool) *zap.Logger {
	logger, err := New(level, development)
	if err != nil {
		fmt.Printf("logger init failed, logging disabled: %v\n", err)
		return zap.NewNop()
	}
	return logger
}
