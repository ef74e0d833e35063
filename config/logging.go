package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. Output goes to stdout and, when
// LOG_FILE is set, to that file as well.
func NewLogger(s *Settings) (*zap.Logger, error) {
	var cfg zap.Config
	if s.IsProduction() {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	cfg.OutputPaths = []string{"stdout"}
	if s.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(s.LogFile), os.ModePerm); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, s.LogFile)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("service", s.ServiceName)), nil
}
