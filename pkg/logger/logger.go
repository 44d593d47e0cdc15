package logger

import (
	"fmt"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debugf(format string, args ...interface{})
	Info(msg string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Error(msg string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func New(cfg config.Logger) (Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse level error: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)

	if len(cfg.Output) != 0 {
		zcfg.OutputPaths = cfg.Output
	}

	if len(cfg.ErrOutput) != 0 {
		zcfg.ErrorOutputPaths = cfg.ErrOutput
	}

	lg, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger error: %w", err)
	}

	return zapLogger{s: lg.Sugar()}, nil
}

func (l zapLogger) Debugf(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}

func (l zapLogger) Info(msg string, args ...interface{}) {
	l.s.Infof(msg, args...)
}

func (l zapLogger) Infof(format string, args ...interface{}) {
	l.s.Infof(format, args...)
}

func (l zapLogger) Warnf(format string, args ...interface{}) {
	l.s.Warnf(format, args...)
}

func (l zapLogger) Error(msg string, args ...interface{}) {
	l.s.Errorf(msg, args...)
}

func (l zapLogger) Errorf(format string, args ...interface{}) {
	l.s.Errorf(format, args...)
}
