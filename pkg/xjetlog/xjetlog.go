// Package xjetlog wraps go.uber.org/zap behind a small interface so
// the engine packages stay host-logger-agnostic.
//
// Levels map onto the reporter's log-level vocabulary: silent, error,
// warn, info, debug.
package xjetlog

import "go.uber.org/zap"

// Level is the reporter-facing severity scale.
type Level string

const (
	LevelSilent Level = "silent"
	LevelError  Level = "error"
	LevelWarn   Level = "warn"
	LevelInfo   Level = "info"
	LevelDebug  Level = "debug"
)

// Logger is the subset of zap.SugaredLogger the engine depends on.
type Logger interface {
	Debugw(msg string, kv ...interface{})
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
	Sync() error
}

// New builds a Logger. development toggles zap's human-readable
// console encoding (used by cmd/xjet in interactive runs) versus JSON
// (used under `--silent`/CI).
func New(development bool) (Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewNop returns a Logger that discards everything: the default when
// NewSuitesService is given no logger, and for tests.
func NewNop() Logger {
	return zap.NewNop().Sugar()
}
