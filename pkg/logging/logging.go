// Package logging holds the process logger.
package logging

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.SugaredLogger]

func init() {
	logger.Store(zap.NewNop().Sugar())
}

// L returns the process logger. It discards everything until Init is called.
func L() *zap.SugaredLogger {
	return logger.Load()
}

// Init installs a console logger writing to stderr at the given level
// (debug, info, warn or error).
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.DisableCaller = lvl > zapcore.DebugLevel
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set replaces the process logger.
func Set(l *zap.Logger) {
	logger.Store(l.Sugar())
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}
