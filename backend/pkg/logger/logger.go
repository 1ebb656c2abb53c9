package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *zap.Logger

	fallbackOnce sync.Once
	fallback     *zap.Logger
)

// Init builds the process logger. env "production" selects JSON output at
// Info; anything else selects colored console output at Debug. A non-empty
// level overrides the default level.
func Init(env, level string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := config.Build()
	if err != nil {
		return err
	}
	Set(built)
	return nil
}

// Set replaces the process logger. Tests use it to install zaptest or nop loggers.
func Set(l *zap.Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

// Sync flushes any buffered log entries
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if global != nil {
		_ = global.Sync()
	}
}

// Get returns the process logger, falling back to a development logger if
// Init was never called.
func Get() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}
	fallbackOnce.Do(func() {
		dev, err := zap.NewDevelopment()
		if err != nil {
			dev = zap.NewNop()
		}
		fallback = dev
	})
	return fallback
}

// Named returns the process logger scoped to a component.
func Named(component string) *zap.Logger {
	return Get().Named(component)
}
