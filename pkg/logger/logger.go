package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *zap.Logger
)

func init() { // keep a usable logger before Init runs
	global = zap.NewNop()
}

// Init configures the global logger at the provided level. Unknown levels
// fall back to info.
func Init(level string) error {
	cfg := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	global = built
	return nil
}

// L returns the configured global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Named returns a child logger annotated with the component name.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes buffered log entries.
func Sync() error {
	return L().Sync()
}
