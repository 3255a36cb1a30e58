package logger

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log    atomic.Pointer[zap.Logger]
	initMu sync.Mutex
)

// buildConfig returns the zap config for env, or ok=false when logging is
// disabled. LOG_LEVEL, when parseable, overrides the env default level.
func buildConfig(env, level string) (cfg zap.Config, ok bool) {
	switch env {
	case "test":
		return cfg, false
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	return cfg, true
}

func build(env string) *zap.Logger {
	cfg, ok := buildConfig(env, os.Getenv("LOG_LEVEL"))
	if !ok {
		return zap.NewNop()
	}

	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic(err)
	}
	return l
}

// Init builds the global logger for env ("production", "test" or anything
// else for development). The test env logs nothing.
func Init(env string) {
	initMu.Lock()
	defer initMu.Unlock()
	log.Store(build(env))
}

// L returns the global logger, initializing it from APP_ENV on first use.
// Safe for concurrent use before Init has run.
func L() *zap.Logger {
	if l := log.Load(); l != nil {
		return l
	}

	initMu.Lock()
	defer initMu.Unlock()
	if l := log.Load(); l != nil {
		return l
	}
	l := build(os.Getenv("APP_ENV"))
	log.Store(l)
	return l
}

func Sync() {
	if l := log.Load(); l != nil {
		_ = l.Sync()
	}
}

// Replace swaps the global logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	prev := log.Swap(l)
	return func() { log.Store(prev) }
}
