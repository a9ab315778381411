// Package log wraps zap with context-aware hooks so every structured log line
// automatically carries request/trace correlation fields, the way axonhub's
// internal/log package does.
package log

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a re-export of zap.Field so callers never import zap directly.
type Field = zap.Field

func String(key, val string) Field        { return zap.String(key, val) }
func Int(key string, val int) Field       { return zap.Int(key, val) }
func Bool(key string, val bool) Field     { return zap.Bool(key, val) }
func Any(key string, val any) Field       { return zap.Any(key, val) }
func Cause(err error) Field               { return zap.Error(err) }
func Duration(key string, d time.Duration) Field { return zap.Duration(key, d) }
func Float64(key string, v float64) Field { return zap.Float64(key, v) }

// Hook derives extra fields from a request context, e.g. trace/request ids.
type Hook interface {
	Apply(ctx context.Context, msg string) []Field
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, msg string) []Field

func (f HookFunc) Apply(ctx context.Context, msg string) []Field {
	if f == nil {
		return nil
	}

	return f(ctx, msg)
}

type Config struct {
	Level     string `conf:"level" yaml:"level" json:"level"`
	Format    string `conf:"format" yaml:"format" json:"format"` // "json" or "console"
	Debug     bool   `conf:"debug" yaml:"debug" json:"debug"`
}

var (
	mu         sync.RWMutex
	globalCore *zap.Logger = zap.NewNop()
	hooks      []Hook
)

// SetGlobalConfig rebuilds the process-wide logger from Config. Safe to call
// once at startup; never called on the request hot path.
func SetGlobalConfig(cfg Config) {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" || cfg.Debug {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)

	mu.Lock()
	globalCore = zap.New(core)
	mu.Unlock()
}

// RegisterHook appends a context-field hook applied to every subsequent log call.
func RegisterHook(h Hook) {
	mu.Lock()
	hooks = append(hooks, h)
	mu.Unlock()
}

func GetGlobalLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return globalCore
}

func fieldsFor(ctx context.Context, msg string, extra []Field) []Field {
	mu.RLock()
	hs := hooks
	mu.RUnlock()

	fields := make([]Field, 0, len(extra)+len(hs))
	for _, h := range hs {
		fields = append(fields, h.Apply(ctx, msg)...)
	}

	fields = append(fields, extra...)

	return fields
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fieldsFor(ctx, msg, fields)...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fieldsFor(ctx, msg, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fieldsFor(ctx, msg, fields)...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Error(msg, fieldsFor(ctx, msg, fields)...)
}
