package log

import (
	"context"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	zl    *zap.Logger
	hooks []Hook
}

// New builds a logger from cfg, writing to stdout or a rotated file.
func New(cfg Config) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
			level.SetLevel(parsed)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == EncodingConsole {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, writeSyncer(cfg), level)

	opts := []zap.Option{zap.AddCallerSkip(2)}
	if cfg.Debug {
		opts = append(opts, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	zl := zap.New(core, opts...)
	if cfg.Name != "" {
		zl = zl.Named(cfg.Name)
	}

	return &Logger{
		zl:    zl,
		hooks: []Hook{HookFunc(traceFields)},
	}
}

func writeSyncer(cfg Config) zapcore.WriteSyncer {
	if cfg.Output != OutputFile || cfg.File.Path == "" {
		return zapcore.Lock(os.Stdout)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSize,
		MaxAge:     cfg.File.MaxAge,
		MaxBackups: cfg.File.MaxBackups,
		LocalTime:  cfg.File.LocalTime,
	})
}

// AddHook returns a copy of the logger with hook appended.
func (l *Logger) AddHook(hook Hook) *Logger {
	hooks := make([]Hook, 0, len(l.hooks)+1)
	hooks = append(hooks, l.hooks...)
	hooks = append(hooks, hook)

	return &Logger{zl: l.zl, hooks: hooks}
}

func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields []Field) {
	ce := l.zl.Check(level, msg)
	if ce == nil {
		return
	}

	for _, hook := range l.hooks {
		fields = append(fields, hook.Apply(ctx, msg)...)
	}

	ce.Write(fields...)
}

var globalLogger atomic.Pointer[Logger]

func init() {
	globalLogger.Store(New(Config{Name: "todohub", Level: "info"}))
}

// SetGlobalConfig replaces the global logger.
func SetGlobalConfig(cfg Config) {
	globalLogger.Store(New(cfg))
}

func SetGlobalLogger(l *Logger) {
	globalLogger.Store(l)
}

func GetGlobalLogger() *Logger {
	return globalLogger.Load()
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Error(ctx, msg, fields...)
}
