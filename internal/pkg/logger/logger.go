package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/doeshing/hookgate/internal/ports"
)

// ZapLogger implements ports.Logger on top of zap. Output always goes to
// stderr; stdout carries the hook record.
type ZapLogger struct {
	log   *zap.Logger
	level zap.AtomicLevel
}

// New creates a ZapLogger with the given level ("debug", "info", "warn",
// "error") and format ("console" or "json").
func New(level, format string) *ZapLogger {
	atomic := zap.NewAtomicLevelAt(ParseLevel(level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), atomic)
	return &ZapLogger{
		log:   zap.New(core).With(zap.String("app", "hookgate")),
		level: atomic,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return &ZapLogger{log: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// FromZap wraps an existing zap logger, mainly for tests using zaptest/observer.
func FromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{log: l, level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// ParseLevel maps a level name to a zap level, defaulting to warn so hook
// invocations stay quiet.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return zapcore.DebugLevel
	case "info", "verbose":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// SetLevel changes the level at runtime (the rule document may carry one).
func (l *ZapLogger) SetLevel(level string) {
	l.level.SetLevel(ParseLevel(level))
}

// Named returns a child logger tagged with a module name.
func (l *ZapLogger) Named(mod string) *ZapLogger {
	return &ZapLogger{log: l.log.With(zap.String("mod", mod)), level: l.level}
}

// Sync flushes buffered output.
func (l *ZapLogger) Sync() {
	_ = l.log.Sync()
}

func (l *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	l.log.Debug(msg, toZap(fields)...)
}

func (l *ZapLogger) Info(msg string, fields map[string]interface{}) {
	l.log.Info(msg, toZap(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	l.log.Warn(msg, toZap(fields)...)
}

func (l *ZapLogger) Error(msg string, err error, fields map[string]interface{}) {
	l.log.Error(msg, append(toZap(fields), zap.Error(err))...)
}

func toZap(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

var _ ports.Logger = (*ZapLogger)(nil)
