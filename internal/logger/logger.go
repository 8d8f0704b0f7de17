// Package logger provides the process-wide structured logger used by every
// package in modelsearch. The shape (Debug/Info/Warn(msg, kv...) and
// Error(err, msg, kv...)) mirrors the logr-style wrapper the sibling
// inferno-autoscaler repo calls as logger.Log throughout its controller,
// optimizer and collector packages.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a small structured-logging facade over zap's SugaredLogger.
type Logger struct {
	z *zap.SugaredLogger
}

// Log is the package-singleton logger used throughout modelsearch.
var Log = newDefault()

func newDefault() *Logger {
	return &Logger{z: buildSugared(zapcore.InfoLevel)}
}

func buildSugared(level zapcore.Level) *zap.SugaredLogger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core).Sugar()
}

// SetLevel rebuilds Log at the given level. Called once during CLI startup
// after flags are parsed.
func SetLevel(level string) {
	Log = &Logger{z: buildSugared(parseLevel(level))}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug logs at debug level with alternating key/value pairs.
func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.z.Debugw(msg, kv...)
}

// Info logs at info level with alternating key/value pairs.
func (l *Logger) Info(msg string, kv ...interface{}) {
	l.z.Infow(msg, kv...)
}

// Warn logs at warn level with alternating key/value pairs.
func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.z.Warnw(msg, kv...)
}

// Error logs at error level, attaching err as a structured field.
func (l *Logger) Error(err error, msg string, kv ...interface{}) {
	args := append([]interface{}{"error", err}, kv...)
	l.z.Errorw(msg, args...)
}

// Sync flushes any buffered log entries. Callers should defer this in main.
func Sync() {
	_ = Log.z.Sync()
}
