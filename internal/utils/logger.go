// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// Logger is a thin structured logger over zap. Fields are passed as maps
// so call sites read the same whatever the backend.
type Logger struct {
	mu    sync.RWMutex
	zap   *zap.Logger
	level zap.AtomicLevel
	file  *os.File
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

var redactedKeys = []string{"password", "token", "api_key", "apikey", "secret", "authorization"}

// GetLogger returns the process logger, creating a development logger on first use.
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		l, err := NewLogger("development", "")
		if err != nil {
			l = &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevel()}
		}
		globalLogger = l
	})
	return globalLogger
}

// InitLogger rebuilds the process logger. mode is "production" for JSON
// output or anything else for console output; logFile is optional.
func InitLogger(mode, logFile string) error {
	l, err := NewLogger(mode, logFile)
	if err != nil {
		return err
	}
	current := GetLogger()
	current.mu.Lock()
	defer current.mu.Unlock()
	if current.file != nil {
		current.file.Close()
	}
	_ = current.zap.Sync()
	current.zap = l.zap
	current.level = l.level
	current.file = l.file
	return nil
}

// NewLogger builds a standalone logger.
func NewLogger(mode, logFile string) (*Logger, error) {
	var encCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	level := zap.NewAtomicLevelAt(zap.DebugLevel)

	switch strings.ToLower(mode) {
	case "prod", "production":
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
		level.SetLevel(zap.InfoLevel)
	default:
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}

	var file *os.File
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), level))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2))
	return &Logger{zap: z, level: level, file: file}, nil
}

// SetLogLevel sets the minimum level for logging
func (l *Logger) SetLogLevel(level LogLevel) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_ = l.zap.Sync()
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DEBUG:
		return zap.DebugLevel
	case WARNING:
		return zap.WarnLevel
	case ERROR:
		return zap.ErrorLevel
	case FATAL:
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	l.mu.RLock()
	z := l.zap
	l.mu.RUnlock()

	zf := toZapFields(fields)
	switch level {
	case DEBUG:
		z.Debug(message, zf...)
	case INFO:
		z.Info(message, zf...)
	case WARNING:
		z.Warn(message, zf...)
	case ERROR:
		z.Error(message, zf...)
	case FATAL:
		z.Fatal(message, zf...)
	}
}

// toZapFields sorts keys so output is stable and masks secrets.
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if isRedactedKey(k) {
			v = "[REDACTED]"
		}
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}

func isRedactedKey(key string) bool {
	key = strings.ToLower(key)
	for _, r := range redactedKeys {
		if strings.Contains(key, r) {
			return true
		}
	}
	return false
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DEBUG, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(INFO, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WARNING, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ERROR, message, fields)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, fields map[string]interface{}) {
	l.log(FATAL, message, fields)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARNING, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(FATAL, fmt.Sprintf(format, args...), nil)
}
