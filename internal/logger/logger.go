// internal/logger/logger.go
package logger

import (
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zap.Logger with rotation and convenience helpers.
type Logger struct {
	*zap.Logger
	config *Config
}

// New creates a logger writing console output to stdout and JSON output to a
// rotating log file.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logRotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	var level zapcore.Level
	if cfg.Development {
		level = zapcore.DebugLevel
	} else {
		level = zapcore.InfoLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(logRotator), level),
	)

	return &Logger{
		Logger: zap.New(core,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		),
		config: cfg,
	}, nil
}

// WithComponent adds the component name to every log entry.
func (l *Logger) WithComponent(component string) *zap.Logger {
	return l.With(zap.String("component", component))
}

// WithOperation creates a logger for a single operation with a correlation id.
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
		zap.Time("start_time", time.Now().UTC()),
	)
}

// WithTransaction adds transaction context to log entries.
func (l *Logger) WithTransaction(signature string) *zap.Logger {
	return l.With(
		zap.String("tx_signature", signature),
		zap.Time("tx_time", time.Now().UTC()),
	)
}

// Sync flushes buffered entries, ignoring the stdout sync errors some
// platforms return.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if err != nil && (err.Error() == "sync /dev/stdout: invalid argument" ||
		err.Error() == "sync /dev/stderr: inappropriate ioctl for device") {
		return nil
	}
	return err
}
