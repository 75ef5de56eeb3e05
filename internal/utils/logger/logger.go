// internal/utils/logger/logger.go
package logger

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger - zap.Logger с полями, которые нужны командам: операция,
// correlation id и подпись транзакции.
type Logger struct {
	*zap.Logger
	rotator *lumberjack.Logger
}

// New пишет человекочитаемый вывод в cfg.Console и JSON в файл с ротацией.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.LogFile == "" {
		return nil, errors.New("log file path is empty")
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	enc := encoderConfig(cfg.Development)
	level := zap.NewAtomicLevelAt(cfg.level())
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(console), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(rotator), level),
	)

	return &Logger{
		Logger:  zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
		rotator: rotator,
	}, nil
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	if development {
		enc = zap.NewDevelopmentEncoderConfig()
	}
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	return enc
}

// WithTransaction - логгер с подписью отправленной транзакции.
func (l *Logger) WithTransaction(sig solana.Signature) *zap.Logger {
	return l.With(zap.String("signature", sig.String()))
}

// WithOperation - логгер операции CLI; все записи одной операции
// связаны общим correlation_id.
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.NewString()),
	)
}

// Sync сбрасывает буферы и закрывает файл. Ошибки sync для терминала
// (stderr не поддерживает fsync) игнорируются.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		err = nil
	}
	if cerr := l.rotator.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// TrackPerformance пишет начало операции и ее длительность при вызове end.
func (l *Logger) TrackPerformance(operation string) (end func()) {
	start := time.Now()
	opLogger := l.WithOperation(operation)
	opLogger.Debug("Starting operation")

	return func() {
		opLogger.Debug("Operation completed", zap.Duration("duration", time.Since(start)))
	}
}
