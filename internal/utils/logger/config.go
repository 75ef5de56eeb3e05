// internal/utils/logger/config.go
package logger

import (
	"io"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogFile     string
	Level       string // debug, info, warn, error
	MaxSize     int    // мегабайты
	MaxAge      int    // дни
	MaxBackups  int    // количество файлов
	Compress    bool   // сжимать ротированные файлы
	Development bool

	// Console - куда писать человекочитаемый вывод; по умолчанию stderr,
	// чтобы stdout оставался за результатами команд.
	Console io.Writer
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "logs/perps.log",
		Level:       "info",
		MaxSize:     50,
		MaxAge:      28,
		MaxBackups:  3,
		Compress:    true,
		Development: false,
	}
}

func (c *Config) level() zapcore.Level {
	if c.Development {
		return zapcore.DebugLevel
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
