package utils

// logger.go - настройка структурированного логирования на zap.
//
// Назначение:
// Единая точка инициализации logger'а для всего терминала.
// Формат выбирается окружением: JSON для продакшена, console для разработки.

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig параметры инициализации логирования
type LoggerConfig struct {
	// Level: debug, info, warn, error
	Level string
	// Format: json или console
	Format string
	// File: путь к лог-файлу, пустой = только stdout
	File string
}

// InitLogger создаёт и настраивает zap logger.
// При некорректном уровне используется info.
func InitLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		// В файл всегда пишем JSON, независимо от консольного формата
		fileEncoder := zapcore.NewJSONEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, nil
}

// NewNopLogger возвращает logger, который ничего не пишет. Для тестов.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}
