package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию терминала
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Trading   TradingConfig
	Logging   LoggingConfig
}

// ServerConfig - настройки HTTP сервера для локального UI
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// Ключ AES-256 для шифрования API секретов в БД
	EncryptionKey string

	// bcrypt-хеш пароля терминала для мутаций настроек.
	// Пустой = проверка отключена.
	SettingsPassHash string
}

// TradingConfig - настройки торгового движка
type TradingConfig struct {
	// Сеть по умолчанию: demo или mainnet
	Network string

	// Строгий режим: плечо зажимается к DefaultLeverage
	StrictMode      bool
	DefaultLeverage int

	// Риск на сделку в процентах от баланса
	RiskPct float64

	// Интервал цикла сверки позиций
	ReconcileInterval time.Duration

	// Количество попыток навесить trading-stop до аварийного закрытия
	TradingStopRetries int

	// Максимум одновременно открытых позиций в авто-режиме
	MaxPositions int

	// TTL кэша тренда старшего таймфрейма
	HTFTrendTTL time.Duration

	// Таймаут ожидания исполнения ордера
	OrderTimeout time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load загружает конфигурацию из .env файла и переменных окружения.
// Отсутствие .env не ошибка: терминал может быть сконфигурирован только окружением.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "127.0.0.1"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradeterm"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:    getEnv("ENCRYPTION_KEY", ""),
			SettingsPassHash: getEnv("SETTINGS_PASSWORD_HASH", ""),
		},
		Trading: TradingConfig{
			// Demo по умолчанию: переход на mainnet всегда явное действие
			Network:            getEnv("TRADING_NETWORK", "demo"),
			StrictMode:         getEnvAsBool("STRICT_MODE", true),
			DefaultLeverage:    getEnvAsInt("DEFAULT_LEVERAGE", 10),
			RiskPct:            getEnvAsFloat("RISK_PCT", 2.0),
			ReconcileInterval:  getEnvAsDuration("RECONCILE_INTERVAL", 15*time.Second),
			TradingStopRetries: getEnvAsInt("TRADING_STOP_RETRIES", 2),
			MaxPositions:       getEnvAsInt("MAX_POSITIONS", 2),
			HTFTrendTTL:        getEnvAsDuration("HTF_TREND_TTL", 5*time.Minute),
			OrderTimeout:       getEnvAsDuration("ORDER_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API ключей биржи
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Trading.Network != "demo" && c.Trading.Network != "mainnet" {
		return fmt.Errorf("TRADING_NETWORK must be demo or mainnet, got %q", c.Trading.Network)
	}

	if c.Trading.DefaultLeverage < 1 {
		return fmt.Errorf("DEFAULT_LEVERAGE must be at least 1, got %d", c.Trading.DefaultLeverage)
	}

	if c.Trading.RiskPct <= 0 || c.Trading.RiskPct > 10 {
		return fmt.Errorf("RISK_PCT must be in (0, 10], got %v", c.Trading.RiskPct)
	}

	if c.Trading.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive, got %v", c.Trading.ReconcileInterval)
	}

	if c.Trading.TradingStopRetries < 1 || c.Trading.TradingStopRetries > 10 {
		return fmt.Errorf("TRADING_STOP_RETRIES must be between 1 and 10, got %d", c.Trading.TradingStopRetries)
	}

	if c.Trading.MaxPositions < 1 {
		return fmt.Errorf("MAX_POSITIONS must be at least 1, got %d", c.Trading.MaxPositions)
	}

	if c.Trading.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %v", c.Trading.OrderTimeout)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
