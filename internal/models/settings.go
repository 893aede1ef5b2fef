package models

import "time"

// APICredentials - ключи API для одной сети биржи.
// Секрет хранится в БД зашифрованным (AES-256-GCM, pkg/crypto).
type APICredentials struct {
	Network         string    `json:"network" db:"network"` // demo, mainnet
	APIKey          string    `json:"api_key" db:"api_key"`
	APISecretCipher string    `json:"-" db:"api_secret_enc"` // шифротекст, наружу не отдаётся
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// AutoTradeSettings - настройки автоторговли, редактируются из UI
type AutoTradeSettings struct {
	Enabled       bool     `json:"enabled" db:"enabled"`
	Symbols       []string `json:"symbols" db:"symbols"`             // выбранные монеты
	Timeframe     string   `json:"timeframe" db:"timeframe"`         // 1m, 5m, 15m, 1h, 4h, 1d
	Strategies    []string `json:"strategies" db:"strategies"`       // включённые стратегии по id
	RequireHTF    bool     `json:"require_htf" db:"require_htf"`     // требовать подтверждение старшего ТФ
	MaxPositions  int      `json:"max_positions" db:"max_positions"` // лимит одновременных позиций
}

// DefaultAutoTradeSettings возвращает настройки как в оригинальном терминале
func DefaultAutoTradeSettings() AutoTradeSettings {
	return AutoTradeSettings{
		Enabled:      false,
		Symbols:      []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		Timeframe:    "15m",
		Strategies:   []string{"trend_following", "breakout", "mean_reversion"},
		RequireHTF:   true,
		MaxPositions: 2,
	}
}
