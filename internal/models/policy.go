package models

import (
	"errors"
	"time"
)

// Сети биржи. Выбор сети определяет набор ключей и базовый URL API.
// Переключение - только явное действие пользователя через настройки.
const (
	NetworkDemo    = "demo"
	NetworkMainnet = "mainnet"
)

// Ограничения плеча в строгом режиме
const (
	StrictLeverageDefault = 10 // дефолтное плечо (как в оригинальном терминале)
	LeverageSafetyCeiling = 25 // жёсткий потолок даже при явном override
)

// Ошибки валидации политики
var (
	ErrInvalidNetwork  = errors.New("network must be demo or mainnet")
	ErrInvalidLeverage = errors.New("leverage must be positive")
)

// PolicyConfig - конфигурация политики исполнения.
// Читается всеми торговыми путями как неизменяемый снапшот;
// единственный писатель - SettingsService (см. engine.PolicyStore).
type PolicyConfig struct {
	Network          string    `json:"network" db:"network"`                       // demo, mainnet
	StrictMode       bool      `json:"strict_mode" db:"strict_mode"`               // клампить плечо к дефолту
	LeverageDefault  int       `json:"leverage_default" db:"leverage_default"`     // плечо по умолчанию
	LeverageOverride *int      `json:"leverage_override,omitempty" db:"leverage_override"` // явный override (nil = нет)
	AllowSignalClose bool      `json:"allow_signal_close" db:"allow_signal_close"` // автозакрытие по развороту сигнала
	RiskPct          float64   `json:"risk_pct" db:"risk_pct"`                     // риск на сделку в % от баланса
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultPolicy возвращает консервативные настройки по умолчанию:
// демо-сеть, строгий режим, плечо 10x, автозакрытие по сигналу выключено.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		Network:          NetworkDemo,
		StrictMode:       true,
		LeverageDefault:  StrictLeverageDefault,
		AllowSignalClose: false,
		RiskPct:          2.0,
	}
}

// Validate проверяет согласованность конфигурации
func (p *PolicyConfig) Validate() error {
	if p.Network != NetworkDemo && p.Network != NetworkMainnet {
		return ErrInvalidNetwork
	}
	if p.LeverageDefault <= 0 {
		return ErrInvalidLeverage
	}
	if p.LeverageOverride != nil && *p.LeverageOverride <= 0 {
		return ErrInvalidLeverage
	}
	return nil
}

// EffectiveLeverage применяет правила строгого режима к запрошенному плечу.
//
// Правила:
//   - строгий режим без override: всегда LeverageDefault
//   - строгий режим с override: значение override, но не выше потолка
//   - обычный режим: запрошенное значение, но не выше потолка
//
// Потолок LeverageSafetyCeiling не обходится никаким флагом.
func (p *PolicyConfig) EffectiveLeverage(requested int) int {
	lev := requested
	if p.StrictMode {
		lev = p.LeverageDefault
		if p.LeverageOverride != nil {
			lev = *p.LeverageOverride
		}
	}
	if lev <= 0 {
		lev = p.LeverageDefault
	}
	if lev > LeverageSafetyCeiling {
		lev = LeverageSafetyCeiling
	}
	return lev
}
