package models

import "time"

// Направления голосов стратегий
const (
	DirectionBull    = "bull"
	DirectionBear    = "bear"
	DirectionNeutral = "neutral"
)

// Силы конфлюенс-сигнала
const (
	StrengthStrong = "strong" // все стратегии согласны
	StrengthGood   = "good"   // строгое большинство
	StrengthWeak   = "weak"   // один голос - сделки нет
	StrengthNone   = "none"   // нет большинства
)

// StrategySignal - голос одной стратегии за один цикл оценки.
// Эфемерный: создаётся, потребляется агрегатором и отбрасывается.
type StrategySignal struct {
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`  // bull, bear, neutral
	Confidence float64   `json:"confidence"` // 0..1, информативно
	Detail     string    `json:"detail"`     // короткий текст для UI
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// ConfluenceResult - итог агрегации голосов по символу
type ConfluenceResult struct {
	Symbol    string           `json:"symbol"`
	Direction string           `json:"direction"` // bull, bear, neutral
	Strength  string           `json:"strength"`  // strong, good, weak, none
	Votes     int              `json:"votes"`     // согласных голосов
	Total     int              `json:"total"`     // всего стратегий
	HTFTrend  string           `json:"htf_trend,omitempty"`
	Actionable bool            `json:"actionable"` // прошёл ли порог и HTF фильтр
	Signals   []StrategySignal `json:"signals,omitempty"`
}
