package models

import "time"

// OrderIntent представляет намерение открыть позицию.
// Создаётся вручную (терминал), автотрейдером или мульти-стратегией,
// потребляется один раз движком защиты. Не сохраняется в БД.
type OrderIntent struct {
	Symbol       string    `json:"symbol"`                  // BTCUSDT
	Side         string    `json:"side"`                    // long, short
	Size         float64   `json:"size"`                    // объём в монетах (0 = рассчитать из риска)
	Leverage     int       `json:"leverage"`                // запрошенное плечо (до применения политики)
	EntryPrice   float64   `json:"entry_price,omitempty"`   // 0 = market
	RiskDistance float64   `json:"risk_distance,omitempty"` // расстояние до SL в абсолютных ценах (0 = из процента)
	RiskPct      float64   `json:"risk_pct,omitempty"`      // расстояние до SL в % от цены входа
	StrategyID   string    `json:"strategy_id,omitempty"`   // пусто для ручных ордеров
	CreatedAt    time.Time `json:"created_at"`
}

// Стороны позиции
const (
	SideLong  = "long"  // длинная позиция (ставка на рост)
	SideShort = "short" // короткая позиция (ставка на падение)
)

// SideSign возвращает знаковый множитель стороны: +1 для лонга, -1 для шорта.
// Вся зеркальная арифметика SL/TP выражается через этот множитель,
// чтобы формулы не дублировались по сторонам.
func SideSign(side string) float64 {
	if side == SideShort {
		return -1
	}
	return 1
}

// OppositeSide возвращает противоположную сторону
func OppositeSide(side string) string {
	if side == SideLong {
		return SideShort
	}
	return SideLong
}

// ProtectionSpec - пара защитных цен, выровненных по тику
type ProtectionSpec struct {
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}
