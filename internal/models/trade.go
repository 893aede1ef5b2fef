package models

import "time"

// TradeRecord - запись журнала о закрытой сделке.
// Движок только порождает событие; форматирование и отображение -
// забота внешнего журнала (UI).
type TradeRecord struct {
	ID         int       `json:"id" db:"id"`
	Symbol     string    `json:"symbol" db:"symbol"`
	Side       string    `json:"side" db:"side"` // long, short
	StrategyID string    `json:"strategy_id,omitempty" db:"strategy_id"`
	EntryPrice float64   `json:"entry_price" db:"entry_price"`
	ExitPrice  float64   `json:"exit_price" db:"exit_price"`
	Size       float64   `json:"size" db:"size"`
	Leverage   int       `json:"leverage" db:"leverage"`
	Pnl        float64   `json:"pnl" db:"pnl"`
	CloseReason string   `json:"close_reason" db:"close_reason"`
	OpenedAt   time.Time `json:"opened_at" db:"opened_at"`
	ClosedAt   time.Time `json:"closed_at" db:"closed_at"`
}

// Причины закрытия позиции
const (
	CloseReasonManual     = "MANUAL"      // закрыто пользователем
	CloseReasonSignal     = "SIGNAL"      // разворот сигнала (только при allow_signal_close)
	CloseReasonStopLoss   = "STOP_LOSS"   // сработал SL на бирже
	CloseReasonTakeProfit = "TAKE_PROFIT" // сработал TP на бирже
	CloseReasonEmergency  = "EMERGENCY"   // аварийное закрытие незащищённой позиции
)

// PnlPct возвращает PnL в процентах от маржи
func (t *TradeRecord) PnlPct() float64 {
	if t.EntryPrice <= 0 || t.Size <= 0 || t.Leverage <= 0 {
		return 0
	}
	margin := t.Size * t.EntryPrice / float64(t.Leverage)
	if margin <= 0 {
		return 0
	}
	return t.Pnl / margin * 100
}
