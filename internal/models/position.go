package models

import "time"

// Position представляет открытую позицию глазами терминала.
// Источник истины - биржа: структура пересчитывается из ответов API
// и никогда не считается "новее" последнего опроса.
type Position struct {
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"` // long, short
	Size            float64   `json:"size"`
	EntryPrice      float64   `json:"entry_price"`
	MarkPrice       float64   `json:"mark_price"`
	Leverage        int       `json:"leverage"`
	UnrealizedPnl   float64   `json:"unrealized_pnl"`
	StopLoss        float64   `json:"stop_loss,omitempty"`   // 0 = не выставлен
	TakeProfit      float64   `json:"take_profit,omitempty"` // 0 = не выставлен
	ProtectionState string    `json:"protection_state"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Состояния защиты позиции.
// Переходы монотонны, кроме FAILED → UNPROTECTED при новой попытке
// реконсиляции (см. engine.ValidTransitions).
const (
	ProtectionUnprotected   = "UNPROTECTED"     // позиция без SL/TP (начальное состояние)
	ProtectionNative        = "NATIVE"          // SL/TP встроены в ордер при создании
	ProtectionTradingStop   = "TRADING_STOP"    // SL/TP навешаны через trading-stop endpoint
	ProtectionFailed        = "FAILED"          // защиту выставить не удалось, позиция закрыта
)

// IsProtected возвращает true если позиция несёт активную защиту
func IsProtected(state string) bool {
	return state == ProtectionNative || state == ProtectionTradingStop
}

// HasProtectiveOrders возвращает true если на бирже видны оба защитных уровня
func (p *Position) HasProtectiveOrders() bool {
	return p.StopLoss > 0 && p.TakeProfit > 0
}
