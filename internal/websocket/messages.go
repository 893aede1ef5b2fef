package websocket

import (
	"time"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений терминала
const (
	// MessageTypePositionUpdate - обновление открытой позиции
	// (цена, PNL, защитные уровни)
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeNotification - событие движка: открытие, закрытие,
	// отказ защиты, голая позиция, аварийное закрытие
	MessageTypeNotification MessageType = "notification"

	// MessageTypeSignal - состояние конфлюенса по символу
	MessageTypeSignal MessageType = "signal"

	// MessageTypeTrade - закрытая сделка записана в журнал
	MessageTypeTrade MessageType = "trade"

	// MessageTypeBalanceUpdate - обновление баланса аккаунта
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"

	// MessageTypeTicker - обновление цены с публичного стрима биржи
	MessageTypeTicker MessageType = "ticker"
)

// PositionUpdateMessage - сообщение об обновлении позиции
type PositionUpdateMessage struct {
	Type      MessageType        `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Data      *exchange.Position `json:"data"`
}

// NotificationMessage - сообщение с уведомлением движка
type NotificationMessage struct {
	Type      MessageType         `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Data      models.Notification `json:"data"`
}

// SignalMessage - состояние конфлюенса по символу
type SignalMessage struct {
	Type      MessageType              `json:"type"`
	Timestamp time.Time                `json:"timestamp"`
	Data      *models.ConfluenceResult `json:"data"`
}

// TradeMessage - закрытая сделка для журнала UI
type TradeMessage struct {
	Type      MessageType         `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Data      *models.TradeRecord `json:"data"`
}

// TickerMessage - текущая цена символа для прайс-ленты UI
type TickerMessage struct {
	Type      MessageType      `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      *exchange.Ticker `json:"data"`
}

// BalanceUpdateMessage - обновление баланса
type BalanceUpdateMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Network   string      `json:"network"`
	Balance   float64     `json:"balance"`
}
