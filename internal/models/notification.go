package models

import "time"

// Notification представляет уведомление о событии терминала
type Notification struct {
	ID        int                    `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`     // см. константы ниже
	Severity  string                 `json:"severity"` // info, warn, error, fatal
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// Типы уведомлений
const (
	NotificationTypeOpen           = "OPEN"             // позиция открыта
	NotificationTypeClose          = "CLOSE"            // позиция закрыта
	NotificationTypeOrderRejected  = "ORDER_REJECTED"   // биржа отклонила ордер, позиции нет
	NotificationTypeProtectionFail = "PROTECTION_FAIL"  // SL/TP не выставились, позиция закрыта аварийно
	NotificationTypeNakedPosition  = "NAKED_POSITION"   // реконсиляция нашла позицию без защиты
	NotificationTypeEmergencyFail  = "EMERGENCY_FAIL"   // аварийное закрытие не прошло - позиция открыта и без защиты
	NotificationTypeSignal         = "SIGNAL"           // конфлюенс-сигнал
	NotificationTypeNetwork        = "NETWORK"          // смена сети, переподключение биржи
	NotificationTypeError          = "ERROR"            // прочие ошибки API
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
	// SeverityFatal - единственный уровень для EMERGENCY_FAIL:
	// позиция осталась открытой без защиты и требует ручного вмешательства
	SeverityFatal = "fatal"
)
