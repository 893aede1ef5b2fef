package engine

import (
	"errors"
	"fmt"
)

// Таксономия ошибок защитного движка.
// Каждая ошибка соответствует конкретному исходу последовательности защиты,
// и по ней выбирается дальнейшее действие: отклонить intent, играть fallback
// или поднимать аварийный алерт.
var (
	// ErrPrecisionUnavailable - нет ни tick size, ни price scale для символа.
	// Intent отклоняется до отправки на биржу.
	ErrPrecisionUnavailable = errors.New("precision unavailable for symbol")

	// ErrOrderRejected - биржа отклонила создание ордера целиком.
	// Позиции нет, intent отброшен.
	ErrOrderRejected = errors.New("order rejected by exchange")

	// ErrProtectionAttachFailed - ни встроенные SL/TP, ни trading-stop
	// не удалось навесить. Триггерит аварийное закрытие.
	ErrProtectionAttachFailed = errors.New("protection attach failed")

	// ErrEmergencyCloseFailed - аварийное закрытие тоже отклонено.
	// Позиция открыта и не защищена. Фатальный алерт.
	ErrEmergencyCloseFailed = errors.New("emergency close failed: position remains open and unprotected")

	// ErrNetworkUnavailable - транзиентная сетевая ошибка
	ErrNetworkUnavailable = errors.New("network error")
)

// ProtectionError содержит контекст терминальной ошибки защитной последовательности
type ProtectionError struct {
	Symbol string
	State  string // состояние защиты в момент ошибки
	Err    error
}

func (e *ProtectionError) Error() string {
	return fmt.Sprintf("protection %s (state %s): %v", e.Symbol, e.State, e.Err)
}

func (e *ProtectionError) Unwrap() error {
	return e.Err
}
