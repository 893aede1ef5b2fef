package engine

import "tradeterm/internal/models"

// ValidTransitions определяет допустимые переходы между состояниями защиты.
// Переходы монотонны: защищённое или закрытое состояние назад не откатывается.
// Единственное исключение - FAILED → UNPROTECTED при свежем цикле сверки,
// когда позиция всё ещё жива и машина получает новый шанс её защитить.
var ValidTransitions = map[string][]string{
	models.ProtectionUnprotected: {models.ProtectionNative, models.ProtectionTradingStop, models.ProtectionFailed},
	models.ProtectionNative:      {},
	models.ProtectionTradingStop: {},
	models.ProtectionFailed:      {models.ProtectionUnprotected}, // только свежая сверка
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния защиты для UI
func StateInfo(s string) string {
	switch s {
	case models.ProtectionUnprotected:
		return "Позиция без защитных ордеров"
	case models.ProtectionNative:
		return "SL/TP встроены в ордер"
	case models.ProtectionTradingStop:
		return "SL/TP навешены через trading-stop"
	case models.ProtectionFailed:
		return "Защита не удалась, позиция аварийно закрыта"
	default:
		return "Неизвестное состояние"
	}
}
