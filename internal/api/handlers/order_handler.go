package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tradeterm/internal/engine"
	"tradeterm/internal/models"
)

// OrderExecutor исполняет намерение открыть позицию с гарантией защиты
type OrderExecutor interface {
	OpenProtected(ctx context.Context, intent *models.OrderIntent) (*engine.ProtectResult, error)
}

// OrderHandler обрабатывает ручные ордера терминала.
//
// Endpoints:
// - POST /api/v1/orders - открыть защищённую позицию по ручному intent
//
// Ручной intent проходит тот же путь, что и автоматический:
// политика исполнения применяется до передачи движку защиты,
// обойти клампинг плеча через этот endpoint нельзя.
type OrderHandler struct {
	policy   *engine.PolicyStore
	executor OrderExecutor
}

// NewOrderHandler создает новый OrderHandler с внедрением зависимостей
func NewOrderHandler(policy *engine.PolicyStore, executor OrderExecutor) *OrderHandler {
	return &OrderHandler{
		policy:   policy,
		executor: executor,
	}
}

// CreateOrder открывает защищённую позицию.
//
// POST /api/v1/orders
//
// Request body:
//
//	{
//	  "symbol": "BTCUSDT",
//	  "side": "long",
//	  "size": 0.01,          // 0 = рассчитать из риска
//	  "leverage": 10,
//	  "entry_price": 0,      // 0 = market
//	  "risk_pct": 2.0
//	}
//
// Response 201 Created:
//
//	{"state": "NATIVE", "order": {...}, "protection": {...}}
//
// Response 422 Unprocessable Entity: ордер отклонён биржей или
// защиту выставить не удалось (позиция при этом уже закрыта аварийно,
// детали в поле details и в журнале уведомлений).
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var intent models.OrderIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if intent.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required", "")
		return
	}
	if intent.Side != models.SideLong && intent.Side != models.SideShort {
		writeError(w, http.StatusBadRequest, "side must be long or short", "")
		return
	}
	if intent.Size < 0 {
		writeError(w, http.StatusBadRequest, "size must not be negative", "")
		return
	}

	intent.CreatedAt = time.Now()
	applied := h.policy.ApplyToIntent(intent)

	// Защитная последовательность не должна обрываться отключением
	// клиента: исполняем на фоновом контексте, ответ ждёт завершения
	result, err := h.executor.OpenProtected(context.Background(), &applied)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, engine.ErrNetworkUnavailable) {
			status = http.StatusBadGateway
		}
		writeError(w, status, "order execution failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"state":      result.State,
		"order":      result.Order,
		"protection": result.Protection,
	})
}
