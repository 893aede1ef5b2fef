package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
	"tradeterm/internal/service"
	"tradeterm/pkg/utils"
)

// PositionSource - доступ к открытым позициям биржи
type PositionSource interface {
	GetOpenPositions(ctx context.Context) ([]*exchange.Position, error)
	ClosePosition(ctx context.Context, symbol, side string, qty float64) error
}

// PositionHandler обрабатывает запросы по открытым позициям.
//
// Endpoints:
// - GET /api/v1/positions - список открытых позиций с защитными уровнями
// - POST /api/v1/positions/{symbol}/close - закрыть позицию reduce-only маркетом
type PositionHandler struct {
	positions PositionSource
	journal   service.JournalServiceInterface
}

// NewPositionHandler создает новый PositionHandler с внедрением зависимостей
func NewPositionHandler(positions PositionSource, journal service.JournalServiceInterface) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		journal:   journal,
	}
}

// GetPositions возвращает открытые позиции по данным биржи.
//
// GET /api/v1/positions
//
// Response 200 OK:
//
//	[{"symbol": "BTCUSDT", "side": "long", "size": 0.01, "entry_price": 50000,
//	  "stop_loss": 49000, "take_profit": 52000, ...}]
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.GetOpenPositions(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to get positions", err.Error())
		return
	}

	if positions == nil {
		positions = []*exchange.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// ClosePosition закрывает позицию по символу.
//
// POST /api/v1/positions/{symbol}/close
//
// Закрытие reduce-only маркет ордером на весь размер позиции.
// Событие пишется в журнал с причиной MANUAL, PnL берётся
// из последнего нереализованного значения.
//
// Response 200 OK: {"message": "position closed"}
// Response 404 Not Found: позиции по символу нет
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	positions, err := h.positions.GetOpenPositions(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to get positions", err.Error())
		return
	}

	var pos *exchange.Position
	for _, p := range positions {
		if p.Symbol == symbol {
			pos = p
			break
		}
	}
	if pos == nil {
		writeError(w, http.StatusNotFound, "no open position for symbol", symbol)
		return
	}

	// Фоновый контекст: закрытие не должно обрываться отключением клиента
	if err := h.positions.ClosePosition(context.Background(), pos.Symbol, pos.Side, pos.Size); err != nil {
		writeError(w, http.StatusBadGateway, "failed to close position", err.Error())
		return
	}

	if h.journal != nil {
		h.journal.Record(&models.TradeRecord{
			Symbol:      pos.Symbol,
			Side:        pos.Side,
			EntryPrice:  pos.EntryPrice,
			ExitPrice:   pos.MarkPrice,
			Size:        pos.Size,
			Leverage:    pos.Leverage,
			Pnl:         utils.CalculatePNL(pos.Side, pos.EntryPrice, pos.MarkPrice, pos.Size),
			CloseReason: models.CloseReasonManual,
			ClosedAt:    time.Now(),
		})
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "position closed"})
}
