package handlers

import (
	"net/http"
	"strconv"
	"time"

	"tradeterm/internal/models"
	"tradeterm/internal/service"
)

// JournalHandler обрабатывает запросы журнала сделок.
//
// Endpoints:
// - GET /api/v1/journal?symbol=BTCUSDT&limit=50 - записи журнала
// - GET /api/v1/journal/summary?period=day|week|month|all - агрегаты
type JournalHandler struct {
	journal service.JournalServiceInterface
}

// NewJournalHandler создает новый JournalHandler с внедрением зависимостей
func NewJournalHandler(journal service.JournalServiceInterface) *JournalHandler {
	return &JournalHandler{journal: journal}
}

// GetJournal возвращает последние записи журнала.
//
// GET /api/v1/journal
//
// Query параметры:
// - symbol: фильтр по символу (опционально)
// - limit: максимум записей, по умолчанию 100
func (h *JournalHandler) GetJournal(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", raw)
			return
		}
		limit = parsed
	}

	trades, err := h.journal.List(symbol, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get journal", err.Error())
		return
	}

	if trades == nil {
		trades = []*models.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetSummary возвращает агрегированную статистику за период.
//
// GET /api/v1/journal/summary?period=day
//
// Периоды: day, week, month, all (по умолчанию all).
func (h *JournalHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")

	var since time.Time
	now := time.Now()
	switch period {
	case "day":
		since = now.AddDate(0, 0, -1)
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "", "all":
		// нулевое время = без нижней границы
	default:
		writeError(w, http.StatusBadRequest, "period must be day, week, month or all", period)
		return
	}

	summary, err := h.journal.Summary(since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get summary", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
