package handlers

import (
	"context"
	"errors"
	"net/http"

	"tradeterm/internal/engine"
)

// AutoController управляет жизненным циклом автотрейдера
type AutoController interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
}

// AutoHandler обрабатывает запросы управления автоторговлей.
//
// Endpoints:
// - POST /api/v1/auto/start - запустить цикл оценки стратегий
// - POST /api/v1/auto/stop - остановить (открытые защитные
//   последовательности при этом дорабатывают до конца)
// - GET /api/v1/auto/status - текущее состояние
type AutoHandler struct {
	auto AutoController
}

// NewAutoHandler создает новый AutoHandler с внедрением зависимостей
func NewAutoHandler(auto AutoController) *AutoHandler {
	return &AutoHandler{auto: auto}
}

// Start запускает автотрейдер.
//
// POST /api/v1/auto/start
//
// Response 200 OK: {"message": "auto trading started"}
// Response 409 Conflict: уже запущен
func (h *AutoHandler) Start(w http.ResponseWriter, r *http.Request) {
	// Жизненный цикл автотрейдера привязан к процессу, не к запросу
	if err := h.auto.Start(context.Background()); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "auto trading already running", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start auto trading", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "auto trading started"})
}

// Stop останавливает автотрейдер. Идемпотентен.
//
// POST /api/v1/auto/stop
func (h *AutoHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.auto.Stop()
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "auto trading stopped"})
}

// Status возвращает состояние автотрейдера.
//
// GET /api/v1/auto/status
func (h *AutoHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"running": h.auto.Running()})
}
