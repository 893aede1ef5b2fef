package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tradeterm/internal/models"
	"tradeterm/internal/service"
)

// SettingsHandler обрабатывает запросы настроек терминала.
//
// Endpoints:
// - GET /api/v1/settings - политика исполнения + настройки автоторговли
// - PUT /api/v1/settings - обновить политику (включая переключение сети)
// - PUT /api/v1/settings/auto - обновить настройки автоторговли
// - PUT /api/v1/settings/credentials - сохранить ключи API для сети
//
// Переключение demo/mainnet - только явный PUT с полем network.
// Автоматического переключения сети нигде в терминале нет.
type SettingsHandler struct {
	settings service.SettingsServiceInterface
}

// NewSettingsHandler создает новый SettingsHandler с внедрением зависимостей
func NewSettingsHandler(settings service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// settingsResponse - составной ответ GET /settings
type settingsResponse struct {
	Policy    *models.PolicyConfig      `json:"policy"`
	AutoTrade *models.AutoTradeSettings `json:"auto_trade"`
}

// GetSettings возвращает текущую политику и настройки автоторговли.
//
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	auto, err := h.settings.AutoTrade()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Policy:    h.settings.Policy(),
		AutoTrade: auto,
	})
}

// UpdateSettings обновляет политику исполнения.
//
// PUT /api/v1/settings
//
// Request body (все поля опциональны):
//
//	{
//	  "network": "mainnet",
//	  "strict_mode": true,
//	  "leverage_override": 20,
//	  "clear_leverage_override": false,
//	  "allow_signal_close": false,
//	  "risk_pct": 2.0
//	}
//
// Response 200 OK: обновлённая политика
// Response 400 Bad Request: валидация не прошла, снапшот не изменён
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	policy, err := h.settings.UpdatePolicy(&req)
	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "failed to update settings", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, policy)
}

// UpdateAutoTrade обновляет настройки автоторговли.
//
// PUT /api/v1/settings/auto
func (h *SettingsHandler) UpdateAutoTrade(w http.ResponseWriter, r *http.Request) {
	var auto models.AutoTradeSettings
	if err := json.NewDecoder(r.Body).Decode(&auto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.settings.UpdateAutoTrade(&auto); err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "failed to update auto trade settings", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, auto)
}

// credentialsRequest - тело PUT /settings/credentials.
// Секрет принимается открытым текстом по локальному соединению
// и шифруется перед сохранением в БД.
type credentialsRequest struct {
	Network   string `json:"network"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// SaveCredentials сохраняет ключи API для сети.
//
// PUT /api/v1/settings/credentials
func (h *SettingsHandler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.settings.SaveCredentials(req.Network, req.APIKey, req.APISecret); err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "failed to save credentials", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "credentials saved"})
}

// isValidationError отличает ошибки валидации от ошибок хранилища
func isValidationError(err error) bool {
	return errors.Is(err, models.ErrInvalidNetwork) ||
		errors.Is(err, models.ErrInvalidLeverage) ||
		errors.Is(err, service.ErrInvalidRiskPct) ||
		errors.Is(err, service.ErrInvalidTimeframe) ||
		errors.Is(err, service.ErrInvalidMaxPositions) ||
		errors.Is(err, service.ErrEmptyCredentials)
}
