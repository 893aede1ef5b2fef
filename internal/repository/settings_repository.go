package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"tradeterm/internal/models"
)

// Ошибки репозитория настроек
var (
	ErrSettingsNotFound    = errors.New("settings not found")
	ErrCredentialsNotFound = errors.New("api credentials not found")
)

// SettingsRepository - работа с таблицами settings и api_credentials
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetPolicy возвращает конфигурацию политики исполнения (всегда id=1,
// одна запись). Если записи нет, создаёт её с дефолтными значениями.
func (r *SettingsRepository) GetPolicy() (*models.PolicyConfig, error) {
	query := `
		SELECT network, strict_mode, leverage_default, leverage_override, allow_signal_close, risk_pct, updated_at
		FROM settings
		WHERE id = 1`

	policy := &models.PolicyConfig{}
	err := r.db.QueryRow(query).Scan(
		&policy.Network,
		&policy.StrictMode,
		&policy.LeverageDefault,
		&policy.LeverageOverride,
		&policy.AllowSignalClose,
		&policy.RiskPct,
		&policy.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.createDefaultPolicy()
		}
		return nil, err
	}

	return policy, nil
}

// UpdatePolicy сохраняет конфигурацию политики
func (r *SettingsRepository) UpdatePolicy(policy *models.PolicyConfig) error {
	query := `
		UPDATE settings
		SET network = $1, strict_mode = $2, leverage_default = $3, leverage_override = $4, allow_signal_close = $5, risk_pct = $6, updated_at = $7
		WHERE id = 1`

	policy.UpdatedAt = time.Now()

	result, err := r.db.Exec(query,
		policy.Network,
		policy.StrictMode,
		policy.LeverageDefault,
		policy.LeverageOverride,
		policy.AllowSignalClose,
		policy.RiskPct,
		policy.UpdatedAt,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrSettingsNotFound
	}

	return nil
}

// GetAutoTrade возвращает настройки автоторговли из settings (json колонка)
func (r *SettingsRepository) GetAutoTrade() (*models.AutoTradeSettings, error) {
	query := `SELECT auto_trade FROM settings WHERE id = 1`

	var autoJSON []byte
	err := r.db.QueryRow(query).Scan(&autoJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			auto := models.DefaultAutoTradeSettings()
			return &auto, nil
		}
		return nil, err
	}

	if len(autoJSON) == 0 {
		auto := models.DefaultAutoTradeSettings()
		return &auto, nil
	}

	auto := &models.AutoTradeSettings{}
	if err := json.Unmarshal(autoJSON, auto); err != nil {
		return nil, err
	}
	return auto, nil
}

// UpdateAutoTrade сохраняет настройки автоторговли
func (r *SettingsRepository) UpdateAutoTrade(auto *models.AutoTradeSettings) error {
	autoJSON, err := json.Marshal(auto)
	if err != nil {
		return err
	}

	query := `
		UPDATE settings
		SET auto_trade = $1, updated_at = $2
		WHERE id = 1`

	result, err := r.db.Exec(query, autoJSON, time.Now())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrSettingsNotFound
	}

	return nil
}

// GetCredentials возвращает ключи API для сети.
// Секрет отдаётся шифротекстом, расшифровка - забота сервиса.
func (r *SettingsRepository) GetCredentials(network string) (*models.APICredentials, error) {
	query := `
		SELECT network, api_key, api_secret_enc, updated_at
		FROM api_credentials
		WHERE network = $1`

	creds := &models.APICredentials{}
	err := r.db.QueryRow(query, network).Scan(
		&creds.Network,
		&creds.APIKey,
		&creds.APISecretCipher,
		&creds.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialsNotFound
		}
		return nil, err
	}

	return creds, nil
}

// UpsertCredentials сохраняет ключи API для сети (секрет уже зашифрован)
func (r *SettingsRepository) UpsertCredentials(creds *models.APICredentials) error {
	query := `
		INSERT INTO api_credentials (network, api_key, api_secret_enc, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network) DO UPDATE
		SET api_key = EXCLUDED.api_key, api_secret_enc = EXCLUDED.api_secret_enc, updated_at = EXCLUDED.updated_at`

	creds.UpdatedAt = time.Now()

	_, err := r.db.Exec(query,
		creds.Network,
		creds.APIKey,
		creds.APISecretCipher,
		creds.UpdatedAt,
	)
	return err
}

// DeleteCredentials удаляет ключи API для сети
func (r *SettingsRepository) DeleteCredentials(network string) error {
	result, err := r.db.Exec(`DELETE FROM api_credentials WHERE network = $1`, network)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrCredentialsNotFound
	}

	return nil
}

// createDefaultPolicy создает запись настроек с дефолтными значениями
func (r *SettingsRepository) createDefaultPolicy() (*models.PolicyConfig, error) {
	policy := models.DefaultPolicy()
	policy.UpdatedAt = time.Now()

	autoJSON, err := json.Marshal(models.DefaultAutoTradeSettings())
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO settings (id, network, strict_mode, leverage_default, leverage_override, allow_signal_close, risk_pct, auto_trade, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.Exec(query,
		policy.Network,
		policy.StrictMode,
		policy.LeverageDefault,
		policy.LeverageOverride,
		policy.AllowSignalClose,
		policy.RiskPct,
		autoJSON,
		policy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &policy, nil
}
