package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tradeterm/internal/engine"
	"tradeterm/internal/models"
	"tradeterm/pkg/crypto"
)

// Ошибки сервиса настроек
var (
	ErrInvalidRiskPct     = errors.New("risk_pct must be in (0, 10]")
	ErrInvalidTimeframe   = errors.New("unknown timeframe")
	ErrInvalidMaxPositions = errors.New("max_positions must be >= 1")
	ErrEmptyCredentials   = errors.New("api key and secret must not be empty")
)

var validTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "1h": true, "4h": true, "1d": true,
}

// SettingsService - единственный писатель политики исполнения.
//
// Все изменения политики проходят здесь: валидация, сохранение в БД,
// публикация нового снапшота в PolicyStore. Торговые пути читают
// только снапшоты и никогда не пишут.
type SettingsService struct {
	store         SettingsStore
	policy        *engine.PolicyStore
	encryptionKey string
	log           *zap.Logger

	// Вызывается после успешного переключения сети, опционален.
	// Биржевой клиент создаётся под конкретную сеть, поэтому смена
	// сети в политике должна доходить до него, а не только до БД.
	onNetworkChange func(network string)
}

// NewSettingsService создает новый экземпляр SettingsService
func NewSettingsService(store SettingsStore, policy *engine.PolicyStore, encryptionKey string, log *zap.Logger) *SettingsService {
	return &SettingsService{
		store:         store,
		policy:        policy,
		encryptionKey: encryptionKey,
		log:           log,
	}
}

// SetNetworkChanged задаёт получателя событий смены сети.
// Вызывать до старта HTTP сервера.
func (s *SettingsService) SetNetworkChanged(fn func(network string)) {
	s.onNetworkChange = fn
}

// Load читает политику из БД и публикует её в PolicyStore.
// Вызывается один раз при старте.
func (s *SettingsService) Load() (*models.PolicyConfig, error) {
	policy, err := s.store.GetPolicy()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if err := s.policy.Publish(*policy); err != nil {
		return nil, fmt.Errorf("publish policy: %w", err)
	}
	return policy, nil
}

// Policy возвращает текущий снапшот политики
func (s *SettingsService) Policy() *models.PolicyConfig {
	return s.policy.Snapshot()
}

// UpdatePolicyRequest - запрос на обновление политики.
// Все поля опциональны, обновляются только переданные.
type UpdatePolicyRequest struct {
	Network          *string  `json:"network,omitempty"`
	StrictMode       *bool    `json:"strict_mode,omitempty"`
	LeverageOverride *int     `json:"leverage_override,omitempty"`
	AllowSignalClose *bool    `json:"allow_signal_close,omitempty"`
	RiskPct          *float64 `json:"risk_pct,omitempty"`
	// Явный сброс override (возврат к строгому дефолту)
	ClearLeverageOverride bool `json:"clear_leverage_override,omitempty"`
}

// UpdatePolicy валидирует, сохраняет и публикует новую политику.
// Переключение сети - тоже сюда: это явное действие пользователя.
func (s *SettingsService) UpdatePolicy(req *UpdatePolicyRequest) (*models.PolicyConfig, error) {
	current := s.policy.Snapshot()
	next := *current

	if req.Network != nil {
		next.Network = *req.Network
	}
	if req.StrictMode != nil {
		next.StrictMode = *req.StrictMode
	}
	if req.ClearLeverageOverride {
		next.LeverageOverride = nil
	} else if req.LeverageOverride != nil {
		next.LeverageOverride = req.LeverageOverride
	}
	if req.AllowSignalClose != nil {
		next.AllowSignalClose = *req.AllowSignalClose
	}
	if req.RiskPct != nil {
		if *req.RiskPct <= 0 || *req.RiskPct > 10 {
			return nil, ErrInvalidRiskPct
		}
		next.RiskPct = *req.RiskPct
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.UpdatePolicy(&next); err != nil {
		return nil, err
	}
	if err := s.policy.Publish(next); err != nil {
		return nil, err
	}

	if next.Network != current.Network {
		s.log.Info("network switched",
			zap.String("from", current.Network),
			zap.String("to", next.Network))
		if s.onNetworkChange != nil {
			s.onNetworkChange(next.Network)
		}
	}
	s.log.Info("execution policy updated",
		zap.String("network", next.Network),
		zap.Bool("strict_mode", next.StrictMode),
		zap.Bool("allow_signal_close", next.AllowSignalClose))

	return &next, nil
}

// AutoTrade возвращает настройки автоторговли
func (s *SettingsService) AutoTrade() (*models.AutoTradeSettings, error) {
	return s.store.GetAutoTrade()
}

// UpdateAutoTrade валидирует и сохраняет настройки автоторговли
func (s *SettingsService) UpdateAutoTrade(auto *models.AutoTradeSettings) error {
	if !validTimeframes[auto.Timeframe] {
		return ErrInvalidTimeframe
	}
	if auto.MaxPositions < 1 {
		return ErrInvalidMaxPositions
	}
	return s.store.UpdateAutoTrade(auto)
}

// SaveCredentials шифрует секрет и сохраняет ключи API для сети
func (s *SettingsService) SaveCredentials(network, apiKey, apiSecret string) error {
	if network != models.NetworkDemo && network != models.NetworkMainnet {
		return models.ErrInvalidNetwork
	}
	if apiKey == "" || apiSecret == "" {
		return ErrEmptyCredentials
	}

	cipher, err := crypto.Encrypt(apiSecret, []byte(s.encryptionKey))
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}

	if err := s.store.UpsertCredentials(&models.APICredentials{
		Network:         network,
		APIKey:          apiKey,
		APISecretCipher: cipher,
	}); err != nil {
		return err
	}

	s.log.Info("api credentials saved", zap.String("network", network))
	return nil
}

// Credentials возвращает расшифрованные ключи API для сети
func (s *SettingsService) Credentials(network string) (apiKey, apiSecret string, err error) {
	creds, err := s.store.GetCredentials(network)
	if err != nil {
		return "", "", err
	}

	secret, err := crypto.Decrypt(creds.APISecretCipher, []byte(s.encryptionKey))
	if err != nil {
		return "", "", fmt.Errorf("decrypt secret: %w", err)
	}

	return creds.APIKey, secret, nil
}
