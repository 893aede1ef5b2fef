package service

import (
	"time"

	"tradeterm/internal/models"
	"tradeterm/internal/repository"
)

// SettingsStore - контракт хранилища настроек (репозиторий или мок)
type SettingsStore interface {
	GetPolicy() (*models.PolicyConfig, error)
	UpdatePolicy(policy *models.PolicyConfig) error
	GetAutoTrade() (*models.AutoTradeSettings, error)
	UpdateAutoTrade(auto *models.AutoTradeSettings) error
	GetCredentials(network string) (*models.APICredentials, error)
	UpsertCredentials(creds *models.APICredentials) error
}

// TradeStore - контракт журнала сделок
type TradeStore interface {
	Create(trade *models.TradeRecord) error
	List(limit int) ([]*models.TradeRecord, error)
	ListBySymbol(symbol string, limit int) ([]*models.TradeRecord, error)
	Summary(since time.Time) (*repository.TradeSummary, error)
}

// TradeBroadcaster доставляет записи журнала подключённому UI
type TradeBroadcaster interface {
	BroadcastTrade(trade *models.TradeRecord)
}

// SettingsServiceInterface - контракт сервиса настроек для API handlers
type SettingsServiceInterface interface {
	Policy() *models.PolicyConfig
	UpdatePolicy(req *UpdatePolicyRequest) (*models.PolicyConfig, error)
	AutoTrade() (*models.AutoTradeSettings, error)
	UpdateAutoTrade(auto *models.AutoTradeSettings) error
	SaveCredentials(network, apiKey, apiSecret string) error
}

// JournalServiceInterface - контракт журнала сделок для API handlers
type JournalServiceInterface interface {
	Record(trade *models.TradeRecord)
	List(symbol string, limit int) ([]*models.TradeRecord, error)
	Summary(since time.Time) (*repository.TradeSummary, error)
}
