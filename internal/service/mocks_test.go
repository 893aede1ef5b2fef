package service

import (
	"sync"
	"time"

	"tradeterm/internal/models"
	"tradeterm/internal/repository"
)

// mockSettingsStore - in-memory реализация SettingsStore
type mockSettingsStore struct {
	mu     sync.Mutex
	policy models.PolicyConfig
	auto   models.AutoTradeSettings
	creds  map[string]*models.APICredentials

	updatePolicyErr error
}

func newMockSettingsStore() *mockSettingsStore {
	return &mockSettingsStore{
		policy: models.DefaultPolicy(),
		auto:   models.DefaultAutoTradeSettings(),
		creds:  make(map[string]*models.APICredentials),
	}
}

func (m *mockSettingsStore) GetPolicy() (*models.PolicyConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	policy := m.policy
	return &policy, nil
}

func (m *mockSettingsStore) UpdatePolicy(policy *models.PolicyConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updatePolicyErr != nil {
		return m.updatePolicyErr
	}
	m.policy = *policy
	return nil
}

func (m *mockSettingsStore) GetAutoTrade() (*models.AutoTradeSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	auto := m.auto
	return &auto, nil
}

func (m *mockSettingsStore) UpdateAutoTrade(auto *models.AutoTradeSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auto = *auto
	return nil
}

func (m *mockSettingsStore) GetCredentials(network string) (*models.APICredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.creds[network]
	if !ok {
		return nil, repository.ErrCredentialsNotFound
	}
	return creds, nil
}

func (m *mockSettingsStore) UpsertCredentials(creds *models.APICredentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[creds.Network] = creds
	return nil
}

// mockTradeStore - in-memory реализация TradeStore
type mockTradeStore struct {
	mu        sync.Mutex
	trades    []*models.TradeRecord
	createErr error
}

func (m *mockTradeStore) Create(trade *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	trade.ID = len(m.trades) + 1
	m.trades = append(m.trades, trade)
	return nil
}

func (m *mockTradeStore) List(limit int) ([]*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trades, nil
}

func (m *mockTradeStore) ListBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TradeRecord
	for _, t := range m.trades {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTradeStore) Summary(since time.Time) (*repository.TradeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &repository.TradeSummary{}
	for _, t := range m.trades {
		summary.Total++
		summary.TotalPnl += t.Pnl
		if t.Pnl > 0 {
			summary.Wins++
		} else if t.Pnl < 0 {
			summary.Losses++
		}
	}
	return summary, nil
}

func (m *mockTradeStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

// mockBroadcaster записывает разосланные сделки
type mockBroadcaster struct {
	mu     sync.Mutex
	trades []*models.TradeRecord
}

func (m *mockBroadcaster) BroadcastTrade(trade *models.TradeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trade)
}

func (m *mockBroadcaster) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}
