package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradeterm/internal/engine"
	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
	"tradeterm/internal/repository"
	"tradeterm/internal/service"
)

// ErrMockExchange - общая ошибка для имитации отказа биржи
var ErrMockExchange = errors.New("mock exchange error")

// ============ Mock Order Executor ============

type mockExecutor struct {
	mu      sync.Mutex
	intents []*models.OrderIntent
	result  *engine.ProtectResult
	err     error
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{
		result: &engine.ProtectResult{
			State: models.ProtectionNative,
			Order: &exchange.Order{ID: "order-1", Symbol: "BTCUSDT", AvgFillPrice: 50000},
			Protection: &models.ProtectionSpec{
				StopLoss:   49000,
				TakeProfit: 52000,
			},
		},
	}
}

func (m *mockExecutor) OpenProtected(ctx context.Context, intent *models.OrderIntent) (*engine.ProtectResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents = append(m.intents, intent)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockExecutor) lastIntent() *models.OrderIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.intents) == 0 {
		return nil
	}
	return m.intents[len(m.intents)-1]
}

// ============ Mock Position Source ============

type mockPositions struct {
	mu         sync.Mutex
	positions  []*exchange.Position
	listErr    error
	closeErr   error
	closeCalls []string
}

func (m *mockPositions) GetOpenPositions(ctx context.Context) ([]*exchange.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.positions, nil
}

func (m *mockPositions) ClosePosition(ctx context.Context, symbol, side string, qty float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closeErr != nil {
		return m.closeErr
	}
	m.closeCalls = append(m.closeCalls, symbol)
	return nil
}

// ============ Mock Auto Controller ============

type mockAuto struct {
	mu       sync.Mutex
	running  bool
	startErr error
}

func (m *mockAuto) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

func (m *mockAuto) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

func (m *mockAuto) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ============ Mock Settings Service ============

type mockSettings struct {
	mu        sync.Mutex
	policy    models.PolicyConfig
	auto      models.AutoTradeSettings
	updateErr error
	credsErr  error
	lastCreds *credentialsRequest
}

func newMockSettings() *mockSettings {
	return &mockSettings{
		policy: models.DefaultPolicy(),
		auto:   models.DefaultAutoTradeSettings(),
	}
}

func (m *mockSettings) Policy() *models.PolicyConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	policy := m.policy
	return &policy
}

func (m *mockSettings) UpdatePolicy(req *service.UpdatePolicyRequest) (*models.PolicyConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if req.Network != nil {
		m.policy.Network = *req.Network
	}
	if req.RiskPct != nil {
		m.policy.RiskPct = *req.RiskPct
	}
	policy := m.policy
	return &policy, nil
}

func (m *mockSettings) AutoTrade() (*models.AutoTradeSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	auto := m.auto
	return &auto, nil
}

func (m *mockSettings) UpdateAutoTrade(auto *models.AutoTradeSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.auto = *auto
	return nil
}

func (m *mockSettings) SaveCredentials(network, apiKey, apiSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credsErr != nil {
		return m.credsErr
	}
	m.lastCreds = &credentialsRequest{Network: network, APIKey: apiKey, APISecret: apiSecret}
	return nil
}

// ============ Mock Journal Service ============

type mockJournal struct {
	mu       sync.Mutex
	trades   []*models.TradeRecord
	recorded []*models.TradeRecord
	summary  *repository.TradeSummary
	listErr  error
}

func (m *mockJournal) Record(trade *models.TradeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, trade)
}

func (m *mockJournal) List(symbol string, limit int) ([]*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if symbol == "" {
		return m.trades, nil
	}
	var filtered []*models.TradeRecord
	for _, t := range m.trades {
		if t.Symbol == symbol {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

func (m *mockJournal) Summary(since time.Time) (*repository.TradeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summary != nil {
		return m.summary, nil
	}
	return &repository.TradeSummary{}, nil
}
