package engine

import (
	"sync/atomic"

	"tradeterm/internal/models"
)

// PolicyStore публикует конфигурацию политики исполнения как неизменяемый
// снапшот. Читатели (торговые пути, автотрейдер) получают снапшот без
// блокировок; единственный писатель - SettingsService.
type PolicyStore struct {
	current atomic.Pointer[models.PolicyConfig]
}

// NewPolicyStore создаёт хранилище с начальной конфигурацией
func NewPolicyStore(initial models.PolicyConfig) *PolicyStore {
	s := &PolicyStore{}
	s.current.Store(&initial)
	return s
}

// Snapshot возвращает текущую конфигурацию. Возвращённое значение
// неизменяемо: писатель публикует новый указатель, не мутирует старый.
func (s *PolicyStore) Snapshot() *models.PolicyConfig {
	return s.current.Load()
}

// Publish валидирует и атомарно публикует новую конфигурацию
func (s *PolicyStore) Publish(cfg models.PolicyConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.current.Store(&cfg)
	return nil
}

// ApplyToIntent применяет политику к intent'у перед исполнением:
// клампит плечо, подставляет дефолтный риск если не задан.
// Возвращает копию, исходный intent не трогается.
func (s *PolicyStore) ApplyToIntent(intent models.OrderIntent) models.OrderIntent {
	policy := s.Snapshot()
	intent.Leverage = policy.EffectiveLeverage(intent.Leverage)
	if intent.RiskPct <= 0 && intent.RiskDistance <= 0 {
		intent.RiskPct = policy.RiskPct
	}
	return intent
}
