package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

// Идентификаторы встроенных стратегий. Хранятся в настройках,
// менять нельзя без миграции.
const (
	IDTrendFollowing = "trend_following"
	IDBreakout       = "breakout"
	IDMeanReversion  = "mean_reversion"
)

// Evaluator оценивает рынок по символу и отдаёт направленный голос.
// Реализации не размещают ордера и не знают про политику исполнения.
type Evaluator interface {
	// ID - стабильный строковый идентификатор
	ID() string
	// Evaluate возвращает голос по свечам основного таймфрейма.
	// Направление neutral - "нет сетапа", это не ошибка.
	Evaluate(ctx context.Context, symbol string, klines []exchange.Kline) models.StrategySignal
}

// Registry хранит доступные стратегии по id
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[string]Evaluator)}
}

// NewDefaultRegistry создаёт реестр со встроенными стратегиями терминала
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Встроенные стратегии не конфликтуют по id
	_ = r.Register(NewTrendFollowing())
	_ = r.Register(NewBreakout())
	_ = r.Register(NewMeanReversion())
	return r
}

// Register добавляет стратегию в реестр
func (r *Registry) Register(e Evaluator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := e.ID()
	if _, exists := r.evaluators[id]; exists {
		return fmt.Errorf("strategy %s already registered", id)
	}
	r.evaluators[id] = e
	return nil
}

// Get возвращает стратегию по id
func (r *Registry) Get(id string) (Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.evaluators[id]
	if !ok {
		return nil, fmt.Errorf("strategy %s not found", id)
	}
	return e, nil
}

// List возвращает отсортированные id зарегистрированных стратегий
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.evaluators))
	for id := range r.evaluators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// neutralSignal - голос "нет сетапа"
func neutralSignal(id, symbol, detail string) models.StrategySignal {
	return models.StrategySignal{
		StrategyID:  id,
		Symbol:      symbol,
		Direction:   models.DirectionNeutral,
		Detail:      detail,
		EvaluatedAt: time.Now(),
	}
}
