package engine

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
	"tradeterm/pkg/utils"
)

// ============================================================
// Precision & Risk Calculator
// ============================================================
//
// Переводит сырые цены и объёмы в значения, которые примет биржа:
// выравнивание к tick size (никогда к фиксированному числу знаков,
// это ломается на дешёвых активах), объём к qty step, SL/TP из
// entry + риск-дистанции с фиксированным RR 1:2.

// MarketSpec - точностные метаданные символа
type MarketSpec struct {
	Symbol     string
	TickSize   decimal.Decimal
	QtyStep    float64
	MinQty     float64
	PriceScale int
}

// hasTick возвращает true если tick size известен
func (s *MarketSpec) hasTick() bool {
	return !s.TickSize.IsZero()
}

// tick возвращает рабочий шаг цены: tick size, либо fallback из price scale
func (s *MarketSpec) tick() (decimal.Decimal, error) {
	if s.hasTick() {
		return s.TickSize, nil
	}
	if s.PriceScale > 0 {
		// 10^-scale как шаг цены
		return decimal.New(1, int32(-s.PriceScale)), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrPrecisionUnavailable, s.Symbol)
}

// riskRewardRatio - фиксированное соотношение риск/прибыль.
// Дистанция TP всегда ровно вдвое больше дистанции SL.
const riskRewardRatio = 2

// PrecisionCalculator вычисляет выровненные цены и объёмы.
// Кэширует market spec на сессию; spec обновляется из instruments-info.
type PrecisionCalculator struct {
	ex exchange.Exchange

	mu    sync.RWMutex
	specs map[string]*MarketSpec
}

// NewPrecisionCalculator создаёт калькулятор поверх биржевого клиента
func NewPrecisionCalculator(ex exchange.Exchange) *PrecisionCalculator {
	return &PrecisionCalculator{
		ex:    ex,
		specs: make(map[string]*MarketSpec),
	}
}

// GetSpec возвращает market spec символа, загружая его при первом обращении
func (c *PrecisionCalculator) GetSpec(ctx context.Context, symbol string) (*MarketSpec, error) {
	c.mu.RLock()
	spec, ok := c.specs[symbol]
	c.mu.RUnlock()
	if ok {
		return spec, nil
	}

	info, err := c.ex.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("instrument info for %s: %w", symbol, err)
	}

	spec = &MarketSpec{
		Symbol:     symbol,
		TickSize:   decimal.NewFromFloat(info.TickSize),
		QtyStep:    info.QtyStep,
		MinQty:     info.MinOrderQty,
		PriceScale: info.PriceScale,
	}

	c.mu.Lock()
	c.specs[symbol] = spec
	c.mu.Unlock()

	return spec, nil
}

// SetSpec кладёт spec в кэш напрямую. Для тестов и предзагрузки.
func (c *PrecisionCalculator) SetSpec(spec *MarketSpec) {
	c.mu.Lock()
	c.specs[spec.Symbol] = spec
	c.mu.Unlock()
}

// ProtectionFor вычисляет выровненную пару SL/TP для intent'а.
//
// Одна формула на обе стороны, side задаёт только знак:
//
//	SL = entry - sign × dist
//	TP = entry + sign × 2 × dist
//
// Округление выбирается так, чтобы уровень никогда не пересёк entry:
// уровни ниже entry округляются вниз, выше - вверх.
func (c *PrecisionCalculator) ProtectionFor(spec *MarketSpec, side string, entry, riskDistance float64) (*models.ProtectionSpec, error) {
	if entry <= 0 {
		return nil, fmt.Errorf("entry price must be positive, got %v", entry)
	}
	if riskDistance <= 0 {
		return nil, fmt.Errorf("risk distance must be positive, got %v", riskDistance)
	}

	tick, err := spec.tick()
	if err != nil {
		return nil, err
	}

	sign := decimal.NewFromFloat(models.SideSign(side))
	entryD := decimal.NewFromFloat(entry)
	dist := decimal.NewFromFloat(riskDistance)

	slRaw := entryD.Sub(sign.Mul(dist))
	tpRaw := entryD.Add(sign.Mul(dist.Mul(decimal.NewFromInt(riskRewardRatio))))

	sl := alignAwayFromEntry(slRaw, entryD, tick)
	tp := alignAwayFromEntry(tpRaw, entryD, tick)

	// Выравнивание не должно схлопнуть уровень в entry
	if sl.Equal(entryD) || tp.Equal(entryD) {
		return nil, fmt.Errorf("%w: risk distance %v below tick %s", ErrPrecisionUnavailable, riskDistance, tick)
	}

	slF, _ := sl.Float64()
	tpF, _ := tp.Float64()
	return &models.ProtectionSpec{StopLoss: slF, TakeProfit: tpF}, nil
}

// AlignPrice выравнивает цену входа к тику (к ближайшему кратному)
func (c *PrecisionCalculator) AlignPrice(spec *MarketSpec, price float64) (float64, error) {
	tick, err := spec.tick()
	if err != nil {
		return 0, err
	}

	p := decimal.NewFromFloat(price)
	aligned := p.Div(tick).Round(0).Mul(tick)
	f, _ := aligned.Float64()
	return f, nil
}

// alignAwayFromEntry выравнивает уровень к тику в направлении от entry:
// floor для уровней ниже entry, ceil для уровней выше
func alignAwayFromEntry(level, entry, tick decimal.Decimal) decimal.Decimal {
	steps := level.Div(tick)
	if level.LessThan(entry) {
		return steps.Floor().Mul(tick)
	}
	return steps.Ceil().Mul(tick)
}

// CalculateSize вычисляет объём позиции из баланса и риска:
//
//	size = balance × risk% × leverage / price
//
// Объём округляется вниз к qty step и проверяется против minQty.
func (c *PrecisionCalculator) CalculateSize(spec *MarketSpec, balance, riskPct float64, leverage int, price float64) (float64, error) {
	if balance <= 0 {
		return 0, fmt.Errorf("balance must be positive, got %v", balance)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price must be positive, got %v", price)
	}
	if leverage < 1 {
		return 0, fmt.Errorf("leverage must be at least 1, got %d", leverage)
	}

	raw := balance * riskPct / 100 * float64(leverage) / price
	size := utils.RoundToLotSize(raw, spec.QtyStep)

	if spec.MinQty > 0 && size < spec.MinQty {
		return 0, fmt.Errorf("calculated size %v below minimum %v for %s", size, spec.MinQty, spec.Symbol)
	}
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return 0, fmt.Errorf("invalid calculated size %v for %s", size, spec.Symbol)
	}

	return size, nil
}
