package strategy

import (
	"context"
	"fmt"
	"time"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

// TrendFollowing торгует только по направлению основного тренда.
//
// Логика:
//   - EMA 20/50/200 для определения тренда
//   - RSI как фильтр перекупленности/перепроданности
//   - голос на откатах к EMA20 внутри тренда
type TrendFollowing struct {
	emaFast, emaMid, emaSlow int
	rsiPeriod                int
}

// NewTrendFollowing создаёт стратегию с классическими периодами
func NewTrendFollowing() *TrendFollowing {
	return &TrendFollowing{
		emaFast:   20,
		emaMid:    50,
		emaSlow:   200,
		rsiPeriod: 14,
	}
}

func (s *TrendFollowing) ID() string { return IDTrendFollowing }

func (s *TrendFollowing) Evaluate(ctx context.Context, symbol string, klines []exchange.Kline) models.StrategySignal {
	closes := Closes(klines)
	if len(closes) < s.emaSlow {
		return neutralSignal(s.ID(), symbol, "not enough candles")
	}

	emaFast := EMA(closes, s.emaFast)
	emaMid := EMA(closes, s.emaMid)
	emaSlow := EMA(closes, s.emaSlow)
	if len(emaFast) == 0 || len(emaMid) == 0 || len(emaSlow) == 0 {
		return neutralSignal(s.ID(), symbol, "not enough candles")
	}

	fast := emaFast[len(emaFast)-1]
	mid := emaMid[len(emaMid)-1]
	slow := emaSlow[len(emaSlow)-1]
	price := closes[len(closes)-1]
	rsi := RSI(closes, s.rsiPeriod)

	uptrend := fast > mid && mid > slow
	downtrend := fast < mid && mid < slow

	// Лонг: восходящий тренд, откат к EMA20, RSI не перекуплен
	if uptrend && price <= fast*1.01 && price > mid && rsi < 70 {
		return models.StrategySignal{
			StrategyID:  s.ID(),
			Symbol:      symbol,
			Direction:   models.DirectionBull,
			Confidence:  clamp01(0.7 + (70-rsi)/200),
			Detail:      fmt.Sprintf("pullback to EMA%d in uptrend, RSI %.0f", s.emaFast, rsi),
			EvaluatedAt: time.Now(),
		}
	}

	// Шорт: нисходящий тренд, откат к EMA20, RSI не перепродан
	if downtrend && price >= fast*0.99 && price < mid && rsi > 30 {
		return models.StrategySignal{
			StrategyID:  s.ID(),
			Symbol:      symbol,
			Direction:   models.DirectionBear,
			Confidence:  clamp01(0.7 + (rsi-30)/200),
			Detail:      fmt.Sprintf("pullback to EMA%d in downtrend, RSI %.0f", s.emaFast, rsi),
			EvaluatedAt: time.Now(),
		}
	}

	return neutralSignal(s.ID(), symbol, "no trend setup")
}

// TrendDirection - тренд для подтверждения старшим таймфреймом:
// bull если EMA20 > EMA50, bear если ниже, neutral при нехватке данных
func TrendDirection(klines []exchange.Kline) string {
	closes := Closes(klines)
	emaFast := EMA(closes, 20)
	emaMid := EMA(closes, 50)
	if len(emaFast) == 0 || len(emaMid) == 0 {
		return models.DirectionNeutral
	}
	switch {
	case emaFast[len(emaFast)-1] > emaMid[len(emaMid)-1]:
		return models.DirectionBull
	case emaFast[len(emaFast)-1] < emaMid[len(emaMid)-1]:
		return models.DirectionBear
	default:
		return models.DirectionNeutral
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
