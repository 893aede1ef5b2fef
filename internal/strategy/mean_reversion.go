package strategy

import (
	"context"
	"fmt"
	"time"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

// MeanReversion торгует отклонения от средней цены.
//
// Логика:
//   - полосы Боллинджера 20/2.0
//   - RSI как подтверждение перекупленности/перепроданности
//   - голос при касании границы полосы
type MeanReversion struct {
	bbPeriod  int
	bbStdMult float64
	rsiPeriod int
}

// NewMeanReversion создаёт стратегию возврата к среднему
func NewMeanReversion() *MeanReversion {
	return &MeanReversion{
		bbPeriod:  20,
		bbStdMult: 2.0,
		rsiPeriod: 14,
	}
}

func (s *MeanReversion) ID() string { return IDMeanReversion }

func (s *MeanReversion) Evaluate(ctx context.Context, symbol string, klines []exchange.Kline) models.StrategySignal {
	closes := Closes(klines)

	lower, _, upper, ok := Bollinger(closes, s.bbPeriod, s.bbStdMult)
	if !ok {
		return neutralSignal(s.ID(), symbol, "not enough candles")
	}

	price := closes[len(closes)-1]
	rsi := RSI(closes, s.rsiPeriod)

	// Лонг: касание нижней полосы при перепроданном RSI
	if price <= lower*1.005 && rsi < 35 {
		return models.StrategySignal{
			StrategyID:  s.ID(),
			Symbol:      symbol,
			Direction:   models.DirectionBull,
			Confidence:  clamp01(0.5 + (35-rsi)/50),
			Detail:      fmt.Sprintf("lower band touch, RSI %.0f oversold", rsi),
			EvaluatedAt: time.Now(),
		}
	}

	// Шорт: касание верхней полосы при перекупленном RSI
	if price >= upper*0.995 && rsi > 65 {
		return models.StrategySignal{
			StrategyID:  s.ID(),
			Symbol:      symbol,
			Direction:   models.DirectionBear,
			Confidence:  clamp01(0.5 + (rsi-65)/50),
			Detail:      fmt.Sprintf("upper band touch, RSI %.0f overbought", rsi),
			EvaluatedAt: time.Now(),
		}
	}

	return neutralSignal(s.ID(), symbol, "inside bands")
}
