package strategy

import (
	"context"
	"fmt"
	"time"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

// Breakout ловит пробои уровней поддержки и сопротивления.
//
// Уровни - максимум и минимум за lookback свечей без текущей;
// пробой засчитывается только если он глубже половины ATR,
// чтобы отсечь шум.
type Breakout struct {
	lookback  int
	atrPeriod int
}

// NewBreakout создаёт стратегию пробоя уровней
func NewBreakout() *Breakout {
	return &Breakout{
		lookback:  20,
		atrPeriod: 14,
	}
}

func (s *Breakout) ID() string { return IDBreakout }

func (s *Breakout) Evaluate(ctx context.Context, symbol string, klines []exchange.Kline) models.StrategySignal {
	if len(klines) < s.lookback+2 {
		return neutralSignal(s.ID(), symbol, "not enough candles")
	}

	closes := Closes(klines)
	price := closes[len(closes)-1]
	prevClose := closes[len(closes)-2]

	// Уровни за lookback свечей без текущей
	window := klines[len(klines)-1-s.lookback : len(klines)-1]
	support, resistance := window[0].Low, window[0].High
	for _, k := range window {
		if k.High > resistance {
			resistance = k.High
		}
		if k.Low < support {
			support = k.Low
		}
	}

	atr := ATR(klines, s.atrPeriod)
	if atr <= 0 {
		return neutralSignal(s.ID(), symbol, "flat range")
	}
	minBreakout := atr * 0.5

	// Пробой сопротивления вверх
	if prevClose <= resistance && price > resistance+minBreakout {
		return models.StrategySignal{
			StrategyID:  s.ID(),
			Symbol:      symbol,
			Direction:   models.DirectionBull,
			Confidence:  clamp01(0.6 + (price-resistance)/atr*0.3),
			Detail:      fmt.Sprintf("resistance %.8g broken", resistance),
			EvaluatedAt: time.Now(),
		}
	}

	// Пробой поддержки вниз
	if prevClose >= support && price < support-minBreakout {
		return models.StrategySignal{
			StrategyID:  s.ID(),
			Symbol:      symbol,
			Direction:   models.DirectionBear,
			Confidence:  clamp01(0.6 + (support-price)/atr*0.3),
			Detail:      fmt.Sprintf("support %.8g broken", support),
			EvaluatedAt: time.Now(),
		}
	}

	return neutralSignal(s.ID(), symbol, "inside range")
}
