package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

// ============================================================
// Конфлюенс: агрегация голосов стратегий
// ============================================================

// htfMap - соответствие таймфрейма сигнала старшему таймфрейму подтверждения
var htfMap = map[string]string{
	"1m":  "15m",
	"5m":  "1h",
	"15m": "4h",
	"1h":  "4h",
	"4h":  "1d",
	"1d":  "1w",
}

// HigherTimeframe возвращает старший таймфрейм для подтверждения тренда
func HigherTimeframe(timeframe string) string {
	if htf, ok := htfMap[timeframe]; ok {
		return htf
	}
	return "4h"
}

// TrendFunc определяет направление тренда по свечам старшего таймфрейма
type TrendFunc func(klines []exchange.Kline) string

// htfTrendEntry - кэшированный тренд старшего ТФ
type htfTrendEntry struct {
	trend     string
	fetchedAt time.Time
}

// Aggregator собирает голоса стратегий в одно торговое решение.
// Старший таймфрейм при включённом фильтре - жёсткое вето: сильный
// конфлюенс против тренда старшего ТФ понижается до skip.
type Aggregator struct {
	ex    exchange.Exchange
	log   *zap.Logger
	trend TrendFunc

	// Кэш трендов старшего ТФ, чтобы не дёргать свечи на каждый тик
	mu       sync.Mutex
	htfCache map[string]htfTrendEntry
	htfTTL   time.Duration

	// для тестов
	now func() time.Time
}

// NewAggregator создаёт агрегатор сигналов
func NewAggregator(ex exchange.Exchange, log *zap.Logger, trend TrendFunc, htfTTL time.Duration) *Aggregator {
	if htfTTL <= 0 {
		htfTTL = 5 * time.Minute
	}
	return &Aggregator{
		ex:       ex,
		log:      log,
		trend:    trend,
		htfCache: make(map[string]htfTrendEntry),
		htfTTL:   htfTTL,
		now:      time.Now,
	}
}

// Aggregate подсчитывает голоса по символу и применяет HTF-фильтр.
// Результат - кандидат на intent, ещё не ордер: его проверяет политика
// исполнения и исполняет защитная машина.
func (a *Aggregator) Aggregate(ctx context.Context, symbol, timeframe string, signals []models.StrategySignal, requireHTF bool) (*models.ConfluenceResult, error) {
	result := &models.ConfluenceResult{
		Symbol:    symbol,
		Direction: models.DirectionNeutral,
		Strength:  models.StrengthNone,
		Total:     len(signals),
		Signals:   signals,
	}

	var bulls, bears int
	for _, s := range signals {
		switch s.Direction {
		case models.DirectionBull:
			bulls++
		case models.DirectionBear:
			bears++
		}
	}

	switch {
	case bulls > bears:
		result.Direction = models.DirectionBull
		result.Votes = bulls
	case bears > bulls:
		result.Direction = models.DirectionBear
		result.Votes = bears
	default:
		// Ничья или все neutral: большинства нет
		SignalsEvaluated.WithLabelValues(symbol, result.Strength).Inc()
		return result, nil
	}

	switch {
	case result.Votes == result.Total && result.Total >= 2:
		result.Strength = models.StrengthStrong
	case result.Votes >= 2 && result.Votes*2 > result.Total:
		result.Strength = models.StrengthGood
	case result.Votes == 1:
		result.Strength = models.StrengthWeak
	}

	actionable := result.Strength == models.StrengthStrong || result.Strength == models.StrengthGood

	if actionable && requireHTF {
		htfTrend, err := a.htfTrend(ctx, symbol, timeframe)
		if err != nil {
			return nil, err
		}
		result.HTFTrend = htfTrend
		if htfTrend != result.Direction {
			// Вето старшего таймфрейма
			actionable = false
			a.log.Debug("confluence vetoed by higher timeframe",
				zap.String("symbol", symbol),
				zap.String("direction", result.Direction),
				zap.String("htf_trend", htfTrend))
		}
	}

	result.Actionable = actionable
	SignalsEvaluated.WithLabelValues(symbol, result.Strength).Inc()

	if actionable {
		a.log.Info("actionable confluence",
			zap.String("symbol", symbol),
			zap.String("direction", result.Direction),
			zap.String("strength", result.Strength),
			zap.Int("votes", result.Votes),
			zap.Int("total", result.Total))
	}
	return result, nil
}

// htfTrend возвращает тренд старшего ТФ, кэш на htfTTL
func (a *Aggregator) htfTrend(ctx context.Context, symbol, timeframe string) (string, error) {
	htf := HigherTimeframe(timeframe)
	key := symbol + ":" + htf

	a.mu.Lock()
	if entry, ok := a.htfCache[key]; ok && a.now().Sub(entry.fetchedAt) < a.htfTTL {
		a.mu.Unlock()
		return entry.trend, nil
	}
	a.mu.Unlock()

	klines, err := a.ex.GetKlines(ctx, symbol, htf, 50)
	if err != nil {
		return "", fmt.Errorf("htf klines %s %s: %w", symbol, htf, err)
	}

	trend := models.DirectionNeutral
	if a.trend != nil {
		trend = a.trend(klines)
	}

	a.mu.Lock()
	a.htfCache[key] = htfTrendEntry{trend: trend, fetchedAt: a.now()}
	a.mu.Unlock()

	return trend, nil
}
