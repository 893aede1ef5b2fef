package strategy

import (
	"math"

	"tradeterm/internal/exchange"
)

// ============================================================
// Индикаторы
// ============================================================
//
// Простая арифметика по свечам, без внешних зависимостей.
// Стратегии используют индикаторы как чёрный ящик: наружу уходит
// только направленный голос.

// EMA возвращает ряд экспоненциальной скользящей средней.
// Первое значение - SMA за period, дальше стандартная рекуррента.
// Пустой срез если свечей меньше периода.
func EMA(closes []float64, period int) []float64 {
	if len(closes) < period || period <= 0 {
		return nil
	}

	multiplier := 2.0 / float64(period+1)

	var sma float64
	for _, c := range closes[:period] {
		sma += c
	}
	sma /= float64(period)

	ema := make([]float64, 0, len(closes)-period+1)
	ema = append(ema, sma)
	for _, price := range closes[period:] {
		prev := ema[len(ema)-1]
		ema = append(ema, (price-prev)*multiplier+prev)
	}
	return ema
}

// RSI возвращает индекс относительной силы за period.
// Нейтральные 50 если данных недостаточно, 100 при нулевых потерях.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ATR возвращает средний истинный диапазон за period, 0 если данных мало
func ATR(klines []exchange.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 0
	}

	var sum float64
	for i := len(klines) - period; i < len(klines); i++ {
		high := klines[i].High
		low := klines[i].Low
		prevClose := klines[i-1].Close

		tr := high - low
		if d := math.Abs(high - prevClose); d > tr {
			tr = d
		}
		if d := math.Abs(low - prevClose); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(period)
}

// Bollinger возвращает нижнюю границу, среднюю и верхнюю границу полос
// Боллинджера. ok=false если свечей меньше периода.
func Bollinger(closes []float64, period int, stdMult float64) (lower, middle, upper float64, ok bool) {
	if len(closes) < period || period <= 0 {
		return 0, 0, 0, false
	}

	window := closes[len(closes)-period:]
	var sma float64
	for _, c := range window {
		sma += c
	}
	sma /= float64(period)

	var variance float64
	for _, c := range window {
		variance += (c - sma) * (c - sma)
	}
	variance /= float64(period)
	std := math.Sqrt(variance)

	return sma - std*stdMult, sma, sma + std*stdMult, true
}

// Closes извлекает цены закрытия из свечей
func Closes(klines []exchange.Kline) []float64 {
	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	return closes
}
