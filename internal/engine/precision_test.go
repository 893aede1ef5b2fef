package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"tradeterm/internal/models"
)

func specWithTick(symbol string, tick float64) *MarketSpec {
	return &MarketSpec{
		Symbol:   symbol,
		TickSize: decimal.NewFromFloat(tick),
		QtyStep:  0.001,
		MinQty:   0.001,
	}
}

func TestProtectionForLong(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	spec := specWithTick("BTCUSDT", 0.5)

	p, err := calc.ProtectionFor(spec, models.SideLong, 100, 2)
	if err != nil {
		t.Fatalf("ProtectionFor: %v", err)
	}

	if p.StopLoss != 98 {
		t.Errorf("StopLoss = %v, want 98", p.StopLoss)
	}
	if p.TakeProfit != 104 {
		t.Errorf("TakeProfit = %v, want 104", p.TakeProfit)
	}
}

func TestProtectionForShortMirrorsLong(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	spec := specWithTick("BTCUSDT", 0.5)

	p, err := calc.ProtectionFor(spec, models.SideShort, 100, 2)
	if err != nil {
		t.Fatalf("ProtectionFor: %v", err)
	}

	if p.StopLoss != 102 {
		t.Errorf("StopLoss = %v, want 102", p.StopLoss)
	}
	if p.TakeProfit != 96 {
		t.Errorf("TakeProfit = %v, want 96", p.TakeProfit)
	}
}

// Дистанция TP всегда ровно вдвое больше дистанции SL, для обеих сторон
func TestProtectionRiskRewardInvariant(t *testing.T) {
	calc := NewPrecisionCalculator(nil)

	tests := []struct {
		name string
		side string
		tick float64
		entry,
		dist float64
	}{
		{"long whole ticks", models.SideLong, 0.01, 27123.45, 50.00},
		{"short whole ticks", models.SideShort, 0.01, 27123.45, 50.00},
		{"long small tick", models.SideLong, 0.0001, 1.2345, 0.0100},
		{"short small tick", models.SideShort, 0.0001, 1.2345, 0.0100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := specWithTick("X", tt.tick)
			p, err := calc.ProtectionFor(spec, tt.side, tt.entry, tt.dist)
			if err != nil {
				t.Fatalf("ProtectionFor: %v", err)
			}

			slDist := math.Abs(tt.entry - p.StopLoss)
			tpDist := math.Abs(p.TakeProfit - tt.entry)
			if math.Abs(tpDist-2*slDist) > tt.tick {
				t.Errorf("tp distance %v != 2 x sl distance %v", tpDist, slDist)
			}
		})
	}
}

// Низкая цена, микроскопический тик: уровни кратны тику и не пересекают entry
func TestProtectionForLowPricedAsset(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	tick := 0.00000001
	spec := specWithTick("SHIBUSDT", tick)

	entry := 0.00012345
	p, err := calc.ProtectionFor(spec, models.SideShort, entry, 0.00001)
	if err != nil {
		t.Fatalf("ProtectionFor: %v", err)
	}

	if p.StopLoss <= entry {
		t.Errorf("short StopLoss %v must be above entry %v", p.StopLoss, entry)
	}
	if p.TakeProfit >= entry {
		t.Errorf("short TakeProfit %v must be below entry %v", p.TakeProfit, entry)
	}

	for _, price := range []float64{p.StopLoss, p.TakeProfit} {
		steps := price / tick
		if math.Abs(steps-math.Round(steps)) > 1e-6 {
			t.Errorf("price %v is not a multiple of tick %v", price, tick)
		}
	}
}

func TestProtectionPriceScaleFallback(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	// tick size отсутствует, есть только price scale
	spec := &MarketSpec{Symbol: "X", PriceScale: 2}

	p, err := calc.ProtectionFor(spec, models.SideLong, 100, 2)
	if err != nil {
		t.Fatalf("ProtectionFor with price scale fallback: %v", err)
	}
	if p.StopLoss != 98 || p.TakeProfit != 104 {
		t.Errorf("got SL %v TP %v, want 98 / 104", p.StopLoss, p.TakeProfit)
	}
}

func TestProtectionPrecisionUnavailable(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	// ни tick size, ни price scale
	spec := &MarketSpec{Symbol: "X"}

	_, err := calc.ProtectionFor(spec, models.SideLong, 100, 2)
	if !errors.Is(err, ErrPrecisionUnavailable) {
		t.Errorf("error = %v, want ErrPrecisionUnavailable", err)
	}
}

func TestProtectionRejectsInvalidInputs(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	spec := specWithTick("X", 0.01)

	if _, err := calc.ProtectionFor(spec, models.SideLong, 0, 2); err == nil {
		t.Error("expected error for zero entry")
	}
	if _, err := calc.ProtectionFor(spec, models.SideLong, 100, 0); err == nil {
		t.Error("expected error for zero risk distance")
	}
}

func TestCalculateSize(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	spec := &MarketSpec{Symbol: "BTCUSDT", QtyStep: 0.001, MinQty: 0.001}

	// 1000 USDT, 2% риска, плечо 10, цена 50000: 1000*0.02*10/50000 = 0.004
	size, err := calc.CalculateSize(spec, 1000, 2.0, 10, 50000)
	if err != nil {
		t.Fatalf("CalculateSize: %v", err)
	}
	if math.Abs(size-0.004) > 1e-9 {
		t.Errorf("size = %v, want 0.004", size)
	}
}

func TestCalculateSizeBelowMinimum(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	spec := &MarketSpec{Symbol: "BTCUSDT", QtyStep: 0.001, MinQty: 0.01}

	if _, err := calc.CalculateSize(spec, 10, 2.0, 1, 50000); err == nil {
		t.Error("expected error for size below minimum")
	}
}

func TestAlignPrice(t *testing.T) {
	calc := NewPrecisionCalculator(nil)
	spec := specWithTick("X", 0.5)

	got, err := calc.AlignPrice(spec, 100.3)
	if err != nil {
		t.Fatalf("AlignPrice: %v", err)
	}
	if got != 100.5 {
		t.Errorf("AlignPrice(100.3) = %v, want 100.5", got)
	}
}
