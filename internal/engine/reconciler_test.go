package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
	"tradeterm/pkg/utils"
)

func newTestReconciler(ex *fakeExchange, notify NotifyFunc) *Reconciler {
	prot := newTestProtector(ex, notify)
	return NewReconciler(ex, prot, utils.NewNopLogger(), notify, 15*time.Second)
}

func TestRunOnce_RepairsNakedPosition(t *testing.T) {
	ex := newFakeExchange()
	ex.positions = []*exchange.Position{
		nakedPosition("BTCUSDT", models.SideLong, 0.01, 50000),
	}

	var notified []models.Notification
	r := newTestReconciler(ex, func(n models.Notification) { notified = append(notified, n) })

	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 1 {
		t.Fatalf("expected 1 trading-stop call for naked position, got %d", len(ex.tradingStopCalls))
	}
	if len(ex.placeOrderCalls) != 0 {
		t.Errorf("reconcile must not place new orders, got %d", len(ex.placeOrderCalls))
	}

	found := false
	for _, n := range notified {
		if n.Type == models.NotificationTypeNakedPosition {
			found = true
		}
	}
	if !found {
		t.Error("expected naked-position notification")
	}
}

func TestRunOnce_SkipsProtectedPositions(t *testing.T) {
	ex := newFakeExchange()
	pos := nakedPosition("BTCUSDT", models.SideLong, 0.01, 50000)
	pos.StopLoss = 49000
	pos.TakeProfit = 52000
	ex.positions = []*exchange.Position{pos}

	r := newTestReconciler(ex, nil)
	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 0 {
		t.Errorf("protected position must not be touched, got %d trading-stop calls", len(ex.tradingStopCalls))
	}
	if len(ex.closeCalls) != 0 {
		t.Errorf("protected position must not be closed, got %d close calls", len(ex.closeCalls))
	}
}

func TestRunOnce_PartialProtectionCountsAsNaked(t *testing.T) {
	// Только SL без TP - позиция считается незащищённой
	ex := newFakeExchange()
	pos := nakedPosition("BTCUSDT", models.SideShort, 0.01, 50000)
	pos.StopLoss = 51000
	ex.positions = []*exchange.Position{pos}

	r := newTestReconciler(ex, nil)
	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 1 {
		t.Fatalf("partially protected position must be repaired, got %d calls", len(ex.tradingStopCalls))
	}
}

func TestRunOnce_ListErrorIsTransient(t *testing.T) {
	ex := newFakeExchange()
	ex.positionsErr = errors.New("timeout")

	r := newTestReconciler(ex, nil)
	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 0 || len(ex.closeCalls) != 0 {
		t.Error("list failure must not trigger any repairs")
	}

	// Следующий тик после восстановления связи чинит позицию
	ex.mu.Lock()
	ex.positionsErr = nil
	ex.positions = []*exchange.Position{nakedPosition("ETHUSDT", models.SideLong, 0.1, 3000)}
	ex.mu.Unlock()

	r.RunOnce(context.Background())
	if len(ex.tradingStopCalls) != 1 {
		t.Fatalf("expected repair on next cycle, got %d calls", len(ex.tradingStopCalls))
	}
}

func TestRunOnce_Idempotent(t *testing.T) {
	ex := newFakeExchange()
	ex.positions = []*exchange.Position{
		nakedPosition("BTCUSDT", models.SideLong, 0.01, 50000),
	}
	r := newTestReconciler(ex, nil)

	r.RunOnce(context.Background())

	// Биржа теперь показывает защиту: повторный проход ничего не делает
	ex.mu.Lock()
	ex.positions[0].StopLoss = 49000
	ex.positions[0].TakeProfit = 52000
	ex.mu.Unlock()

	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 1 {
		t.Errorf("second cycle must be a no-op, got %d total trading-stop calls", len(ex.tradingStopCalls))
	}
}

func TestRunOnce_CancelledContextStillRepairs(t *testing.T) {
	// Отмена контекста приложения посреди прохода не оставляет
	// найденную голую позицию без ремонта
	ex := newFakeExchange()
	ex.positions = []*exchange.Position{
		nakedPosition("BTCUSDT", models.SideLong, 0.01, 50000),
	}
	r := newTestReconciler(ex, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.RunOnce(ctx)

	if len(ex.tradingStopCalls) != 1 {
		t.Fatalf("expected 1 trading-stop call despite cancelled context, got %d", len(ex.tradingStopCalls))
	}
}

func TestStartStopWaitReturns(t *testing.T) {
	ex := newFakeExchange()
	r := newTestReconciler(ex, nil)

	go r.Start(context.Background())
	r.Stop()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait must return after Stop")
	}
}

// profitablePosition - защищённая позиция с заданным профитом
func profitablePosition(side string, entry, mark, sl, tp, pnl float64) *exchange.Position {
	return &exchange.Position{
		Symbol:        "BTCUSDT",
		Side:          side,
		Size:          0.01,
		EntryPrice:    entry,
		MarkPrice:     mark,
		Leverage:      10,
		UnrealizedPnl: pnl,
		StopLoss:      sl,
		TakeProfit:    tp,
	}
}

func TestRunOnce_TrailsStopToBreakeven(t *testing.T) {
	// Маржа 0.01 × 50000 / 10 = 50, профит 2.5 = 5% от маржи:
	// порог 2% пройден, SL переносится на вход + 0.5%
	ex := newFakeExchange()
	ex.positions = []*exchange.Position{
		profitablePosition(models.SideLong, 50000, 50500, 49000, 52000, 2.5),
	}

	r := newTestReconciler(ex, nil)
	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 1 {
		t.Fatalf("expected 1 trading-stop call for trail, got %d", len(ex.tradingStopCalls))
	}
	if ex.tradingStopCalls[0].SL != 50250 {
		t.Errorf("expected SL at breakeven + 0.5%% (50250), got %v", ex.tradingStopCalls[0].SL)
	}
	if ex.tradingStopCalls[0].TP != 52000 {
		t.Errorf("trail must keep the existing TP, got %v", ex.tradingStopCalls[0].TP)
	}
	if len(ex.closeCalls) != 0 {
		t.Errorf("trail must not close the position, got %d close calls", len(ex.closeCalls))
	}
}

func TestRunOnce_TrailShortMirrors(t *testing.T) {
	ex := newFakeExchange()
	ex.positions = []*exchange.Position{
		profitablePosition(models.SideShort, 50000, 49400, 51000, 48000, 2.5),
	}

	r := newTestReconciler(ex, nil)
	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 1 {
		t.Fatalf("expected 1 trading-stop call for trail, got %d", len(ex.tradingStopCalls))
	}
	if ex.tradingStopCalls[0].SL != 49750 {
		t.Errorf("expected short SL at breakeven - 0.5%% (49750), got %v", ex.tradingStopCalls[0].SL)
	}
}

func TestRunOnce_TrailSkipsBelowThreshold(t *testing.T) {
	// Профит 0.5 = 1% от маржи: ниже порога, стоп не трогается
	ex := newFakeExchange()
	ex.positions = []*exchange.Position{
		profitablePosition(models.SideLong, 50000, 50100, 49000, 52000, 0.5),
	}

	r := newTestReconciler(ex, nil)
	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 0 {
		t.Errorf("below-threshold position must not be trailed, got %d calls", len(ex.tradingStopCalls))
	}
}

func TestRunOnce_TrailOnlyImproves(t *testing.T) {
	// SL уже на безубытке: повторные проходы его не трогают
	ex := newFakeExchange()
	ex.positions = []*exchange.Position{
		profitablePosition(models.SideLong, 50000, 50500, 50250, 52000, 2.5),
	}

	r := newTestReconciler(ex, nil)
	r.RunOnce(context.Background())
	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 0 {
		t.Errorf("already trailed position must not be touched, got %d calls", len(ex.tradingStopCalls))
	}
}

func TestRunOnce_TrailWaitsForPriceClearance(t *testing.T) {
	// Цена ещё не ушла за новый уровень: перенос SL закрыл бы позицию
	// сразу, поэтому он откладывается
	ex := newFakeExchange()
	ex.positions = []*exchange.Position{
		profitablePosition(models.SideLong, 50000, 50200, 49000, 52000, 2.5),
	}

	r := newTestReconciler(ex, nil)
	r.RunOnce(context.Background())

	if len(ex.tradingStopCalls) != 0 {
		t.Errorf("trail must wait until price clears the new SL, got %d calls", len(ex.tradingStopCalls))
	}
}
