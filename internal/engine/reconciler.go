package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
)

// ============================================================
// Фоновая сверка позиций
// ============================================================
//
// Биржа - единственный источник правды об открытых позициях.
// Цикл периодически сверяет её состояние с ожиданием "каждая открытая
// позиция защищена" и чинит расхождения: позиция без SL или TP
// прогоняется через защитную машину, у защищённой прибыльной позиции
// стоп подтягивается в безубыток. Цикл идемпотентен: ошибки цикла
// не останавливают его.

// Подтяжка стопа: при профите от trailProfitThresholdPct (процент от
// маржи) SL переносится на вход плюс trailBreakevenOffsetPct от цены
// входа, только в сторону улучшения
const (
	trailProfitThresholdPct = 2.0
	trailBreakevenOffsetPct = 0.5
)

// Reconciler - воркер сверки открытых позиций
type Reconciler struct {
	ex       exchange.Exchange
	prot     *Protector
	log      *zap.Logger
	notify   NotifyFunc
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
}

// NewReconciler создаёт цикл сверки
func NewReconciler(ex exchange.Exchange, prot *Protector, log *zap.Logger, notify NotifyFunc, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if notify == nil {
		notify = func(models.Notification) {}
	}
	return &Reconciler{
		ex:       ex,
		prot:     prot,
		log:      log,
		notify:   notify,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает цикл сверки. Блокирует до отмены контекста или Stop
func (r *Reconciler) Start(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("position reconciler started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// Stop останавливает цикл
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// Wait блокирует до возврата Start: после него идущий проход сверки
// гарантированно завершён
func (r *Reconciler) Wait() {
	<-r.done
}

// RunOnce выполняет один проход сверки. Ошибки транзиентны:
// логируются и оставляются следующему тику.
func (r *Reconciler) RunOnce(ctx context.Context) {
	ReconcileCycles.Inc()

	positions, err := r.ex.GetOpenPositions(ctx)
	if err != nil {
		r.log.Warn("reconcile: cannot list positions, will retry next tick", zap.Error(err))
		return
	}

	OpenPositions.Set(float64(len(positions)))

	for _, pos := range positions {
		if pos.IsProtected() {
			r.trailToBreakeven(ctx, pos)
			continue
		}
		r.repairNaked(ctx, pos)
	}
}

// repairNaked чинит одну незащищённую позицию
func (r *Reconciler) repairNaked(ctx context.Context, pos *exchange.Position) {
	NakedPositionsFound.WithLabelValues(pos.Symbol).Inc()
	r.log.Warn("naked position found",
		zap.String("symbol", pos.Symbol),
		zap.String("side", pos.Side),
		zap.Float64("size", pos.Size),
		zap.Float64("sl", pos.StopLoss),
		zap.Float64("tp", pos.TakeProfit))

	r.notify(models.Notification{
		Type:      models.NotificationTypeNakedPosition,
		Severity:  models.SeverityWarn,
		Symbol:    pos.Symbol,
		Message:   fmt.Sprintf("naked position %s %s %.8g, attaching protection", pos.Symbol, pos.Side, pos.Size),
		Timestamp: time.Now(),
	})

	result, err := r.prot.ProtectExisting(ctx, pos)
	if err != nil {
		// Вся эскалация (retry, аварийное закрытие, фатальный алерт)
		// уже произошла внутри защитной машины
		r.log.Error("reconcile: protection repair failed",
			zap.String("symbol", pos.Symbol),
			zap.Error(err))
		return
	}

	r.log.Info("reconcile: position repaired",
		zap.String("symbol", pos.Symbol),
		zap.String("state", result.State))
}

// trailToBreakeven подтягивает SL прибыльной позиции в безубыток.
// Стоп двигается только в сторону улучшения и только когда текущая
// цена уже за новым уровнем, иначе перенос закрыл бы позицию сразу.
func (r *Reconciler) trailToBreakeven(ctx context.Context, pos *exchange.Position) {
	if pos.EntryPrice <= 0 || pos.Size <= 0 || pos.Leverage <= 0 {
		return
	}
	margin := pos.Size * pos.EntryPrice / float64(pos.Leverage)
	if margin <= 0 || pos.UnrealizedPnl/margin*100 < trailProfitThresholdPct {
		return
	}

	offset := pos.EntryPrice * trailBreakevenOffsetPct / 100
	var newSL float64
	switch pos.Side {
	case models.SideLong:
		newSL = pos.EntryPrice + offset
		if pos.MarkPrice <= newSL || pos.StopLoss >= newSL {
			return
		}
	case models.SideShort:
		newSL = pos.EntryPrice - offset
		if pos.MarkPrice >= newSL || (pos.StopLoss > 0 && pos.StopLoss <= newSL) {
			return
		}
	default:
		return
	}

	if spec, err := r.prot.calc.GetSpec(ctx, pos.Symbol); err == nil {
		if aligned, aerr := r.prot.calc.AlignPrice(spec, newSL); aerr == nil {
			newSL = aligned
		}
	}

	if err := r.ex.SetTradingStop(ctx, pos.Symbol, pos.Side, newSL, pos.TakeProfit); err != nil {
		r.log.Warn("reconcile: breakeven trail failed, will retry next tick",
			zap.String("symbol", pos.Symbol),
			zap.Error(err))
		return
	}

	r.log.Info("reconcile: stop trailed to breakeven",
		zap.String("symbol", pos.Symbol),
		zap.String("side", pos.Side),
		zap.Float64("old_sl", pos.StopLoss),
		zap.Float64("new_sl", newSL))
}
