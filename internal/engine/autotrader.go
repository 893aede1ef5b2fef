package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
	"tradeterm/internal/strategy"
	"tradeterm/pkg/utils"
)

// ============================================================
// Автотрейдер
// ============================================================
//
// Периодически оценивает включённые стратегии по выбранным символам
// и превращает actionable конфлюенс в intent: конфлюенс → политика →
// защитная машина. Stop немедленно прекращает выпуск новых intent'ов,
// но никогда не отменяет идущую защитную последовательность: открытая
// позиция дожидается терминального состояния безусловно.

var ErrAlreadyRunning = errors.New("auto trading already running")

// SettingsFunc отдаёт текущие настройки автоторговли (писатель - UI)
type SettingsFunc func() models.AutoTradeSettings

// AutoTrader - цикл автоматической торговли
type AutoTrader struct {
	ex       exchange.Exchange
	registry *strategy.Registry
	agg      *Aggregator
	policy   *PolicyStore
	prot     *Protector
	log      *zap.Logger
	notify   NotifyFunc
	settings SettingsFunc
	interval time.Duration

	// Получатель конфлюенс-результатов (трансляция состояний в UI),
	// опционален. Вызывается для каждого результата, не только actionable.
	onSignal func(*models.ConfluenceResult)

	// Получатель записей журнала о сигнальных закрытиях, опционален
	journal func(models.TradeRecord)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	// Идущие защитные последовательности: Stop их не прерывает
	inflight sync.WaitGroup
}

// NewAutoTrader создаёт автотрейдер
func NewAutoTrader(ex exchange.Exchange, registry *strategy.Registry, agg *Aggregator, policy *PolicyStore, prot *Protector, log *zap.Logger, notify NotifyFunc, settings SettingsFunc, interval time.Duration) *AutoTrader {
	if interval <= 0 {
		interval = time.Minute
	}
	if notify == nil {
		notify = func(models.Notification) {}
	}
	return &AutoTrader{
		ex:       ex,
		registry: registry,
		agg:      agg,
		policy:   policy,
		prot:     prot,
		log:      log,
		notify:   notify,
		settings: settings,
		interval: interval,
	}
}

// SetSignalSink задаёт получателя конфлюенс-результатов.
// Вызывать до Start.
func (a *AutoTrader) SetSignalSink(fn func(*models.ConfluenceResult)) {
	a.onSignal = fn
}

// SetJournal задаёт получателя записей журнала.
// Вызывать до Start.
func (a *AutoTrader) SetJournal(fn func(models.TradeRecord)) {
	a.journal = fn
}

// Start запускает цикл оценки в фоне
func (a *AutoTrader) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}
	a.running = true
	a.stopCh = make(chan struct{})

	go a.loop(ctx, a.stopCh)
	a.log.Info("auto trading started", zap.Duration("interval", a.interval))
	return nil
}

// Stop прекращает выпуск новых intent'ов. Возвращается сразу;
// идущие защитные последовательности продолжаются до терминального
// состояния.
func (a *AutoTrader) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false
	close(a.stopCh)
	a.log.Info("auto trading stopped, in-flight protection runs continue")
}

// Running сообщает, запущен ли цикл
func (a *AutoTrader) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Wait блокирует до завершения идущих защитных последовательностей
func (a *AutoTrader) Wait() {
	a.inflight.Wait()
}

func (a *AutoTrader) loop(ctx context.Context, stopCh chan struct{}) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			a.EvaluateOnce(ctx, stopCh)
		}
	}
}

// EvaluateOnce выполняет один цикл оценки всех выбранных символов
func (a *AutoTrader) EvaluateOnce(ctx context.Context, stopCh chan struct{}) {
	cfg := a.settings()
	if len(cfg.Symbols) == 0 || len(cfg.Strategies) == 0 {
		return
	}

	positions, err := a.ex.GetOpenPositions(ctx)
	if err != nil {
		a.log.Warn("auto: cannot list positions, skipping cycle", zap.Error(err))
		return
	}

	bySymbol := make(map[string]*exchange.Position, len(positions))
	for _, pos := range positions {
		bySymbol[pos.Symbol] = pos
	}

	for _, symbol := range cfg.Symbols {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		a.evaluateSymbol(ctx, stopCh, cfg, symbol, bySymbol, len(positions))
	}
}

func (a *AutoTrader) evaluateSymbol(ctx context.Context, stopCh chan struct{}, cfg models.AutoTradeSettings, symbol string, bySymbol map[string]*exchange.Position, openCount int) {
	klines, err := a.ex.GetKlines(ctx, symbol, cfg.Timeframe, 250)
	if err != nil {
		a.log.Warn("auto: klines unavailable",
			zap.String("symbol", symbol),
			zap.Error(err))
		return
	}

	signals := make([]models.StrategySignal, 0, len(cfg.Strategies))
	for _, id := range cfg.Strategies {
		eval, err := a.registry.Get(id)
		if err != nil {
			a.log.Warn("auto: unknown strategy in settings", zap.String("strategy", id))
			continue
		}
		signals = append(signals, eval.Evaluate(ctx, symbol, klines))
	}
	if len(signals) == 0 {
		return
	}

	result, err := a.agg.Aggregate(ctx, symbol, cfg.Timeframe, signals, cfg.RequireHTF)
	if err != nil {
		a.log.Warn("auto: confluence failed",
			zap.String("symbol", symbol),
			zap.Error(err))
		return
	}
	if a.onSignal != nil {
		a.onSignal(result)
	}
	if !result.Actionable {
		return
	}

	side := models.SideLong
	if result.Direction == models.DirectionBear {
		side = models.SideShort
	}

	a.notify(models.Notification{
		Type:      models.NotificationTypeSignal,
		Severity:  models.SeverityInfo,
		Symbol:    symbol,
		Message:   fmt.Sprintf("confluence %s %s (%d/%d votes)", result.Strength, result.Direction, result.Votes, result.Total),
		Timestamp: time.Now(),
	})

	if pos, open := bySymbol[symbol]; open {
		a.handleReversal(ctx, pos, side)
		return
	}

	maxPositions := cfg.MaxPositions
	if maxPositions <= 0 {
		maxPositions = 2
	}
	if openCount >= maxPositions {
		a.log.Debug("auto: position limit reached, skipping entry",
			zap.String("symbol", symbol),
			zap.Int("open", openCount),
			zap.Int("max", maxPositions))
		return
	}

	select {
	case <-stopCh:
		// Stop пришёл до выпуска intent'а: новых позиций не открываем
		return
	default:
	}

	intent := a.policy.ApplyToIntent(models.OrderIntent{
		Symbol:     symbol,
		Side:       side,
		StrategyID: "confluence",
		CreatedAt:  time.Now(),
	})

	// Защитная последовательность отвязана от контекста цикла:
	// её нельзя отменить ни Stop'ом, ни остановкой приложения
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		if _, err := a.prot.OpenProtected(context.Background(), &intent); err != nil {
			a.log.Error("auto: entry failed",
				zap.String("symbol", intent.Symbol),
				zap.String("side", intent.Side),
				zap.Error(err))
		}
	}()
}

// handleReversal закрывает позицию по развороту сигнала, только если
// это явно разрешено политикой. По умолчанию сигнальный шум не трогает
// корректно защищённые позиции.
func (a *AutoTrader) handleReversal(ctx context.Context, pos *exchange.Position, signalSide string) {
	if pos.Side == signalSide {
		return
	}
	if !a.policy.Snapshot().AllowSignalClose {
		a.log.Debug("auto: signal reversed but signal close disabled",
			zap.String("symbol", pos.Symbol),
			zap.String("position_side", pos.Side),
			zap.String("signal_side", signalSide))
		return
	}

	if err := a.ex.ClosePosition(ctx, pos.Symbol, pos.Side, pos.Size); err != nil {
		a.log.Error("auto: signal close failed",
			zap.String("symbol", pos.Symbol),
			zap.Error(err))
		return
	}

	if a.journal != nil {
		a.journal(models.TradeRecord{
			Symbol:      pos.Symbol,
			Side:        pos.Side,
			StrategyID:  "confluence",
			EntryPrice:  pos.EntryPrice,
			ExitPrice:   pos.MarkPrice,
			Size:        pos.Size,
			Leverage:    pos.Leverage,
			Pnl:         utils.CalculatePNL(pos.Side, pos.EntryPrice, pos.MarkPrice, pos.Size),
			CloseReason: models.CloseReasonSignal,
			ClosedAt:    time.Now(),
		})
	}

	a.notify(models.Notification{
		Type:      models.NotificationTypeClose,
		Severity:  models.SeverityInfo,
		Symbol:    pos.Symbol,
		Message:   fmt.Sprintf("position closed on signal reversal (%s → %s)", pos.Side, signalSide),
		Timestamp: time.Now(),
	})
	a.log.Info("auto: position closed on signal reversal",
		zap.String("symbol", pos.Symbol),
		zap.String("from", pos.Side),
		zap.String("to", signalSide))
}
