package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradeterm/internal/exchange"
	"tradeterm/internal/models"
	"tradeterm/pkg/retry"
	"tradeterm/pkg/utils"
)

// ============================================================
// Protection State Machine
// ============================================================
//
// Гарантия машины: после возврата позиция либо защищена, либо закрыта.
// Открытая и голая позиция на выходе - единственный фатальный исход,
// и он никогда не проходит тихо.
//
// Последовательность одинакова для long и short и для любого источника
// intent'а (ручной ввод, одна стратегия, конфлюэнс):
//  1. Ордер со встроенными SL/TP. Успех → NATIVE.
//  2. Если биржа отклонила именно параметры защиты: ордер без SL/TP,
//     затем trading-stop на открытую позицию. Успех → TRADING_STOP.
//  3. Trading-stop не удался (ограниченное число попыток): аварийное
//     reduce-only закрытие. Успех → FAILED, позиции больше нет.
//     Провал закрытия → фатальный алерт, позиция открыта и голая.

// NotifyFunc получает уведомления движка (алерты, события защиты)
type NotifyFunc func(models.Notification)

// ProtectResult - терминальный результат защитной последовательности
type ProtectResult struct {
	State      string
	Order      *exchange.Order
	Protection *models.ProtectionSpec
}

// Protector управляет защитными последовательностями.
// Последовательности сериализуются по символу: не более одной на символ.
type Protector struct {
	ex     exchange.Exchange
	calc   *PrecisionCalculator
	locks  *symbolLocks
	log    *zap.Logger
	notify NotifyFunc

	// Количество попыток trading-stop до аварийного закрытия.
	// Ограничено: пока идут попытки, позиция стоит голой.
	tradingStopRetries int

	// Риск-дистанция для позиций, найденных сверкой без intent'а:
	// процент от цены входа
	defaultRiskPct float64

	// Потолок на один вызов PlaceOrder. 0 - без ограничения.
	orderTimeout time.Duration

	// Получатель записей журнала о закрытиях, порождённых машиной
	// (аварийное закрытие). Опционален.
	journal func(models.TradeRecord)
}

// NewProtector создаёт защитную машину
func NewProtector(ex exchange.Exchange, calc *PrecisionCalculator, log *zap.Logger, notify NotifyFunc, tradingStopRetries int, defaultRiskPct float64) *Protector {
	if tradingStopRetries < 1 {
		tradingStopRetries = 2
	}
	if defaultRiskPct <= 0 {
		defaultRiskPct = 2.0
	}
	if notify == nil {
		notify = func(models.Notification) {}
	}
	return &Protector{
		ex:                 ex,
		calc:               calc,
		locks:              newSymbolLocks(),
		log:                log,
		notify:             notify,
		tradingStopRetries: tradingStopRetries,
		defaultRiskPct:     defaultRiskPct,
	}
}

// SetJournal задаёт получателя записей журнала.
// Вызывать до первого OpenProtected.
func (p *Protector) SetJournal(fn func(models.TradeRecord)) {
	p.journal = fn
}

// SetOrderTimeout ограничивает время одного вызова PlaceOrder.
// Вызывать до первого OpenProtected.
func (p *Protector) SetOrderTimeout(d time.Duration) {
	p.orderTimeout = d
}

// transition переводит машину в новое состояние с проверкой таблицы переходов
func (p *Protector) transition(symbol string, state *string, to string) error {
	if !CanTransition(*state, to) {
		return fmt.Errorf("invalid protection transition %s → %s for %s", *state, to, symbol)
	}
	p.log.Debug("protection transition",
		zap.String("symbol", symbol),
		zap.String("from", *state),
		zap.String("to", to))
	*state = to
	return nil
}

// OpenProtected исполняет intent: размещает ордер и гарантирует защиту.
// Шаг 1 последовательности; при отказе именно защитных параметров
// переигрывает через trading-stop, дальше по лестнице вниз.
func (p *Protector) OpenProtected(ctx context.Context, intent *models.OrderIntent) (*ProtectResult, error) {
	lock := p.locks.get(intent.Symbol)
	lock.Lock()
	defer lock.Unlock()

	// Начатая последовательность не отменяется извне: отмена контекста
	// вызывающего не должна оставить позицию голой, не сделав ни одной
	// попытки защиты или закрытия
	ctx = context.WithoutCancel(ctx)

	state := models.ProtectionUnprotected

	spec, err := p.calc.GetSpec(ctx, intent.Symbol)
	if err != nil {
		return nil, err
	}

	entry := intent.EntryPrice
	if entry <= 0 {
		// Маркет ордер: берём последнюю цену для расчёта SL/TP
		ticker, err := p.ex.GetTicker(ctx, intent.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: ticker for %s: %v", ErrNetworkUnavailable, intent.Symbol, err)
		}
		entry = ticker.LastPrice
	}

	riskDistance := intent.RiskDistance
	if riskDistance <= 0 {
		pct := intent.RiskPct
		if pct <= 0 {
			pct = p.defaultRiskPct
		}
		riskDistance = entry * pct / 100
	}

	prot, err := p.calc.ProtectionFor(spec, intent.Side, entry, riskDistance)
	if err != nil {
		return nil, err
	}

	size := intent.Size
	if size <= 0 {
		balance, err := p.ex.GetBalance(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: balance: %v", ErrNetworkUnavailable, err)
		}
		pct := intent.RiskPct
		if pct <= 0 {
			pct = p.defaultRiskPct
		}
		size, err = p.calc.CalculateSize(spec, balance, pct, intent.Leverage, entry)
		if err != nil {
			return nil, err
		}
	}

	if err := p.ex.SetLeverage(ctx, intent.Symbol, intent.Leverage); err != nil {
		return nil, fmt.Errorf("%w: set leverage: %v", ErrOrderRejected, err)
	}

	started := time.Now()

	// Шаг 1: ордер со встроенными SL/TP
	order, err := p.placeOrder(ctx, exchange.OrderRequest{
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Qty:        size,
		StopLoss:   prot.StopLoss,
		TakeProfit: prot.TakeProfit,
	})
	OrderExecutionLatency.WithLabelValues(intent.Symbol).Observe(float64(time.Since(started).Milliseconds()))

	if err == nil {
		if terr := p.transition(intent.Symbol, &state, models.ProtectionNative); terr != nil {
			return nil, terr
		}
		ProtectionOutcomes.WithLabelValues(intent.Symbol, "native").Inc()
		p.log.Info("position opened with native protection",
			zap.String("symbol", intent.Symbol),
			zap.String("side", intent.Side),
			zap.Float64("size", size),
			zap.Float64("sl", prot.StopLoss),
			zap.Float64("tp", prot.TakeProfit))
		return &ProtectResult{State: state, Order: order, Protection: prot}, nil
	}

	if !exchange.IsProtectionRejection(err) {
		// Общий отказ: позиции нет, intent отброшен
		ProtectionOutcomes.WithLabelValues(intent.Symbol, "order_rejected").Inc()
		p.notify(models.Notification{
			Type:      models.NotificationTypeOrderRejected,
			Severity:  models.SeverityError,
			Symbol:    intent.Symbol,
			Message:   fmt.Sprintf("order rejected: %v", err),
			Timestamp: time.Now(),
		})
		return nil, fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}

	p.log.Warn("embedded protection rejected, replaying without SL/TP",
		zap.String("symbol", intent.Symbol),
		zap.Error(err))

	// Шаг 1 fallback: ордер без защиты, затем trading-stop
	order, err = p.placeOrder(ctx, exchange.OrderRequest{
		Symbol: intent.Symbol,
		Side:   intent.Side,
		Qty:    size,
	})
	if err != nil {
		ProtectionOutcomes.WithLabelValues(intent.Symbol, "order_rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}

	// Позиция открыта и голая: с этого момента возврат без защиты
	// или закрытия невозможен
	result, err := p.attachOrClose(ctx, intent.Symbol, intent.Side, size, entry, intent.Leverage, prot, &state)
	if result != nil {
		result.Order = order
	}
	return result, err
}

// placeOrder размещает ордер с учётом потолка времени
func (p *Protector) placeOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	if p.orderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.orderTimeout)
		defer cancel()
	}
	return p.ex.PlaceOrder(ctx, req)
}

// ProtectExisting навешивает защиту на уже открытую позицию (шаг 2 лестницы).
// Вызывается циклом сверки для голых позиций; новый ордер не размещается.
// Риск-дистанция выводится из цены входа и дефолтного риска.
func (p *Protector) ProtectExisting(ctx context.Context, pos *exchange.Position) (*ProtectResult, error) {
	lock := p.locks.get(pos.Symbol)
	lock.Lock()
	defer lock.Unlock()

	// Та же гарантия, что и у OpenProtected: отмена контекста сверки
	// (например при остановке приложения) не прерывает ремонт голой
	// позиции
	ctx = context.WithoutCancel(ctx)

	state := models.ProtectionUnprotected

	spec, err := p.calc.GetSpec(ctx, pos.Symbol)
	if err != nil {
		return nil, err
	}

	riskDistance := pos.EntryPrice * p.defaultRiskPct / 100
	prot, err := p.calc.ProtectionFor(spec, pos.Side, pos.EntryPrice, riskDistance)
	if err != nil {
		return nil, err
	}

	return p.attachOrClose(ctx, pos.Symbol, pos.Side, pos.Size, pos.EntryPrice, pos.Leverage, prot, &state)
}

// attachOrClose - шаги 2 и 3: trading-stop с ограниченным числом попыток,
// при провале аварийное закрытие. Никогда не возвращается с открытой
// позицией без защиты молча.
func (p *Protector) attachOrClose(ctx context.Context, symbol, side string, size, entry float64, leverage int, prot *models.ProtectionSpec, state *string) (*ProtectResult, error) {
	// Шаг 2: trading-stop
	cfg := retry.TradingStopConfig()
	cfg.MaxRetries = p.tradingStopRetries
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		p.log.Warn("trading-stop attempt failed",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	attachErr := retry.Do(ctx, func() error {
		return p.ex.SetTradingStop(ctx, symbol, side, prot.StopLoss, prot.TakeProfit)
	}, cfg)

	if attachErr == nil {
		if terr := p.transition(symbol, state, models.ProtectionTradingStop); terr != nil {
			return nil, terr
		}
		ProtectionOutcomes.WithLabelValues(symbol, "trading_stop").Inc()
		p.log.Info("protection attached via trading-stop",
			zap.String("symbol", symbol),
			zap.Float64("sl", prot.StopLoss),
			zap.Float64("tp", prot.TakeProfit))
		return &ProtectResult{State: *state, Protection: prot}, nil
	}

	p.log.Error("trading-stop exhausted, escalating to emergency close",
		zap.String("symbol", symbol),
		zap.Error(attachErr))

	// Шаг 3: аварийное закрытие
	closeErr := retry.Do(ctx, func() error {
		return p.ex.ClosePosition(ctx, symbol, side, size)
	}, retry.EmergencyCloseConfig())

	if closeErr != nil {
		// Единственный путь, который нельзя сделать тихо безопасным:
		// позиция открыта и голая
		EmergencyCloses.WithLabelValues(symbol, "failed").Inc()
		p.notify(models.Notification{
			Type:      models.NotificationTypeEmergencyFail,
			Severity:  models.SeverityFatal,
			Symbol:    symbol,
			Message:   fmt.Sprintf("EMERGENCY CLOSE FAILED, position is open and unprotected: %v", closeErr),
			Timestamp: time.Now(),
		})
		p.log.Error("emergency close failed, position remains naked",
			zap.String("symbol", symbol),
			zap.Error(closeErr))
		return nil, fmt.Errorf("%w: %s: %v", ErrEmergencyCloseFailed, symbol, closeErr)
	}

	if terr := p.transition(symbol, state, models.ProtectionFailed); terr != nil {
		return nil, terr
	}
	EmergencyCloses.WithLabelValues(symbol, "closed").Inc()
	if p.journal != nil {
		// Цена выхода - последняя цена; при недоступном тикере
		// пишем цену входа, запись важнее точности
		exit := entry
		if ticker, terr := p.ex.GetTicker(ctx, symbol); terr == nil {
			exit = ticker.LastPrice
		}
		p.journal(models.TradeRecord{
			Symbol:      symbol,
			Side:        side,
			EntryPrice:  entry,
			ExitPrice:   exit,
			Size:        size,
			Leverage:    leverage,
			Pnl:         utils.CalculatePNL(side, entry, exit, size),
			CloseReason: models.CloseReasonEmergency,
			ClosedAt:    time.Now(),
		})
	}
	ProtectionOutcomes.WithLabelValues(symbol, "failed").Inc()
	p.notify(models.Notification{
		Type:      models.NotificationTypeProtectionFail,
		Severity:  models.SeverityError,
		Symbol:    symbol,
		Message:   fmt.Sprintf("protection attach failed, position closed by emergency market order: %v", attachErr),
		Timestamp: time.Now(),
	})
	p.log.Warn("position emergency closed after protection failure",
		zap.String("symbol", symbol),
		zap.Float64("size", size))

	return &ProtectResult{State: *state, Protection: prot}, &ProtectionError{
		Symbol: symbol,
		State:  *state,
		Err:    ErrProtectionAttachFailed,
	}
}
