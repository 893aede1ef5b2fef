package engine

import (
	"context"
	"sync"

	"tradeterm/internal/exchange"
)

// fakeExchange - управляемая реализация Exchange для тестов машины защиты
// и цикла сверки. Записывает все вызовы и отдаёт запрограммированные ошибки.
type fakeExchange struct {
	mu sync.Mutex

	// программируемое поведение
	placeOrderErrs  []error // ошибки по порядку вызовов PlaceOrder (nil = успех)
	tradingStopErrs []error // ошибки по порядку вызовов SetTradingStop
	closeErr        error
	positions       []*exchange.Position
	positionsErr    error
	instrument      *exchange.InstrumentInfo
	ticker          *exchange.Ticker
	klines          map[string][]exchange.Kline // ключ: symbol+interval

	// записанные вызовы
	placeOrderCalls []exchange.OrderRequest
	// был ли у контекста каждого PlaceOrder дедлайн
	placeOrderDeadlines []bool
	tradingStopCalls []struct {
		Symbol   string
		SL, TP   float64
		PosSide  string
	}
	closeCalls    []struct{ Symbol, Side string }
	leverageCalls []struct {
		Symbol   string
		Leverage int
	}
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		instrument: &exchange.InstrumentInfo{
			Symbol:      "BTCUSDT",
			TickSize:    0.5,
			QtyStep:     0.001,
			MinOrderQty: 0.001,
			MaxLeverage: 100,
		},
		ticker: &exchange.Ticker{Symbol: "BTCUSDT", LastPrice: 50000},
		klines: make(map[string][]exchange.Kline),
	}
}

func (f *fakeExchange) Connect(ctx context.Context, apiKey, secret string) error { return nil }
func (f *fakeExchange) Network() string                                          { return "demo" }
func (f *fakeExchange) GetBalance(ctx context.Context) (float64, error)          { return 10000, nil }
func (f *fakeExchange) Close() error                                             { return nil }

func (f *fakeExchange) GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	return f.ticker, nil
}

func (f *fakeExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]exchange.Kline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.klines[symbol+interval], nil
}

func (f *fakeExchange) GetInstrumentInfo(ctx context.Context, symbol string) (*exchange.InstrumentInfo, error) {
	return f.instrument, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverageCalls = append(f.leverageCalls, struct {
		Symbol   string
		Leverage int
	}{symbol, leverage})
	return nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.placeOrderCalls = append(f.placeOrderCalls, req)
	_, hasDeadline := ctx.Deadline()
	f.placeOrderDeadlines = append(f.placeOrderDeadlines, hasDeadline)
	idx := len(f.placeOrderCalls) - 1
	if idx < len(f.placeOrderErrs) && f.placeOrderErrs[idx] != nil {
		return nil, f.placeOrderErrs[idx]
	}

	return &exchange.Order{
		ID:           "order-1",
		Symbol:       req.Symbol,
		Side:         req.Side,
		Qty:          req.Qty,
		FilledQty:    req.Qty,
		AvgFillPrice: 50000,
		Status:       exchange.OrderStatusFilled,
	}, nil
}

func (f *fakeExchange) SetTradingStop(ctx context.Context, symbol, positionSide string, sl, tp float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tradingStopCalls = append(f.tradingStopCalls, struct {
		Symbol  string
		SL, TP  float64
		PosSide string
	}{symbol, sl, tp, positionSide})
	idx := len(f.tradingStopCalls) - 1
	if idx < len(f.tradingStopErrs) {
		return f.tradingStopErrs[idx]
	}
	return nil
}

func (f *fakeExchange) ClosePosition(ctx context.Context, symbol, side string, qty float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls = append(f.closeCalls, struct{ Symbol, Side string }{symbol, side})
	return f.closeErr
}

func (f *fakeExchange) GetOpenPositions(ctx context.Context) ([]*exchange.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	return f.positions, nil
}

func (f *fakeExchange) SubscribeTicker(symbol string, callback func(*exchange.Ticker)) error {
	return nil
}

func (f *fakeExchange) SubscribePositions(callback func(*exchange.Position)) error {
	return nil
}

// protectionRejection возвращает ошибку, которую движок обязан распознать
// как отказ именно защитных параметров
func protectionRejection() error {
	return &exchange.ExchangeError{Exchange: "bybit", Code: 110092, Message: "sl price invalid"}
}

// genericRejection - отказ ордера целиком
func genericRejection() error {
	return &exchange.ExchangeError{Exchange: "bybit", Code: 110007, Message: "insufficient balance"}
}

// nakedPosition - позиция без защитных уровней на бирже
func nakedPosition(symbol, side string, size, entry float64) *exchange.Position {
	return &exchange.Position{
		Symbol:     symbol,
		Side:       side,
		Size:       size,
		EntryPrice: entry,
	}
}
