package exchange

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Exchange определяет интерфейс деривативной биржи, как его видит терминал.
// Единственная реальная реализация - Bybit (demo и mainnet), но движок
// работает только через интерфейс, что позволяет подменять биржу в тестах.
type Exchange interface {
	// Connect проверяет ключи и устанавливает соединение с биржей
	Connect(ctx context.Context, apiKey, secret string) error

	// Network возвращает сеть биржи: demo или mainnet
	Network() string

	// GetBalance получает доступный баланс фьючерсного аккаунта в USDT
	GetBalance(ctx context.Context) (float64, error)

	// GetTicker получает текущую цену символа
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)

	// GetKlines получает свечи для оценки стратегий
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)

	// GetInstrumentInfo получает точностные метаданные символа
	GetInstrumentInfo(ctx context.Context, symbol string) (*InstrumentInfo, error)

	// SetLeverage устанавливает плечо для символа.
	// Ответ "leverage not modified" не считается ошибкой.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// PlaceOrder размещает ордер, опционально со встроенными SL/TP
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// SetTradingStop навешивает SL/TP на уже открытую позицию
	// через отдельный endpoint, независимо от размещения ордера
	SetTradingStop(ctx context.Context, symbol, positionSide string, stopLoss, takeProfit float64) error

	// ClosePosition закрывает позицию reduce-only маркет ордером
	ClosePosition(ctx context.Context, symbol, side string, qty float64) error

	// GetOpenPositions получает список открытых позиций вместе
	// с выставленными на бирже защитными уровнями
	GetOpenPositions(ctx context.Context) ([]*Position, error)

	// SubscribeTicker подписывается на обновления цены через WebSocket
	SubscribeTicker(symbol string, callback func(*Ticker)) error

	// SubscribePositions подписывается на обновления позиций
	// через приватный WebSocket
	SubscribePositions(callback func(*Position)) error

	// Close закрывает соединения с биржей
	Close() error
}

// OrderRequest - параметры размещения ордера
type OrderRequest struct {
	Symbol     string
	Side       string // long, short (конвертируется в Buy/Sell)
	Qty        float64
	Price      float64 // 0 = market
	ReduceOnly bool
	StopLoss   float64 // 0 = без встроенного SL
	TakeProfit float64 // 0 = без встроенного TP
}

// Ticker содержит информацию о текущей цене
type Ticker struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	AskPrice  float64   `json:"ask_price"`
	LastPrice float64   `json:"last_price"`
	Timestamp time.Time `json:"timestamp"`
}

// Kline - одна свеча OHLCV
type Kline struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Order представляет размещённый ордер
type Order struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"` // long, short
	Qty          float64   `json:"qty"`
	FilledQty    float64   `json:"filled_qty"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Position представляет открытую позицию по данным биржи
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"` // long, short
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	MarkPrice     float64   `json:"mark_price"`
	Leverage      int       `json:"leverage"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	StopLoss      float64   `json:"stop_loss"`   // 0 = SL на бирже не выставлен
	TakeProfit    float64   `json:"take_profit"` // 0 = TP на бирже не выставлен
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsProtected возвращает true если биржа показывает оба защитных уровня
func (p *Position) IsProtected() bool {
	return p.StopLoss > 0 && p.TakeProfit > 0
}

// InstrumentInfo содержит точностные метаданные символа
type InstrumentInfo struct {
	Symbol      string  `json:"symbol"`
	TickSize    float64 `json:"tick_size"`   // минимальный шаг цены
	PriceScale  int     `json:"price_scale"` // знаков после запятой, fallback если tick size пуст
	QtyStep     float64 `json:"qty_step"`    // шаг изменения количества
	MinOrderQty float64 `json:"min_order_qty"`
	MaxLeverage int     `json:"max_leverage"`
}

// Стороны позиций и ордеров
const (
	SideLong  = "long"
	SideShort = "short"
)

// Статусы ордеров
const (
	OrderStatusFilled    = "filled"
	OrderStatusPartial   = "partial"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

// Интервалы свечей в нотации Bybit v5
var bybitIntervals = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"1h":  "60",
	"4h":  "240",
	"1d":  "D",
	"1w":  "W",
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     int
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Коды ошибок Bybit v5, на которые завязана логика движка
const (
	codeLeverageNotModified = 110043 // плечо уже установлено

	// Коды отклонения именно встроенных параметров защиты.
	// Такой отказ означает что ордер прошёл бы без SL/TP,
	// и движок обязан перейти к trading-stop fallback.
	codeSLPriceInvalid   = 110092 // SL нарушает границы относительно base price
	codeTPPriceInvalid   = 110093 // TP нарушает границы относительно base price
	codeTPSLQtyMismatch  = 110094 // объём tp/sl не совпадает с позицией
	codeTradingStopEqual = 34040  // trading stop не изменён
)

// IsLeverageNotModified возвращает true для ответа "leverage not modified".
// Bybit отдаёт его при повторной установке того же плеча; терминал
// трактует это как успех.
func IsLeverageNotModified(err error) bool {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		if ee.Code == codeLeverageNotModified {
			return true
		}
		return strings.Contains(strings.ToLower(ee.Message), "not modified")
	}
	return false
}

// IsProtectionRejection определяет, отклонила ли биржа именно встроенные
// параметры SL/TP, а не ордер как таковой. Только такие отказы дают движку
// право на fallback через trading-stop; любой другой отказ означает что
// позиции нет и intent отброшен.
func IsProtectionRejection(err error) bool {
	var ee *ExchangeError
	if !errors.As(err, &ee) {
		return false
	}
	switch ee.Code {
	case codeSLPriceInvalid, codeTPPriceInvalid, codeTPSLQtyMismatch:
		return true
	}
	// Часть отказов приходит общим кодом 10001 с упоминанием поля в тексте
	msg := strings.ToLower(ee.Message)
	return strings.Contains(msg, "stoploss") ||
		strings.Contains(msg, "stop loss") ||
		strings.Contains(msg, "takeprofit") ||
		strings.Contains(msg, "take profit")
}

// IsTradingStopNoop возвращает true если trading-stop уже стоит на тех же уровнях
func IsTradingStopNoop(err error) bool {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Code == codeTradingStopEqual
	}
	return false
}
