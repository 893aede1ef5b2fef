package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradeterm/internal/models"
	"tradeterm/internal/repository"
)

// JournalService принимает события закрытия позиций от движка,
// сохраняет их в журнал и транслирует подключённому UI.
// Запись не должна блокировать торговый путь: события идут через
// буферизованный канал, переполнение логируется и событие отбрасывается
// из канала, но не из БД следующих событий.
type JournalService struct {
	trades TradeStore
	hub    TradeBroadcaster
	log    *zap.Logger
	events chan *models.TradeRecord
}

// NewJournalService создает журнал сделок
func NewJournalService(trades TradeStore, hub TradeBroadcaster, log *zap.Logger) *JournalService {
	return &JournalService{
		trades: trades,
		hub:    hub,
		log:    log,
		events: make(chan *models.TradeRecord, 64),
	}
}

// Record ставит событие закрытия в очередь. Не блокирует вызывающего.
func (s *JournalService) Record(trade *models.TradeRecord) {
	select {
	case s.events <- trade:
	default:
		s.log.Warn("journal queue full, dropping trade event",
			zap.String("symbol", trade.Symbol))
	}
}

// Run обрабатывает очередь событий до отмены контекста
func (s *JournalService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trade := <-s.events:
			s.persist(trade)
		}
	}
}

func (s *JournalService) persist(trade *models.TradeRecord) {
	if err := s.trades.Create(trade); err != nil {
		s.log.Error("journal persist failed",
			zap.String("symbol", trade.Symbol),
			zap.Error(err))
		return
	}

	if s.hub != nil {
		s.hub.BroadcastTrade(trade)
	}

	s.log.Info("trade journaled",
		zap.String("symbol", trade.Symbol),
		zap.String("side", trade.Side),
		zap.String("reason", trade.CloseReason),
		zap.Float64("pnl", trade.Pnl))
}

// List возвращает последние записи журнала
func (s *JournalService) List(symbol string, limit int) ([]*models.TradeRecord, error) {
	if symbol != "" {
		return s.trades.ListBySymbol(symbol, limit)
	}
	return s.trades.List(limit)
}

// Summary возвращает агрегированную статистику за период
func (s *JournalService) Summary(since time.Time) (*repository.TradeSummary, error) {
	return s.trades.Summary(since)
}
