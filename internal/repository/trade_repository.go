package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradeterm/internal/models"
)

// Ошибки репозитория журнала сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades (журнал закрытых сделок)
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create записывает закрытую сделку в журнал
func (r *TradeRepository) Create(trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (symbol, side, strategy_id, entry_price, exit_price, size, leverage, pnl, close_reason, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	if trade.ClosedAt.IsZero() {
		trade.ClosedAt = time.Now()
	}

	err := r.db.QueryRow(
		query,
		trade.Symbol,
		trade.Side,
		trade.StrategyID,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.Size,
		trade.Leverage,
		trade.Pnl,
		trade.CloseReason,
		trade.OpenedAt,
		trade.ClosedAt,
	).Scan(&trade.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id int) (*models.TradeRecord, error) {
	query := `
		SELECT id, symbol, side, strategy_id, entry_price, exit_price, size, leverage, pnl, close_reason, opened_at, closed_at
		FROM trades
		WHERE id = $1`

	trade := &models.TradeRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&trade.ID,
		&trade.Symbol,
		&trade.Side,
		&trade.StrategyID,
		&trade.EntryPrice,
		&trade.ExitPrice,
		&trade.Size,
		&trade.Leverage,
		&trade.Pnl,
		&trade.CloseReason,
		&trade.OpenedAt,
		&trade.ClosedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// List возвращает последние сделки, новые первыми
func (r *TradeRepository) List(limit int) ([]*models.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, symbol, side, strategy_id, entry_price, exit_price, size, leverage, pnl, close_reason, opened_at, closed_at
		FROM trades
		ORDER BY closed_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListBySymbol возвращает сделки по символу, новые первыми
func (r *TradeRepository) ListBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, symbol, side, strategy_id, entry_price, exit_price, size, leverage, pnl, close_reason, opened_at, closed_at
		FROM trades
		WHERE symbol = $1
		ORDER BY closed_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// TradeSummary - агрегированная статистика журнала
type TradeSummary struct {
	Total    int     `json:"total"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	TotalPnl float64 `json:"total_pnl"`
	WinRate  float64 `json:"win_rate"` // 0..100
}

// Summary возвращает агрегированную статистику за период
func (r *TradeRepository) Summary(since time.Time) (*TradeSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE pnl > 0),
			COUNT(*) FILTER (WHERE pnl < 0),
			COALESCE(SUM(pnl), 0)
		FROM trades
		WHERE closed_at >= $1`

	summary := &TradeSummary{}
	err := r.db.QueryRow(query, since).Scan(
		&summary.Total,
		&summary.Wins,
		&summary.Losses,
		&summary.TotalPnl,
	)
	if err != nil {
		return nil, err
	}

	if summary.Total > 0 {
		summary.WinRate = float64(summary.Wins) / float64(summary.Total) * 100
	}

	return summary, nil
}

// scanTrades читает строки результата в срез записей
func scanTrades(rows *sql.Rows) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&trade.Side,
			&trade.StrategyID,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.Size,
			&trade.Leverage,
			&trade.Pnl,
			&trade.CloseReason,
			&trade.OpenedAt,
			&trade.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
