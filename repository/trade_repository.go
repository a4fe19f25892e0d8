package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stakehub/database"
	"stakehub/domain/entities"
)

const tradeColumns = `
	id, user_id, amount, daily_rate, locked_until, active, total_earned,
	last_profit_calc, created_at, closed_at`

// TradeRepository implements the TradeRepository interface
type TradeRepository struct {
	q queryable
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *database.DB) *TradeRepository {
	return &TradeRepository{q: db.Pool}
}

func newTradeRepositoryWithTx(tx queryable) *TradeRepository {
	return &TradeRepository{q: tx}
}

func scanTrade(row pgx.Row) (*entities.Trade, error) {
	var t entities.Trade
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Amount,
		&t.DailyRate,
		&t.LockedUntil,
		&t.Active,
		&t.TotalEarned,
		&t.LastProfitCalc,
		&t.CreatedAt,
		&t.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TradeRepository) Create(ctx context.Context, trade *entities.Trade) error {
	query := `
		INSERT INTO trades (user_id, amount, daily_rate, locked_until, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		trade.UserID,
		trade.Amount,
		trade.DailyRate,
		trade.LockedUntil,
		trade.CreatedAt,
	).Scan(&trade.ID)
	if err != nil {
		return fmt.Errorf("failed to create trade for user %d: %w", trade.UserID, err)
	}
	return nil
}

func (r *TradeRepository) GetByID(ctx context.Context, id int64) (*entities.Trade, error) {
	return r.get(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
}

func (r *TradeRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Trade, error) {
	return r.get(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1 FOR UPDATE`, id)
}

func (r *TradeRepository) get(ctx context.Context, query string, id int64) (*entities.Trade, error) {
	t, err := scanTrade(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %d: %w", id, err)
	}
	return t, nil
}

func (r *TradeRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*entities.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = $1 AND active ORDER BY id`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for user %d: %w", userID, err)
	}
	defer rows.Close()

	var trades []*entities.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}

func (r *TradeRepository) RecordAccrual(ctx context.Context, id int64, earned decimal.Decimal, watermark time.Time) error {
	query := `
		UPDATE trades
		SET total_earned = total_earned + $2, last_profit_calc = $3
		WHERE id = $1 AND active
	`

	result, err := r.q.Exec(ctx, query, id, earned, watermark)
	if err != nil {
		return fmt.Errorf("failed to record accrual for trade %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trade %d is not active", id)
	}
	return nil
}

// Deactivate closes the trade if it is still active
func (r *TradeRepository) Deactivate(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := r.q.Exec(ctx, `UPDATE trades SET active = FALSE, closed_at = $2 WHERE id = $1 AND active`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate trade %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}
