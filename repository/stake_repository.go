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

const stakeColumns = `
	id, user_id, amount, principal, lock_days, daily_rate, locked_until, active,
	last_daily_paid_at, paid_days, accrued_profit, created_at, closed_at`

// StakeRepository implements the StakeRepository interface
type StakeRepository struct {
	q queryable
}

// NewStakeRepository creates a new stake repository
func NewStakeRepository(db *database.DB) *StakeRepository {
	return &StakeRepository{q: db.Pool}
}

func newStakeRepositoryWithTx(tx queryable) *StakeRepository {
	return &StakeRepository{q: tx}
}

func scanStake(row pgx.Row) (*entities.Stake, error) {
	var s entities.Stake
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Amount,
		&s.Principal,
		&s.LockDays,
		&s.DailyRate,
		&s.LockedUntil,
		&s.Active,
		&s.LastDailyPaidAt,
		&s.PaidDays,
		&s.AccruedProfit,
		&s.CreatedAt,
		&s.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StakeRepository) Create(ctx context.Context, stake *entities.Stake) error {
	query := `
		INSERT INTO stakes (user_id, amount, principal, lock_days, daily_rate, locked_until, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		stake.UserID,
		stake.Amount,
		stake.Principal,
		stake.LockDays,
		stake.DailyRate,
		stake.LockedUntil,
		stake.CreatedAt,
	).Scan(&stake.ID)
	if err != nil {
		return fmt.Errorf("failed to create stake for user %d: %w", stake.UserID, err)
	}
	return nil
}

func (r *StakeRepository) GetByID(ctx context.Context, id int64) (*entities.Stake, error) {
	return r.get(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE id = $1`, id)
}

// GetByIDForUpdate locks the stake row until the transaction ends
func (r *StakeRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Stake, error) {
	return r.get(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE id = $1 FOR UPDATE`, id)
}

func (r *StakeRepository) get(ctx context.Context, query string, id int64) (*entities.Stake, error) {
	s, err := scanStake(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stake %d: %w", id, err)
	}
	return s, nil
}

// ListActiveIDs returns active stakes, oldest maturity first
func (r *StakeRepository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM stakes WHERE active ORDER BY locked_until, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active stakes: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect stake ids: %w", err)
	}
	return ids, nil
}

func (r *StakeRepository) ListActiveIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM stakes WHERE user_id = $1 AND active ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stakes for user %d: %w", userID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect stake ids: %w", err)
	}
	return ids, nil
}

func (r *StakeRepository) RecordAccrual(ctx context.Context, id int64, days int, profit decimal.Decimal, watermark time.Time) error {
	query := `
		UPDATE stakes
		SET paid_days = paid_days + $2,
		    accrued_profit = accrued_profit + $3,
		    last_daily_paid_at = $4
		WHERE id = $1 AND active
	`

	result, err := r.q.Exec(ctx, query, id, days, profit, watermark)
	if err != nil {
		return fmt.Errorf("failed to record accrual for stake %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("stake %d is not active", id)
	}
	return nil
}

// Deactivate closes the stake if it is still active
func (r *StakeRepository) Deactivate(ctx context.Context, id int64, accruedProfit decimal.Decimal, at time.Time) (bool, error) {
	query := `
		UPDATE stakes
		SET active = FALSE,
		    amount = 0,
		    paid_days = lock_days,
		    accrued_profit = $2,
		    closed_at = $3
		WHERE id = $1 AND active
	`

	result, err := r.q.Exec(ctx, query, id, accruedProfit, at)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate stake %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}
