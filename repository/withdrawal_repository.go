package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stakehub/database"
	"stakehub/domain/entities"
)

// WithdrawalRepository implements the WithdrawalRepository interface
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *entities.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (user_id, amount, fee, total_deduction, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		withdrawal.UserID,
		withdrawal.Amount,
		withdrawal.Fee,
		withdrawal.TotalDeduction,
		string(withdrawal.Status),
		withdrawal.CreatedAt,
	).Scan(&withdrawal.ID)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal for user %d: %w", withdrawal.UserID, err)
	}
	return nil
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*entities.Withdrawal, error) {
	query := `
		SELECT id, user_id, amount, fee, total_deduction, status, created_at, resolved_at
		FROM withdrawals
		WHERE id = $1
	`

	var w entities.Withdrawal
	var status string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.Fee,
		&w.TotalDeduction,
		&status,
		&w.CreatedAt,
		&w.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %d: %w", id, err)
	}
	w.Status = entities.WithdrawalStatus(status)
	return &w, nil
}

// Resolve moves a pending withdrawal to status
func (r *WithdrawalRepository) Resolve(ctx context.Context, id int64, status entities.WithdrawalStatus, at time.Time) (bool, error) {
	query := `
		UPDATE withdrawals
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, id, string(status), at)
	if err != nil {
		return false, fmt.Errorf("failed to resolve withdrawal %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}
