package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stakehub/database"
	"stakehub/domain"
	"stakehub/domain/entities"
)

// DepositRepository implements the DepositRepository interface
type DepositRepository struct {
	q queryable
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(db *database.DB) *DepositRepository {
	return &DepositRepository{q: db.Pool}
}

func newDepositRepositoryWithTx(tx queryable) *DepositRepository {
	return &DepositRepository{q: tx}
}

func scanDeposit(row pgx.Row) (*entities.Deposit, error) {
	var d entities.Deposit
	var status string
	if err := row.Scan(&d.ID, &d.UserID, &d.Amount, &d.TxHash, &status, &d.CreatedAt, &d.ResolvedAt); err != nil {
		return nil, err
	}
	d.Status = entities.DepositStatus(status)
	return &d, nil
}

// Create inserts a pending deposit. A reused transaction hash is a conflict.
func (r *DepositRepository) Create(ctx context.Context, deposit *entities.Deposit) error {
	query := `
		INSERT INTO deposits (user_id, amount, tx_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		deposit.UserID,
		deposit.Amount,
		deposit.TxHash,
		string(deposit.Status),
		deposit.CreatedAt,
	).Scan(&deposit.ID)
	if isUniqueViolation(err) {
		return domain.Conflict("transaction %s was already submitted", deposit.TxHash)
	}
	if err != nil {
		return fmt.Errorf("failed to create deposit for user %d: %w", deposit.UserID, err)
	}
	return nil
}

func (r *DepositRepository) GetByID(ctx context.Context, id int64) (*entities.Deposit, error) {
	query := `
		SELECT id, user_id, amount, tx_hash, status, created_at, resolved_at
		FROM deposits
		WHERE id = $1
	`

	d, err := scanDeposit(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %d: %w", id, err)
	}
	return d, nil
}

func (r *DepositRepository) FindByHash(ctx context.Context, txHash string) (*entities.Deposit, error) {
	query := `
		SELECT id, user_id, amount, tx_hash, status, created_at, resolved_at
		FROM deposits
		WHERE tx_hash = $1
	`

	d, err := scanDeposit(r.q.QueryRow(ctx, query, txHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find deposit by hash: %w", err)
	}
	return d, nil
}

// Resolve moves a pending deposit to status
func (r *DepositRepository) Resolve(ctx context.Context, id int64, status entities.DepositStatus, at time.Time) (bool, error) {
	query := `
		UPDATE deposits
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, id, string(status), at)
	if err != nil {
		return false, fmt.Errorf("failed to resolve deposit %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}
