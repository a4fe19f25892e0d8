package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stakehub/database"
	"stakehub/domain/entities"
)

// CommissionLedgerRepository implements the CommissionLedgerRepository interface.
// Rows are never updated or deleted.
type CommissionLedgerRepository struct {
	q queryable
}

// NewCommissionLedgerRepository creates a new commission ledger repository
func NewCommissionLedgerRepository(db *database.DB) *CommissionLedgerRepository {
	return &CommissionLedgerRepository{q: db.Pool}
}

func newCommissionLedgerRepositoryWithTx(tx queryable) *CommissionLedgerRepository {
	return &CommissionLedgerRepository{q: tx}
}

// Append inserts entry unless the same (earner, source, deposit, type) is
// already recorded
func (r *CommissionLedgerRepository) Append(ctx context.Context, entry *entities.CommissionEntry) (bool, error) {
	query := `
		INSERT INTO commission_ledger
		(user_id, source_user_id, deposit_id, type, layer, percentage, amount, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.UserID,
		entry.SourceUserID,
		entry.DepositID,
		string(entry.Type),
		entry.Layer,
		entry.Percentage,
		entry.Amount,
		entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to append commission for user %d: %w", entry.UserID, err)
	}
	return true, nil
}

func (r *CommissionLedgerRepository) AggregateByUser(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM commission_ledger WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate commissions for user %d: %w", userID, err)
	}
	return total, nil
}

func (r *CommissionLedgerRepository) AggregateByType(ctx context.Context, userID int64) (map[entities.CommissionType]decimal.Decimal, error) {
	query := `
		SELECT type, SUM(amount)
		FROM commission_ledger
		WHERE user_id = $1
		GROUP BY type
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate commissions for user %d: %w", userID, err)
	}
	defer rows.Close()

	totals := make(map[entities.CommissionType]decimal.Decimal)
	for rows.Next() {
		var ct string
		var sum decimal.Decimal
		if err := rows.Scan(&ct, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan commission total: %w", err)
		}
		totals[entities.CommissionType(ct)] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commission totals: %w", err)
	}
	return totals, nil
}

func (r *CommissionLedgerRepository) GetByDeposit(ctx context.Context, depositID int64) ([]*entities.CommissionEntry, error) {
	query := `
		SELECT id, user_id, source_user_id, deposit_id, type, layer, percentage, amount, note, created_at
		FROM commission_ledger
		WHERE deposit_id = $1
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, depositID)
	if err != nil {
		return nil, fmt.Errorf("failed to get commissions for deposit %d: %w", depositID, err)
	}
	defer rows.Close()

	var entries []*entities.CommissionEntry
	for rows.Next() {
		var e entities.CommissionEntry
		var ct string
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.SourceUserID,
			&e.DepositID,
			&ct,
			&e.Layer,
			&e.Percentage,
			&e.Amount,
			&e.Note,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission entry: %w", err)
		}
		e.Type = entities.CommissionType(ct)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commission entries: %w", err)
	}
	return entries, nil
}
