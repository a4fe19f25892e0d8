package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stakehub/database"
	"stakehub/domain"
	"stakehub/domain/entities"
)

// AccrualRunRepository implements the AccrualRunRepository interface
type AccrualRunRepository struct {
	q queryable
}

// NewAccrualRunRepository creates a new accrual run repository
func NewAccrualRunRepository(db *database.DB) *AccrualRunRepository {
	return &AccrualRunRepository{q: db.Pool}
}

func newAccrualRunRepositoryWithTx(tx queryable) *AccrualRunRepository {
	return &AccrualRunRepository{q: tx}
}

// GetByDate checks if a sweep already ran on the UTC day of date
func (r *AccrualRunRepository) GetByDate(ctx context.Context, date time.Time) (*entities.AccrualRun, error) {
	day := entities.RunDateFor(date)

	query := `
		SELECT id, run_date, stakes_processed, stakes_unlocked, total_credited,
		       failures, execution_summary, created_at
		FROM accrual_runs
		WHERE run_date = $1
	`

	var run entities.AccrualRun
	var summaryJSON []byte

	err := r.q.QueryRow(ctx, query, day).Scan(
		&run.ID,
		&run.RunDate,
		&run.StakesProcessed,
		&run.StakesUnlocked,
		&run.TotalCredited,
		&run.Failures,
		&summaryJSON,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accrual run for date %s: %w", day.Format(time.DateOnly), err)
	}

	run.RunDate = entities.RunDateFor(run.RunDate)
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.ExecutionSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution summary: %w", err)
		}
	}

	return &run, nil
}

// Create records a finished sweep. A second run for the same day is a conflict.
func (r *AccrualRunRepository) Create(ctx context.Context, run *entities.AccrualRun) error {
	run.RunDate = entities.RunDateFor(run.RunDate)

	summary := run.ExecutionSummary
	if summary == nil {
		summary = map[string]any{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	query := `
		INSERT INTO accrual_runs
		(run_date, stakes_processed, stakes_unlocked, total_credited, failures, execution_summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		run.RunDate,
		run.StakesProcessed,
		run.StakesUnlocked,
		run.TotalCredited,
		run.Failures,
		summaryJSON,
	).Scan(&run.ID, &run.CreatedAt)
	if isUniqueViolation(err) {
		return domain.Conflict("accrual already ran for %s", run.RunDate.Format(time.DateOnly))
	}
	if err != nil {
		return fmt.Errorf("failed to create accrual run for date %s: %w", run.RunDate.Format(time.DateOnly), err)
	}

	return nil
}
