package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stakehub/database"
	"stakehub/domain"
	"stakehub/domain/entities"
)

const userColumns = `
	id, username, wallet_balance, total_stakes, total_commission_earned,
	lifetime_deposits, total_usdt, level, referred_by, referral_unlocked,
	first_deposit_done, security_password_hash, level_updated_at,
	created_at, updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.WalletBalance,
		&user.TotalStakes,
		&user.TotalCommissionEarned,
		&user.LifetimeDeposits,
		&user.TotalUSDT,
		&user.Level,
		&user.ReferredBy,
		&user.ReferralUnlocked,
		&user.FirstDepositDone,
		&user.SecurityPasswordHash,
		&user.LevelUpdatedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (username, referred_by, security_password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, wallet_balance, total_stakes, total_commission_earned,
		          lifetime_deposits, total_usdt, level, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query, user.Username, user.ReferredBy, user.SecurityPasswordHash).Scan(
		&user.ID,
		&user.WalletBalance,
		&user.TotalStakes,
		&user.TotalCommissionEarned,
		&user.LifetimeDeposits,
		&user.TotalUSDT,
		&user.Level,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflict("username %s is taken", user.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user and locks the row
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return user, nil
}

// GetDirectReferrals returns the users referred by id
func (r *UserRepository) GetDirectReferrals(ctx context.Context, id int64) ([]*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referred_by = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get referrals of user %d: %w", id, err)
	}
	defer rows.Close()

	var users []*entities.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// ListIDs returns every user ID in ascending order
func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect user ids: %w", err)
	}
	return ids, nil
}

// UpdateLevel raises the stored level, never lowers it
func (r *UserRepository) UpdateLevel(ctx context.Context, id int64, level int, at time.Time) (bool, error) {
	query := `
		UPDATE users
		SET level = $2, level_updated_at = $3, updated_at = NOW()
		WHERE id = $1 AND level < $2
	`

	result, err := r.q.Exec(ctx, query, id, level, at)
	if err != nil {
		return false, fmt.Errorf("failed to update level for user %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}

// AddWalletBalance moves the wallet atomically and returns the new balance
func (r *UserRepository) AddWalletBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET wallet_balance = wallet_balance + $2, updated_at = NOW()
		WHERE id = $1 AND wallet_balance + $2 >= 0
		RETURNING wallet_balance
	`

	var after decimal.Decimal
	err := r.q.QueryRow(ctx, query, id, delta).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user does not exist or the debit would overdraw
		user, err := r.GetByID(ctx, id)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to check user: %w", err)
		}
		if user == nil {
			return decimal.Zero, domain.NotFound("user %d not found", id)
		}
		return decimal.Zero, domain.Insufficient("insufficient balance: have %s, need %s",
			user.WalletBalance.StringFixed(2), delta.Neg().StringFixed(2))
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update wallet for user %d: %w", id, err)
	}
	return after, nil
}

// AddCommission raises both the commission total and the valuation
func (r *UserRepository) AddCommission(ctx context.Context, id int64, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET total_commission_earned = total_commission_earned + $2,
		    total_usdt = total_usdt + $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.execCounter(ctx, query, "commission", id, amount)
}

func (r *UserRepository) AddTotalStakes(ctx context.Context, id int64, delta decimal.Decimal) error {
	query := `UPDATE users SET total_stakes = total_stakes + $2, updated_at = NOW() WHERE id = $1`
	return r.execCounter(ctx, query, "total stakes", id, delta)
}

func (r *UserRepository) AddTotalUSDT(ctx context.Context, id int64, delta decimal.Decimal) error {
	query := `UPDATE users SET total_usdt = total_usdt + $2, updated_at = NOW() WHERE id = $1`
	return r.execCounter(ctx, query, "total USDT", id, delta)
}

// RecordDeposit updates the deposit-driven fields in one statement
func (r *UserRepository) RecordDeposit(ctx context.Context, id int64, amount, unlockThreshold decimal.Decimal) error {
	query := `
		UPDATE users
		SET lifetime_deposits = lifetime_deposits + $2,
		    total_usdt = total_usdt + $2,
		    first_deposit_done = TRUE,
		    referral_unlocked = referral_unlocked OR lifetime_deposits + $2 >= $3,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, amount, unlockThreshold)
	if err != nil {
		return fmt.Errorf("failed to record deposit for user %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return domain.NotFound("user %d not found", id)
	}
	return nil
}

func (r *UserRepository) execCounter(ctx context.Context, query, counter string, id int64, delta decimal.Decimal) error {
	result, err := r.q.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("failed to update %s for user %d: %w", counter, id, err)
	}
	if result.RowsAffected() == 0 {
		return domain.NotFound("user %d not found", id)
	}
	return nil
}
