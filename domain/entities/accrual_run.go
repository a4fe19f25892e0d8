package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccrualRun records one scheduled stake sweep. RunDate is unique, so the
// scheduled sweep runs at most once per UTC day.
type AccrualRun struct {
	ID               int64           `db:"id"`
	RunDate          time.Time       `db:"run_date"`
	StakesProcessed  int             `db:"stakes_processed"`
	StakesUnlocked   int             `db:"stakes_unlocked"`
	TotalCredited    decimal.Decimal `db:"total_credited"`
	Failures         int             `db:"failures"`
	ExecutionSummary map[string]any  `db:"execution_summary"`
	CreatedAt        time.Time       `db:"created_at"`
}

// RunDateFor truncates t to its UTC day
func RunDateFor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
