package observability

// Metric name prefixes
const (
	MetricPrefix = "stakehub"
)

// Metric names
const (
	// Commission metrics
	CommissionsCreditedTotal = MetricPrefix + ".commissions.credited_total"
	CommissionsSkippedTotal  = MetricPrefix + ".commissions.skipped_total"
	CommissionAmountTotal    = MetricPrefix + ".commissions.amount_total"

	// Sweep metrics
	SweepRunsTotal   = MetricPrefix + ".sweep.runs_total"
	SweepStakesTotal = MetricPrefix + ".sweep.stakes_total"
	SweepDuration    = MetricPrefix + ".sweep.duration"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Balance metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"

	// Level metrics
	LevelAdvancesTotal = MetricPrefix + ".levels.advances_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelOutcome   = "outcome"
	LabelTrigger   = "trigger"
	LabelLevel     = "level"
)

// Sweep outcomes
const (
	OutcomeAccrued  = "accrued"
	OutcomeUnlocked = "unlocked"
	OutcomeFailed   = "failed"
)

// Sweep triggers
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)
