package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// CycleKind distinguishes the two loops the agent runs.
type CycleKind string

const (
	CycleLiquidation CycleKind = "liquidation"
	CycleRebalance   CycleKind = "rebalance"
)

// CycleOutcome is the result of one cycle.
type CycleOutcome string

const (
	OutcomeExecuted CycleOutcome = "executed" // A plan was submitted
	OutcomeIdle     CycleOutcome = "idle"     // Nothing passed the policy
	OutcomeFailed   CycleOutcome = "failed"   // Fetch or submission failed
	OutcomeSkipped  CycleOutcome = "skipped"  // Dry run
)

// CycleSnapshot captures the complete state of a single agent cycle for analysis.
type CycleSnapshot struct {
	SnapshotID  int64        `json:"snapshot_id"`
	CycleNumber int          `json:"cycle_number"`
	CycleID     string       `json:"cycle_id"`
	Kind        CycleKind    `json:"kind"`
	Outcome     CycleOutcome `json:"outcome"`
	Timestamp   time.Time    `json:"timestamp"`
	Duration    int64        `json:"duration_ms"`
	ParamsID    *int64       `json:"params_id,omitempty"`

	// --- Scan ---
	AccountsScanned   int `json:"accounts_scanned"`
	AccountsFailed    int `json:"accounts_failed"`
	LiquidatableCount int `json:"liquidatable_count"`

	// --- Chosen plan ---
	AccountID      string          `json:"account_id,omitempty"`
	Actions        []Action        `json:"actions"`
	ProfitUSD      decimal.Decimal `json:"profit_usd"`
	DiscountBefore decimal.Decimal `json:"discount_before"`
	HealthBefore   decimal.Decimal `json:"health_before"`
	HealthAfter    decimal.Decimal `json:"health_after"`

	// --- Execution ---
	TransactionHashes []string `json:"transaction_hashes"`
	DryRun            bool     `json:"dry_run"`
	Errors            []string `json:"errors"`
}
