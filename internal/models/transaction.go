package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeInvestment = "investment"
	TransactionTypeAdjustment = "adjustment"
)

// Transaction is the ledger entry written alongside every balance change.
// Amount is signed: debits are negative.
type Transaction struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	Type          string          `db:"type"`
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	ReferenceID   sql.NullString  `db:"reference_id"`
	Description   sql.NullString  `db:"description"`
	CreatedAt     time.Time       `db:"created_at"`
}
