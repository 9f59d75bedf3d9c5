package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusCompleted = "completed"
)

type Withdrawal struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	Amount      decimal.Decimal `db:"amount"`
	Status      string          `db:"status"`
	PinVerified bool            `db:"pin_verified"`
	AdminNotes  sql.NullString  `db:"admin_notes"`
	RequestedAt time.Time       `db:"requested_at"`
	ProcessedAt sql.NullTime    `db:"processed_at"`
	ProcessedBy sql.NullString  `db:"processed_by"`

	Owner WithdrawalOwner `db:"owner"`
}

type WithdrawalOwner struct {
	FullName sql.NullString      `db:"full_name"`
	Email    sql.NullString      `db:"email"`
	Balance  decimal.NullDecimal `db:"balance"`
}
