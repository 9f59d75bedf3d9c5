package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlanTypeFixed   = "fixed"
	PlanTypeMonthly = "monthly"
	PlanTypeCustom  = "custom"
)

const (
	InvestmentStatusActive    = "active"
	InvestmentStatusCompleted = "completed"
	InvestmentStatusCancelled = "cancelled"
)

type InvestmentPlan struct {
	ID              string          `db:"id"`
	Name            string          `db:"name"`
	PlanType        string          `db:"plan_type"`
	MinAmount       decimal.Decimal `db:"min_amount"`
	MaxAmount       decimal.Decimal `db:"max_amount"`
	ExpectedReturns decimal.Decimal `db:"expected_returns"`
	DurationDays    sql.NullInt32   `db:"duration_days"`
	IsActive        bool            `db:"is_active"`
	CreatedAt       time.Time       `db:"created_at"`
}

type Investment struct {
	ID                string              `db:"id"`
	UserID            string              `db:"user_id"`
	PlanID            string              `db:"plan_id"`
	Amount            decimal.Decimal     `db:"amount"`
	Status            string              `db:"status"`
	ReturnsPercentage decimal.NullDecimal `db:"returns_percentage"`
	StartDate         time.Time           `db:"start_date"`
	EndDate           sql.NullTime        `db:"end_date"`
	CreatedAt         time.Time           `db:"created_at"`

	PlanName sql.NullString `db:"plan_name"`
	PlanType sql.NullString `db:"plan_type"`
}

type InvestmentSummary struct {
	ActiveCount   int             `db:"active_count"`
	TotalInvested decimal.Decimal `db:"total_invested"`
}
