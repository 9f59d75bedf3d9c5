package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlatformStats struct {
	TotalUsers         int             `db:"total_users"`
	TotalBalance       decimal.Decimal `db:"total_balance"`
	TotalInvestments   decimal.Decimal `db:"total_investments"`
	ActivePins         int             `db:"active_pins"`
	PendingWithdrawals int             `db:"pending_withdrawals"`
}

type DailyStat struct {
	Day              time.Time       `db:"day"`
	Signups          int             `db:"signups"`
	InvestmentVolume decimal.Decimal `db:"investment_volume"`
}
