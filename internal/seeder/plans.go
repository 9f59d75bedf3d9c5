package seeders

import (
	"database/sql"
	"fmt"

	"github.com/cradoe/vestra/internal/models"
	"github.com/shopspring/decimal"
)

type planSeed struct {
	Name            string
	PlanType        string
	MinAmount       string
	MaxAmount       string
	ExpectedReturns string
	DurationDays    int32
}

var defaultPlans = []planSeed{
	{Name: "Starter", PlanType: models.PlanTypeFixed, MinAmount: "100", MaxAmount: "2000", ExpectedReturns: "5", DurationDays: 30},
	{Name: "Growth", PlanType: models.PlanTypeMonthly, MinAmount: "1000", MaxAmount: "10000", ExpectedReturns: "8.5", DurationDays: 90},
	{Name: "Premium", PlanType: models.PlanTypeFixed, MinAmount: "5000", MaxAmount: "50000", ExpectedReturns: "12", DurationDays: 180},
	{Name: "Flexible", PlanType: models.PlanTypeCustom, MinAmount: "250", MaxAmount: "25000", ExpectedReturns: "6.75"},
}

// seedInvestmentPlans inserts the default plans, leaving existing ones untouched
func (seeder *Seeder) seedInvestmentPlans() error {
	plans := seeder.DB.InvestmentPlan()

	for _, seed := range defaultPlans {
		plan := &models.InvestmentPlan{
			Name:            seed.Name,
			PlanType:        seed.PlanType,
			MinAmount:       decimal.RequireFromString(seed.MinAmount),
			MaxAmount:       decimal.RequireFromString(seed.MaxAmount),
			ExpectedReturns: decimal.RequireFromString(seed.ExpectedReturns),
			DurationDays:    sql.NullInt32{Int32: seed.DurationDays, Valid: seed.DurationDays > 0},
			IsActive:        true,
		}

		inserted, err := plans.Insert(plan)
		if err != nil {
			return fmt.Errorf("seed plan %q: %w", seed.Name, err)
		}

		if inserted {
			seeder.Logger.Info("investment plan seeded", "name", seed.Name)
		}
	}

	return nil
}
