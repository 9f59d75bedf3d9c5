package seeders

import (
	"log/slog"

	"github.com/cradoe/vestra/internal/repository"
)

type Seeder struct {
	DB     repository.Database
	Logger *slog.Logger
}

func New(DB repository.Database, logger *slog.Logger) *Seeder {
	return &Seeder{
		DB:     DB,
		Logger: logger,
	}
}

// Run seeds reference data. It is safe to run more than once.
func (seeder *Seeder) Run() error {
	return seeder.seedInvestmentPlans()
}

// PromoteAdmin bootstraps the first admin from an existing account.
func (seeder *Seeder) PromoteAdmin(email string) error {
	profile, err := seeder.DB.Profile().PromoteAdmin(email)
	if err != nil {
		return err
	}

	seeder.Logger.Info("admin promoted", "user_id", profile.ID, "email", profile.Email, "balance", profile.Balance.StringFixed(2))
	return nil
}
