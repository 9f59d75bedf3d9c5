package mocks

import (
	"github.com/cradoe/vestra/internal/file"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/smtp"
	"github.com/cradoe/vestra/internal/stream"
)

var (
	_ repository.ProfileRepository        = (*MockProfileRepo)(nil)
	_ repository.ActivityRepository       = (*MockActivityRepo)(nil)
	_ repository.KycRepository            = (*MockKycRepo)(nil)
	_ repository.WithdrawalRepository     = (*MockWithdrawalRepo)(nil)
	_ repository.InvestmentPlanRepository = (*MockInvestmentPlanRepo)(nil)
	_ repository.InvestmentRepository     = (*MockInvestmentRepo)(nil)
	_ repository.TransactionRepository    = (*MockTransactionRepo)(nil)
	_ repository.StatsRepository          = (*MockStatsRepo)(nil)

	_ smtp.MailerInterface = (*MockMailer)(nil)
	_ stream.Producer      = (*MockProducer)(nil)
	_ file.Uploader        = (*MockUploader)(nil)
)
