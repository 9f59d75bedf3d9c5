package stream

const (
	TopicWithdrawalProcessed = "withdrawal.processed"
	TopicKYCDecided          = "kyc.decided"
	TopicInvestmentCreated   = "investment.created"
)

type WithdrawalProcessedEvent struct {
	WithdrawalID string `json:"withdrawal_id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	NewBalance   string `json:"new_balance,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type KYCDecidedEvent struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
}

type InvestmentCreatedEvent struct {
	InvestmentID string `json:"investment_id"`
	UserID       string `json:"user_id"`
	PlanName     string `json:"plan_name"`
	Amount       string `json:"amount"`
	Returns      string `json:"returns"`
}

