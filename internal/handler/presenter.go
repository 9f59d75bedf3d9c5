package handler

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cradoe/vestra/internal/models"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

type ProfileResponseData struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FullName      *string    `json:"full_name"`
	AvatarURL     *string    `json:"avatar_url"`
	Role          string     `json:"role"`
	Balance       string     `json:"balance"`
	PinStatus     string     `json:"pin_status"`
	PinExpiresAt  *time.Time `json:"pin_expires_at"`
	PinLastUsedAt *time.Time `json:"pin_last_used_at"`
	PinUsageCount int        `json:"pin_usage_count"`
	KycStatus     string     `json:"kyc_status"`
	LastLogin     *time.Time `json:"last_login"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newProfileResponse(p *models.Profile) ProfileResponseData {
	return ProfileResponseData{
		ID:            p.ID,
		Email:         p.Email,
		FullName:      nullString(p.FullName),
		AvatarURL:     nullString(p.AvatarURL),
		Role:          p.Role,
		Balance:       money(p.Balance),
		PinStatus:     p.PinStatus,
		PinExpiresAt:  nullTime(p.PinExpiresAt),
		PinLastUsedAt: nullTime(p.PinLastUsedAt),
		PinUsageCount: p.PinUsageCount,
		KycStatus:     p.KycStatus,
		LastLogin:     nullTime(p.LastLogin),
		CreatedAt:     p.CreatedAt,
	}
}

type WithdrawalResponseData struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Amount      string     `json:"amount"`
	Status      string     `json:"status"`
	PinVerified bool       `json:"pin_verified"`
	AdminNotes  *string    `json:"admin_notes"`
	RequestedAt time.Time  `json:"requested_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	ProcessedBy *string    `json:"processed_by"`
	Owner       *OwnerData `json:"owner,omitempty"`
}

type OwnerData struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Balance  *string `json:"balance"`
}

func newWithdrawalResponse(w *models.Withdrawal) WithdrawalResponseData {
	data := WithdrawalResponseData{
		ID:          w.ID,
		UserID:      w.UserID,
		Amount:      money(w.Amount),
		Status:      w.Status,
		PinVerified: w.PinVerified,
		AdminNotes:  nullString(w.AdminNotes),
		RequestedAt: w.RequestedAt,
		ProcessedAt: nullTime(w.ProcessedAt),
		ProcessedBy: nullString(w.ProcessedBy),
	}

	if w.Owner.Email.Valid {
		data.Owner = &OwnerData{
			FullName: nullString(w.Owner.FullName),
			Email:    nullString(w.Owner.Email),
			Balance:  nullMoney(w.Owner.Balance),
		}
	}

	return data
}

type KYCSubmissionResponseData struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	UserEmail       *string    `json:"user_email,omitempty"`
	Status          string     `json:"status"`
	LegalName       string     `json:"legal_name"`
	SsnItinLast4    string     `json:"ssn_itin_last4"`
	Dob             string     `json:"dob"`
	CurrentAddress  string     `json:"current_address"`
	PreviousAddress *string    `json:"previous_address"`
	FilingStatus    *string    `json:"filing_status"`
	Agi             *string    `json:"agi"`
	IDFrontURL      string     `json:"id_front_url"`
	IDBackURL       string     `json:"id_back_url"`
	TaxDocumentURL  *string    `json:"tax_document_url"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	VerifiedAt      *time.Time `json:"verified_at"`
	ReviewerID      *string    `json:"reviewer_id"`
}

func lastFour(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

func newKYCSubmissionResponse(k *models.KYCSubmission) KYCSubmissionResponseData {
	return KYCSubmissionResponseData{
		ID:              k.ID,
		UserID:          k.UserID,
		UserEmail:       nullString(k.UserEmail),
		Status:          k.Status,
		LegalName:       k.LegalName,
		SsnItinLast4:    lastFour(k.SsnItin),
		Dob:             k.Dob.Format(time.DateOnly),
		CurrentAddress:  k.CurrentAddress,
		PreviousAddress: nullString(k.PreviousAddress),
		FilingStatus:    nullString(k.FilingStatus),
		Agi:             nullString(k.Agi),
		IDFrontURL:      k.IDFrontURL,
		IDBackURL:       k.IDBackURL,
		TaxDocumentURL:  nullString(k.TaxDocumentURL),
		SubmittedAt:     k.SubmittedAt,
		VerifiedAt:      nullTime(k.VerifiedAt),
		ReviewerID:      nullString(k.ReviewerID),
	}
}

type PlanResponseData struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PlanType        string `json:"plan_type"`
	MinAmount       string `json:"min_amount"`
	MaxAmount       string `json:"max_amount"`
	ExpectedReturns string `json:"expected_returns"`
	DurationDays    *int32 `json:"duration_days"`
}

func newPlanResponse(p *models.InvestmentPlan) PlanResponseData {
	data := PlanResponseData{
		ID:              p.ID,
		Name:            p.Name,
		PlanType:        p.PlanType,
		MinAmount:       money(p.MinAmount),
		MaxAmount:       money(p.MaxAmount),
		ExpectedReturns: money(p.ExpectedReturns),
	}
	if p.DurationDays.Valid {
		data.DurationDays = &p.DurationDays.Int32
	}
	return data
}

type InvestmentResponseData struct {
	ID                string     `json:"id"`
	PlanID            string     `json:"plan_id"`
	PlanName          *string    `json:"plan_name"`
	PlanType          *string    `json:"plan_type"`
	Amount            string     `json:"amount"`
	Status            string     `json:"status"`
	ReturnsPercentage *string    `json:"returns_percentage"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           *time.Time `json:"end_date"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newInvestmentResponse(i *models.Investment) InvestmentResponseData {
	return InvestmentResponseData{
		ID:                i.ID,
		PlanID:            i.PlanID,
		PlanName:          nullString(i.PlanName),
		PlanType:          nullString(i.PlanType),
		Amount:            money(i.Amount),
		Status:            i.Status,
		ReturnsPercentage: nullMoney(i.ReturnsPercentage),
		StartDate:         i.StartDate,
		EndDate:           nullTime(i.EndDate),
		CreatedAt:         i.CreatedAt,
	}
}

type TransactionResponseData struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	BalanceBefore string    `json:"balance_before"`
	BalanceAfter  string    `json:"balance_after"`
	ReferenceID   *string   `json:"reference_id"`
	Description   *string   `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

func newTransactionResponse(t *models.Transaction) TransactionResponseData {
	return TransactionResponseData{
		ID:            t.ID,
		Type:          t.Type,
		Amount:        money(t.Amount),
		BalanceBefore: money(t.BalanceBefore),
		BalanceAfter:  money(t.BalanceAfter),
		ReferenceID:   nullString(t.ReferenceID),
		Description:   nullString(t.Description),
		CreatedAt:     t.CreatedAt,
	}
}

type ActivityResponseData struct {
	ID        string          `json:"id"`
	UserID    *string         `json:"user_id"`
	FullName  *string         `json:"full_name"`
	Email     *string         `json:"email"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	IPAddress *string         `json:"ip_address"`
	CreatedAt time.Time       `json:"created_at"`
}

func newActivityResponse(a *models.ActivityLog) ActivityResponseData {
	data := ActivityResponseData{
		ID:        a.ID,
		UserID:    nullString(a.UserID),
		FullName:  nullString(a.UserFullName),
		Email:     nullString(a.UserEmail),
		Action:    a.Action,
		IPAddress: nullString(a.IPAddress),
		CreatedAt: a.CreatedAt,
	}
	if len(a.Details) > 0 {
		data.Details = json.RawMessage(a.Details)
	}
	return data
}
