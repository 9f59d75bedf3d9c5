package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cradoe/vestra/internal/config"
	"github.com/cradoe/vestra/internal/context"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/helper"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/pin"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/request"
	"github.com/cradoe/vestra/internal/response"
	"github.com/cradoe/vestra/internal/stream"
	"github.com/cradoe/vestra/internal/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalHandler struct {
	WithdrawalRepo repository.WithdrawalRepository

	Gate       *pin.Gate
	Producer   stream.Producer
	ErrHandler *errHandler.ErrorRepository
	Helper     *helper.HelperRepository
	Config     *config.Config
}

func NewWithdrawalHandler(handler *WithdrawalHandler) *WithdrawalHandler {
	return &WithdrawalHandler{
		WithdrawalRepo: handler.WithdrawalRepo,
		Gate:           handler.Gate,
		Producer:       handler.Producer,
		ErrHandler:     handler.ErrHandler,
		Helper:         handler.Helper,
		Config:         handler.Config,
	}
}

func validAmount(v *validator.Validator, amount decimal.Decimal) {
	v.Check(amount.IsPositive(), "Amount must be greater than zero")
	v.Check(amount.Equal(amount.Round(2)), "Amount cannot have more than 2 decimal places")
}

// HandleCreateWithdrawal files a pending request. The balance is only debited
// when an admin approves it. A verified PIN is spent by the request.
func (h *WithdrawalHandler) HandleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	if !h.Config.Withdrawals.Enabled {
		h.ErrHandler.Forbidden(w, r, "Withdrawals are currently unavailable", nil)
		return
	}

	profile := context.ContextGetAuthenticatedProfile(r)

	verified, _, err := h.Gate.Status(r.Context(), profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !verified {
		h.ErrHandler.Forbidden(w, r, "PIN verification is required before requesting a withdrawal", map[string]string{
			"redirect": "/withdrawals/pin-verification",
		})
		return
	}

	var input struct {
		Amount    decimal.Decimal     `json:"amount"`
		Validator validator.Validator `json:"-"`
	}

	err = request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	validAmount(&input.Validator, input.Amount)
	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	withdrawal, err := h.WithdrawalRepo.Create(profile.ID, input.Amount, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			h.ErrHandler.FailedValidation(w, r, []string{"Insufficient balance"})
		case errors.Is(err, repository.ErrRecordNotFound):
			h.ErrHandler.NotFound(w, r)
		default:
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	err = h.Gate.Close(r.Context(), profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONCreatedResponse(w, newWithdrawalResponse(withdrawal), "Withdrawal request submitted")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WithdrawalHandler) HandleMyWithdrawals(w http.ResponseWriter, r *http.Request) {
	profile := context.ContextGetAuthenticatedProfile(r)

	withdrawals, err := h.WithdrawalRepo.ListByUser(profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.writeList(w, r, withdrawals)
}

func (h *WithdrawalHandler) HandleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	queryValues := retrieveUrlQueryValues(r)

	if queryValues.Status != "" && !validator.PermittedValue(queryValues.Status,
		models.WithdrawalStatusPending, models.WithdrawalStatusApproved,
		models.WithdrawalStatusRejected, models.WithdrawalStatusCompleted) {
		h.ErrHandler.FailedValidation(w, r, []string{"Unknown withdrawal status"})
		return
	}

	withdrawals, err := h.WithdrawalRepo.List(queryValues.Status, strings.TrimSpace(queryValues.Search))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.writeList(w, r, withdrawals)
}

func (h *WithdrawalHandler) writeList(w http.ResponseWriter, r *http.Request, withdrawals []models.Withdrawal) {
	data := make([]WithdrawalResponseData, len(withdrawals))
	for i := range withdrawals {
		data[i] = newWithdrawalResponse(&withdrawals[i])
	}

	err := response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WithdrawalHandler) HandleApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.process(w, r, true)
}

func (h *WithdrawalHandler) HandleRejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.process(w, r, false)
}

func (h *WithdrawalHandler) process(w http.ResponseWriter, r *http.Request, approve bool) {
	withdrawalID := r.PathValue("id")
	if uuid.Validate(withdrawalID) != nil {
		h.ErrHandler.NotFound(w, r)
		return
	}

	var input struct {
		Notes     string              `json:"notes"`
		Validator validator.Validator `json:"-"`
	}

	if r.ContentLength != 0 {
		err := request.DecodeJSON(w, r, &input)
		if err != nil {
			h.ErrHandler.BadRequest(w, r, err)
			return
		}
	}

	input.Notes = strings.TrimSpace(input.Notes)
	input.Validator.Check(validator.MaxRunes(input.Notes, 500), "Notes must not exceed 500 characters")
	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	admin := context.ContextGetAuthenticatedProfile(r)

	withdrawal, err := h.WithdrawalRepo.Process(withdrawalID, repository.WithdrawalDecision{
		AdminID: admin.ID,
		Approve: approve,
		Notes:   input.Notes,
		IP:      clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.ErrHandler.NotFound(w, r)
		case errors.Is(err, repository.ErrNotPending):
			h.ErrHandler.Conflict(w, r, errors.New("Withdrawal has already been processed"))
		case errors.Is(err, repository.ErrInsufficientBalance):
			h.ErrHandler.FailedValidation(w, r, []string{"User balance is lower than the withdrawal amount"})
		default:
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	event := stream.WithdrawalProcessedEvent{
		WithdrawalID: withdrawal.ID,
		UserID:       withdrawal.UserID,
		Status:       withdrawal.Status,
		Amount:       money(withdrawal.Amount),
		Notes:        input.Notes,
	}
	if approve && withdrawal.Owner.Balance.Valid {
		event.NewBalance = money(withdrawal.Owner.Balance.Decimal)
	}

	h.Helper.BackgroundTask(r, func() error {
		return stream.Publish(h.Producer, stream.TopicWithdrawalProcessed, event)
	})

	message := "Withdrawal " + withdrawal.Status

	err = response.JSONOkResponse(w, newWithdrawalResponse(withdrawal), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
