package handler

import (
	"errors"
	"net/http"

	"github.com/cradoe/vestra/internal/context"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/helper"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/request"
	"github.com/cradoe/vestra/internal/response"
	"github.com/cradoe/vestra/internal/stream"
	"github.com/cradoe/vestra/internal/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvestmentHandler struct {
	PlanRepo       repository.InvestmentPlanRepository
	InvestmentRepo repository.InvestmentRepository

	Producer   stream.Producer
	ErrHandler *errHandler.ErrorRepository
	Helper     *helper.HelperRepository
}

func NewInvestmentHandler(handler *InvestmentHandler) *InvestmentHandler {
	return &InvestmentHandler{
		PlanRepo:       handler.PlanRepo,
		InvestmentRepo: handler.InvestmentRepo,
		Producer:       handler.Producer,
		ErrHandler:     handler.ErrHandler,
		Helper:         handler.Helper,
	}
}

func (h *InvestmentHandler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.PlanRepo.ListActive()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]PlanResponseData, len(plans))
	for i := range plans {
		data[i] = newPlanResponse(&plans[i])
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleCreateInvestment moves money from the caller's balance into a plan.
// Plan limits and the balance check are enforced under the profile lock.
func (h *InvestmentHandler) HandleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	var input struct {
		PlanID    string              `json:"plan_id"`
		Amount    decimal.Decimal     `json:"amount"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(uuid.Validate(input.PlanID) == nil, "A valid plan is required")
	validAmount(&input.Validator, input.Amount)

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	profile := context.ContextGetAuthenticatedProfile(r)

	investment, err := h.InvestmentRepo.Create(profile.ID, input.PlanID, input.Amount, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.ErrHandler.FailedValidation(w, r, []string{"Investment plan not found"})
		case errors.Is(err, repository.ErrPlanInactive):
			h.ErrHandler.FailedValidation(w, r, []string{"Investment plan is not available"})
		case errors.Is(err, repository.ErrAmountOutOfRange):
			h.ErrHandler.FailedValidation(w, r, []string{err.Error()})
		case errors.Is(err, repository.ErrInsufficientBalance):
			h.ErrHandler.FailedValidation(w, r, []string{"Insufficient balance"})
		default:
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	event := stream.InvestmentCreatedEvent{
		InvestmentID: investment.ID,
		UserID:       investment.UserID,
		PlanName:     investment.PlanName.String,
		Amount:       money(investment.Amount),
	}
	if investment.ReturnsPercentage.Valid {
		event.Returns = money(investment.ReturnsPercentage.Decimal)
	}

	h.Helper.BackgroundTask(r, func() error {
		return stream.Publish(h.Producer, stream.TopicInvestmentCreated, event)
	})

	err = response.JSONCreatedResponse(w, newInvestmentResponse(investment), "Investment created successfully")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *InvestmentHandler) HandleMyInvestments(w http.ResponseWriter, r *http.Request) {
	profile := context.ContextGetAuthenticatedProfile(r)

	investments, err := h.InvestmentRepo.ListByUser(profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]InvestmentResponseData, len(investments))
	for i := range investments {
		data[i] = newInvestmentResponse(&investments[i])
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
