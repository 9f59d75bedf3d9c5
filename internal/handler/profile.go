package handler

import (
	"net/http"
	"strings"

	"github.com/cradoe/vestra/internal/context"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/helper"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/request"
	"github.com/cradoe/vestra/internal/response"
	"github.com/cradoe/vestra/internal/validator"
)

type ProfileHandler struct {
	ProfileRepo     repository.ProfileRepository
	ActivityRepo    repository.ActivityRepository
	InvestmentRepo  repository.InvestmentRepository
	TransactionRepo repository.TransactionRepository

	ErrHandler *errHandler.ErrorRepository
	Helper     *helper.HelperRepository
}

func NewProfileHandler(handler *ProfileHandler) *ProfileHandler {
	return &ProfileHandler{
		ProfileRepo:     handler.ProfileRepo,
		ActivityRepo:    handler.ActivityRepo,
		InvestmentRepo:  handler.InvestmentRepo,
		TransactionRepo: handler.TransactionRepo,
		ErrHandler:      handler.ErrHandler,
		Helper:          handler.Helper,
	}
}

// HandleSession re-reads the signed-in profile so clients can refresh it on demand.
func (h *ProfileHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	current := context.ContextGetAuthenticatedProfile(r)

	profile, found, err := h.ProfileRepo.GetOne(current.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.InvalidAuthenticationToken(w, r)
		return
	}

	data := map[string]any{
		"user": map[string]string{
			"id":    profile.ID,
			"email": profile.Email,
		},
		"profile": newProfileResponse(profile),
	}

	err = response.JSONOkResponse(w, data, "Session retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *ProfileHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input struct {
		FullName  *string             `json:"full_name"`
		AvatarURL *string             `json:"avatar_url"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(input.FullName != nil || input.AvatarURL != nil, "Nothing to update")

	if input.FullName != nil {
		trimmed := strings.TrimSpace(*input.FullName)
		input.FullName = &trimmed
		input.Validator.Check(validator.NotBlank(trimmed), "Full name cannot be blank")
		input.Validator.Check(validator.MaxRunes(trimmed, 120), "Full name is too long")
	}

	if input.AvatarURL != nil {
		input.Validator.Check(validator.MaxRunes(*input.AvatarURL, 2048), "Avatar URL is too long")
	}

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	profile := context.ContextGetAuthenticatedProfile(r)

	err = h.ProfileRepo.UpdateDetails(profile.ID, input.FullName, input.AvatarURL)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	ip := clientIP(r)
	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionProfileUpdated, nil, ip))
		return err
	})

	err = response.JSONOkResponse(w, nil, "Profile updated successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *ProfileHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	current := context.ContextGetAuthenticatedProfile(r)

	profile, found, err := h.ProfileRepo.GetOne(current.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	summary, err := h.InvestmentRepo.Summary(profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"balance":            money(profile.Balance),
		"active_investments": summary.ActiveCount,
		"total_invested":     money(summary.TotalInvested),
		"kyc_status":         profile.KycStatus,
		"pin_status":         profile.PinStatus,
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *ProfileHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	profile := context.ContextGetAuthenticatedProfile(r)
	queryValues := retrieveUrlQueryValues(r)

	transactions, err := h.TransactionRepo.ListByUser(profile.ID, queryValues.Limit)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]TransactionResponseData, len(transactions))
	for i := range transactions {
		data[i] = newTransactionResponse(&transactions[i])
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
