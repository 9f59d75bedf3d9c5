package handler

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cradoe/vestra/internal/context"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/request"
	"github.com/cradoe/vestra/internal/response"
	"github.com/cradoe/vestra/internal/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	statsSeriesDays   = 7
	recentActivityMax = 10
)

type AdminHandler struct {
	ProfileRepo  repository.ProfileRepository
	ActivityRepo repository.ActivityRepository
	StatsRepo    repository.StatsRepository

	ErrHandler *errHandler.ErrorRepository
}

func NewAdminHandler(handler *AdminHandler) *AdminHandler {
	return &AdminHandler{
		ProfileRepo:  handler.ProfileRepo,
		ActivityRepo: handler.ActivityRepo,
		StatsRepo:    handler.StatsRepo,
		ErrHandler:   handler.ErrHandler,
	}
}

type DailyStatResponseData struct {
	Day              string `json:"day"`
	Signups          int    `json:"signups"`
	InvestmentVolume string `json:"investment_volume"`
}

func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.StatsRepo.Platform()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	daily, err := h.StatsRepo.Daily(statsSeriesDays)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	series := make([]DailyStatResponseData, len(daily))
	for i, d := range daily {
		series[i] = DailyStatResponseData{
			Day:              d.Day.Format(time.DateOnly),
			Signups:          d.Signups,
			InvestmentVolume: money(d.InvestmentVolume),
		}
	}

	data := map[string]any{
		"total_users":         stats.TotalUsers,
		"total_balance":       money(stats.TotalBalance),
		"total_investments":   money(stats.TotalInvestments),
		"active_pins":         stats.ActivePins,
		"pending_withdrawals": stats.PendingWithdrawals,
		"daily":               series,
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *AdminHandler) HandleRecentActivity(w http.ResponseWriter, r *http.Request) {
	logs, err := h.ActivityRepo.Latest(recentActivityMax)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]ActivityResponseData, len(logs))
	for i := range logs {
		data[i] = newActivityResponse(&logs[i])
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	queryValues := retrieveUrlQueryValues(r)

	profiles, total, err := h.ProfileRepo.List(strings.TrimSpace(queryValues.Search), queryValues.Limit, queryValues.Offset)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	users := make([]ProfileResponseData, len(profiles))
	for i := range profiles {
		users[i] = newProfileResponse(&profiles[i])
	}

	data := map[string]any{
		"users": users,
		"pagination": map[string]int{
			"total":       total,
			"limit":       queryValues.Limit,
			"page":        queryValues.Offset/queryValues.Limit + 1,
			"total_pages": int(math.Ceil(float64(total) / float64(queryValues.Limit))),
		},
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleUpdateUser lets an admin set a user's balance or role. Any edit,
// including an empty one, also lifts a sign-in lock.
func (h *AdminHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if uuid.Validate(userID) != nil {
		h.ErrHandler.NotFound(w, r)
		return
	}

	var input struct {
		Balance   *decimal.Decimal    `json:"balance"`
		Role      *string             `json:"role"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	admin := context.ContextGetAuthenticatedProfile(r)

	if input.Balance != nil {
		input.Validator.Check(!input.Balance.IsNegative(), "Balance cannot be negative")
		input.Validator.Check(input.Balance.Equal(input.Balance.Round(2)), "Balance cannot have more than 2 decimal places")
	}
	if input.Role != nil {
		input.Validator.Check(models.IsValidRole(*input.Role), "Role must be one of user, manager or admin")
		input.Validator.Check(userID != admin.ID || *input.Role == models.RoleAdmin, "You cannot remove your own admin role")
	}

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	profile, err := h.ProfileRepo.AdminUpdate(userID, repository.ProfileChange{
		Balance: input.Balance,
		Role:    input.Role,
		AdminID: admin.ID,
		IP:      clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.ErrHandler.NotFound(w, r)
		case errors.Is(err, repository.ErrNegativeBalance):
			h.ErrHandler.FailedValidation(w, r, []string{"Balance cannot be negative"})
		default:
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	err = response.JSONOkResponse(w, newProfileResponse(profile), "User updated successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
