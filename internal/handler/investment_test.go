package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cradoe/vestra/internal/mocks"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/stream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPlanID = "2b3c4d5e-6f70-4182-93a4-b5c6d7e8f901"

type investmentFixture struct {
	env            *testEnv
	planRepo       *mocks.MockInvestmentPlanRepo
	investmentRepo *mocks.MockInvestmentRepo
	producer       *mocks.MockProducer
	handler        *InvestmentHandler
}

func newInvestmentFixture(t *testing.T) *investmentFixture {
	f := &investmentFixture{
		env:            newTestEnv(t),
		planRepo:       new(mocks.MockInvestmentPlanRepo),
		investmentRepo: new(mocks.MockInvestmentRepo),
		producer:       new(mocks.MockProducer),
	}

	f.handler = NewInvestmentHandler(&InvestmentHandler{
		PlanRepo:       f.planRepo,
		InvestmentRepo: f.investmentRepo,
		Producer:       f.producer,
		ErrHandler:     f.env.ErrHandler,
		Helper:         f.env.Helper,
	})

	return f
}

func investRequest(t *testing.T, planID, amount string) *http.Request {
	req := jsonRequest(t, http.MethodPost, "/v1/investments", map[string]string{
		"plan_id": planID,
		"amount":  amount,
	})
	return asProfile(req, testProfile(testUserID, models.RoleUser))
}

func TestHandleCreateInvestment(t *testing.T) {
	f := newInvestmentFixture(t)

	investment := &models.Investment{
		ID:                "e1d2c3b4-a596-4877-8899-aabbccddeeff",
		UserID:            testUserID,
		PlanID:            testPlanID,
		Amount:            decimal.RequireFromString("500"),
		Status:            models.InvestmentStatusActive,
		ReturnsPercentage: decimal.NewNullDecimal(decimal.RequireFromString("8.5")),
		StartDate:         time.Now(),
	}
	investment.PlanName.String, investment.PlanName.Valid = "Growth", true

	f.investmentRepo.On("Create", testUserID, testPlanID, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(500))
	}), mock.AnythingOfType("string")).Return(investment, nil)
	f.producer.On("ProduceMessage", stream.TopicInvestmentCreated, mock.MatchedBy(func(message string) bool {
		return strings.Contains(message, `"plan_name":"Growth"`) &&
			strings.Contains(message, `"amount":"500.00"`) &&
			strings.Contains(message, `"returns":"8.50"`)
	})).Return(nil)

	rr := httptest.NewRecorder()
	f.handler.HandleCreateInvestment(rr, investRequest(t, testPlanID, "500"))
	f.env.WG.Wait()

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "500.00", responseData(t, rr)["amount"])

	f.investmentRepo.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestHandleCreateInvestment_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		planID    string
		amount    string
		repoErr   error
		wantError string
	}{
		{name: "missing plan", planID: "", amount: "100", wantError: "A valid plan is required"},
		{name: "negative amount", planID: testPlanID, amount: "-5", wantError: "Amount must be greater than zero"},
		{name: "unknown plan", planID: testPlanID, amount: "100", repoErr: repository.ErrRecordNotFound, wantError: "Investment plan not found"},
		{name: "inactive plan", planID: testPlanID, amount: "100", repoErr: repository.ErrPlanInactive, wantError: "Investment plan is not available"},
		{name: "outside limits", planID: testPlanID, amount: "100", repoErr: repository.ErrAmountOutOfRange, wantError: repository.ErrAmountOutOfRange.Error()},
		{name: "insufficient balance", planID: testPlanID, amount: "100", repoErr: repository.ErrInsufficientBalance, wantError: "Insufficient balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvestmentFixture(t)

			if tt.repoErr != nil {
				f.investmentRepo.On("Create", testUserID, tt.planID, mock.Anything, mock.Anything).Return(nil, tt.repoErr)
			}

			rr := httptest.NewRecorder()
			f.handler.HandleCreateInvestment(rr, investRequest(t, tt.planID, tt.amount))
			f.env.WG.Wait()

			require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
			require.Contains(t, decodeResponse(t, rr)["error"], tt.wantError)
			f.producer.AssertNotCalled(t, "ProduceMessage", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleListPlans(t *testing.T) {
	f := newInvestmentFixture(t)

	f.planRepo.On("ListActive").Return([]models.InvestmentPlan{{
		ID:              testPlanID,
		Name:            "Starter",
		PlanType:        models.PlanTypeFixed,
		MinAmount:       decimal.NewFromInt(100),
		MaxAmount:       decimal.NewFromInt(1000),
		ExpectedReturns: decimal.RequireFromString("5"),
		IsActive:        true,
	}}, nil)

	rr := httptest.NewRecorder()
	f.handler.HandleListPlans(rr, httptest.NewRequest(http.MethodGet, "/v1/investment-plans", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	plans := decodeResponse(t, rr)["data"].([]any)
	require.Len(t, plans, 1)
	plan := plans[0].(map[string]any)
	require.Equal(t, "100.00", plan["min_amount"])
	require.Equal(t, "1000.00", plan["max_amount"])
}
