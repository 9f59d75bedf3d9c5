package app

import (
	"context"
	"net/http"
	"time"

	"github.com/cradoe/vestra/internal/cache"
	"github.com/cradoe/vestra/internal/handler"
	"github.com/cradoe/vestra/internal/middleware"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/pin"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	profileRepo := app.DB.Profile()
	activityRepo := app.DB.Activity()
	kycRepo := app.DB.KYC()

	mid := middleware.New(app.errorHandler, app.Logger, profileRepo, kycRepo, app.Cache, &app.Config)
	gate := pin.NewGate(app.Cache, app.Config.Withdrawals.PinTTL)

	loginLimiter := cache.NewLimiter(app.Cache, "login", 10, time.Minute)
	registerLimiter := cache.NewLimiter(app.Cache, "register", 5, time.Minute)
	pinLimiter := cache.NewLimiter(app.Cache, "pin-verification", 10, time.Minute)

	routeHandler := handler.NewRouteHandler(&handler.RouteHandler{
		ErrHandler: app.errorHandler,
		Pingers: map[string]func() error{
			"database": func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return app.DB.Ping(ctx)
			},
			"cache": func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return app.Cache.Ping(ctx)
			},
		},
	})

	authHandler := handler.NewAuthHandler(&handler.AuthHandler{
		ProfileRepo:  profileRepo,
		ActivityRepo: activityRepo,
		Cache:        app.Cache,
		ErrHandler:   app.errorHandler,
		Helper:       app.helper,
		Mailer:       app.Mailer,
		Config:       &app.Config,
	})

	profileHandler := handler.NewProfileHandler(&handler.ProfileHandler{
		ProfileRepo:     profileRepo,
		ActivityRepo:    activityRepo,
		InvestmentRepo:  app.DB.Investment(),
		TransactionRepo: app.DB.Transaction(),
		ErrHandler:      app.errorHandler,
		Helper:          app.helper,
	})

	pinHandler := handler.NewPinHandler(&handler.PinHandler{
		ProfileRepo:  profileRepo,
		ActivityRepo: activityRepo,
		Gate:         gate,
		Cache:        app.Cache,
		ErrHandler:   app.errorHandler,
		Helper:       app.helper,
		Mailer:       app.Mailer,
	})

	withdrawalHandler := handler.NewWithdrawalHandler(&handler.WithdrawalHandler{
		WithdrawalRepo: app.DB.Withdrawal(),
		Gate:           gate,
		Producer:       app.Kafka,
		ErrHandler:     app.errorHandler,
		Helper:         app.helper,
		Config:         &app.Config,
	})

	kycHandler := handler.NewKycHandler(&handler.KycHandler{
		KycRepo:    kycRepo,
		Uploader:   app.FileUploader,
		Producer:   app.Kafka,
		ErrHandler: app.errorHandler,
		Helper:     app.helper,
	})

	investmentHandler := handler.NewInvestmentHandler(&handler.InvestmentHandler{
		PlanRepo:       app.DB.InvestmentPlan(),
		InvestmentRepo: app.DB.Investment(),
		Producer:       app.Kafka,
		ErrHandler:     app.errorHandler,
		Helper:         app.helper,
	})

	adminHandler := handler.NewAdminHandler(&handler.AdminHandler{
		ProfileRepo:  profileRepo,
		ActivityRepo: activityRepo,
		StatsRepo:    app.DB.Stats(),
		ErrHandler:   app.errorHandler,
	})

	marketHandler := handler.NewMarketHandler(&handler.MarketHandler{
		Market:     app.Market,
		ErrHandler: app.errorHandler,
	})

	authed := mid.RequireAuthenticatedProfile
	verified := mid.RequireApprovedKYC
	admin := func(next http.HandlerFunc) http.Handler { return mid.RequireRole(models.RoleAdmin, next) }
	manager := func(next http.HandlerFunc) http.Handler { return mid.RequireRole(models.RoleManager, next) }

	mux.HandleFunc("/", routeHandler.HandleNotFound)
	mux.HandleFunc("GET /v1/health", routeHandler.HandleHealthCheck)

	// auth
	mux.Handle("POST /v1/auth/register", mid.RateLimit(registerLimiter, http.HandlerFunc(authHandler.HandleAuthRegister)))
	mux.Handle("POST /v1/auth/login", mid.RateLimit(loginLimiter, http.HandlerFunc(authHandler.HandleAuthLogin)))
	mux.Handle("POST /v1/auth/logout", authed(http.HandlerFunc(authHandler.HandleAuthLogout)))

	// profile
	mux.Handle("GET /v1/session", authed(http.HandlerFunc(profileHandler.HandleSession)))
	mux.Handle("PATCH /v1/profile", authed(http.HandlerFunc(profileHandler.HandleUpdateProfile)))
	mux.Handle("PUT /v1/profile/pin", authed(mid.RateLimit(pinLimiter, http.HandlerFunc(pinHandler.HandleChangePin))))
	mux.Handle("GET /v1/dashboard", authed(http.HandlerFunc(profileHandler.HandleDashboard)))
	mux.Handle("GET /v1/transactions", authed(http.HandlerFunc(profileHandler.HandleTransactions)))

	// investments
	mux.Handle("GET /v1/investment-plans", authed(http.HandlerFunc(investmentHandler.HandleListPlans)))
	mux.Handle("GET /v1/investments", authed(http.HandlerFunc(investmentHandler.HandleMyInvestments)))
	mux.Handle("POST /v1/investments", verified(http.HandlerFunc(investmentHandler.HandleCreateInvestment)))

	// withdrawals
	mux.Handle("GET /v1/withdrawals/pin-verification", verified(http.HandlerFunc(pinHandler.HandleVerificationStatus)))
	mux.Handle("POST /v1/withdrawals/pin-verification", verified(mid.RateLimit(pinLimiter, http.HandlerFunc(pinHandler.HandleVerifyPin))))
	mux.Handle("GET /v1/withdrawals", verified(http.HandlerFunc(withdrawalHandler.HandleMyWithdrawals)))
	mux.Handle("POST /v1/withdrawals", verified(http.HandlerFunc(withdrawalHandler.HandleCreateWithdrawal)))

	// kyc
	mux.Handle("POST /v1/kyc/submissions", authed(http.HandlerFunc(kycHandler.HandleSubmitKYC)))
	mux.Handle("GET /v1/kyc/submissions/me", authed(http.HandlerFunc(kycHandler.HandleMyKYC)))

	// market
	mux.Handle("GET /v1/market/listings", authed(http.HandlerFunc(marketHandler.HandleListings)))
	mux.Handle("GET /v1/market/price", authed(http.HandlerFunc(marketHandler.HandlePrice)))

	// back office: managers can read, admins can change
	mux.Handle("GET /v1/admin/stats", manager(adminHandler.HandleStats))
	mux.Handle("GET /v1/admin/activity", manager(adminHandler.HandleRecentActivity))
	mux.Handle("GET /v1/admin/users", manager(adminHandler.HandleListUsers))
	mux.Handle("PATCH /v1/admin/users/{id}", admin(adminHandler.HandleUpdateUser))

	mux.Handle("GET /v1/admin/pins", admin(pinHandler.HandleListPins))
	mux.Handle("POST /v1/admin/pins/{id}/generate", admin(pinHandler.HandleGeneratePin))
	mux.Handle("POST /v1/admin/pins/{id}/regenerate", admin(pinHandler.HandleGeneratePin))
	mux.Handle("POST /v1/admin/pins/{id}/revoke", admin(pinHandler.HandleRevokePin))
	mux.Handle("POST /v1/admin/pins/{id}/notify", admin(pinHandler.HandleNotifyPin))

	mux.Handle("GET /v1/admin/withdrawals", manager(withdrawalHandler.HandleListWithdrawals))
	mux.Handle("POST /v1/admin/withdrawals/{id}/approve", admin(withdrawalHandler.HandleApproveWithdrawal))
	mux.Handle("POST /v1/admin/withdrawals/{id}/reject", admin(withdrawalHandler.HandleRejectWithdrawal))

	mux.Handle("GET /v1/admin/kyc-submissions", manager(kycHandler.HandleListSubmissions))
	mux.Handle("PATCH /v1/admin/kyc-submissions/{id}", admin(kycHandler.HandleDecideSubmission))

	return mid.LogAccess(mid.RecoverPanic(mid.Authenticate(mux)))
}
