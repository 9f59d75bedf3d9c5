package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cradoe/vestra/internal/cache"
	"github.com/cradoe/vestra/internal/config"
	"github.com/cradoe/vestra/internal/context"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/response"

	"github.com/pascaldekloe/jwt"
	"github.com/tomasen/realip"
)

type Middleware struct {
	errHandler  *errHandler.ErrorRepository
	logger      *slog.Logger
	ProfileRepo repository.ProfileRepository
	KycRepo     repository.KycRepository
	Cache       cache.Store
	config      *config.Config
}

func New(errHandler *errHandler.ErrorRepository, logger *slog.Logger, profileRepo repository.ProfileRepository, kycRepo repository.KycRepository, store cache.Store, config *config.Config) *Middleware {
	return &Middleware{
		errHandler:  errHandler,
		logger:      logger,
		ProfileRepo: profileRepo,
		KycRepo:     kycRepo,
		Cache:       store,
		config:      config,
	}
}

// DeniedTokenKey is the cache key that marks a signed-out token.
func DeniedTokenKey(tokenID string) string {
	return "jwt-deny:" + tokenID
}

func (mid *Middleware) RecoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err != nil {
				mid.errHandler.ServerError(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (mid *Middleware) LogAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw := response.NewMetricsResponseWriter(w)
		next.ServeHTTP(mw, r)

		var (
			ip     = realip.FromRequest(r)
			method = r.Method
			url    = r.URL.String()
			proto  = r.Proto
		)

		userAttrs := slog.Group("user", "ip", ip)
		requestAttrs := slog.Group("request", "method", method, "url", url, "proto", proto)
		responseAttrs := slog.Group("response", "status", mw.StatusCode, "size", mw.BytesCount)

		mid.logger.Info("access", userAttrs, requestAttrs, responseAttrs)
	})
}

// Authenticate resolves a bearer token into the current profile. Requests
// without an Authorization header pass through anonymously; a bad, expired or
// signed-out token is rejected rather than treated as anonymous.
func (mid *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authorizationHeader := r.Header.Get("Authorization")
		if authorizationHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		headerParts := strings.Split(authorizationHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			mid.errHandler.InvalidAuthenticationToken(w, r)
			return
		}

		claims, err := jwt.HMACCheck([]byte(headerParts[1]), []byte(mid.config.Jwt.SecretKey))
		if err != nil {
			mid.errHandler.InvalidAuthenticationToken(w, r)
			return
		}

		if !claims.Valid(time.Now()) {
			mid.errHandler.InvalidAuthenticationToken(w, r)
			return
		}

		if claims.Issuer != mid.config.BaseURL {
			mid.errHandler.InvalidAuthenticationToken(w, r)
			return
		}

		if !claims.AcceptAudience(mid.config.BaseURL) {
			mid.errHandler.InvalidAuthenticationToken(w, r)
			return
		}

		if claims.ID != "" {
			denied, err := mid.Cache.Exists(r.Context(), DeniedTokenKey(claims.ID))
			if err != nil {
				mid.errHandler.ServerError(w, r, err)
				return
			}
			if denied {
				mid.errHandler.InvalidAuthenticationToken(w, r)
				return
			}
		}

		profile, found, err := mid.ProfileRepo.GetOne(claims.Subject)
		if err != nil {
			mid.errHandler.ServerError(w, r, err)
			return
		}

		if !found {
			mid.errHandler.InvalidAuthenticationToken(w, r)
			return
		}

		var expiry int64
		if claims.Expires != nil {
			expiry = claims.Expires.Time().Unix()
		}

		r = context.ContextSetAuthenticatedProfile(r, profile)
		r = context.ContextSetToken(r, context.TokenInfo{ID: claims.ID, Expiry: expiry})

		next.ServeHTTP(w, r)
	})
}

func (mid *Middleware) RequireAuthenticatedProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if context.ContextGetAuthenticatedProfile(r) == nil {
			mid.errHandler.AuthenticationRequired(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireRole admits profiles that satisfy required; admins satisfy every role.
func (mid *Middleware) RequireRole(required string, next http.Handler) http.Handler {
	return mid.RequireAuthenticatedProfile(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := context.ContextGetAuthenticatedProfile(r)

		if !profile.HasRole(required) {
			mid.errHandler.Forbidden(w, r, "You don't have admin privileges to access this resource", nil)
			return
		}

		next.ServeHTTP(w, r)
	}))
}

// RequireApprovedKYC admits profiles whose latest KYC submission is approved.
func (mid *Middleware) RequireApprovedKYC(next http.Handler) http.Handler {
	return mid.RequireAuthenticatedProfile(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := context.ContextGetAuthenticatedProfile(r)

		submission, found, err := mid.KycRepo.LatestByUser(profile.ID)
		if err != nil {
			mid.errHandler.ServerError(w, r, err)
			return
		}

		if !found || submission.Status != models.KycStatusApproved {
			status := models.KycStatusNone
			if found {
				status = submission.Status
			}

			data := map[string]string{
				"redirect":   "/verify-kyc",
				"kyc_status": status,
			}
			mid.errHandler.Forbidden(w, r, "Identity verification is required to access this resource", data)
			return
		}

		next.ServeHTTP(w, r)
	}))
}

// RateLimit counts requests per authenticated profile, or per client IP for
// anonymous requests. When the counter store is unavailable requests are let
// through and the failure is logged.
func (mid *Middleware) RateLimit(limiter *cache.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := realip.FromRequest(r)
		if profile := context.ContextGetAuthenticatedProfile(r); profile != nil {
			key = profile.ID
		}

		allowed, err := limiter.Allow(r.Context(), key)
		if err != nil {
			mid.logger.Warn("rate limiter unavailable", "error", err.Error(), "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
			mid.errHandler.TooManyRequests(w, r, "")
			return
		}

		next.ServeHTTP(w, r)
	})
}
