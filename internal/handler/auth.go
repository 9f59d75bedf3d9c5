package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cradoe/gopass"
	"github.com/cradoe/vestra/internal/cache"
	"github.com/cradoe/vestra/internal/config"
	"github.com/cradoe/vestra/internal/context"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/helper"
	"github.com/cradoe/vestra/internal/middleware"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/request"
	"github.com/cradoe/vestra/internal/response"
	"github.com/cradoe/vestra/internal/smtp"
	"github.com/cradoe/vestra/internal/validator"
	"github.com/google/uuid"
	"github.com/pascaldekloe/jwt"
)

const (
	tokenLifetime = 24 * time.Hour

	// consecutive failed sign-ins that lock the account
	loginAttemptLimit = 3
)

const accountLockedMessage = "Account has been locked. Please contact support"

type AuthHandler struct {
	ProfileRepo  repository.ProfileRepository
	ActivityRepo repository.ActivityRepository

	Cache      cache.Store
	ErrHandler *errHandler.ErrorRepository
	Helper     *helper.HelperRepository
	Mailer     smtp.MailerInterface
	Config     *config.Config
}

func NewAuthHandler(handler *AuthHandler) *AuthHandler {
	return &AuthHandler{
		ProfileRepo:  handler.ProfileRepo,
		ActivityRepo: handler.ActivityRepo,
		Cache:        handler.Cache,
		ErrHandler:   handler.ErrHandler,
		Helper:       handler.Helper,
		Mailer:       handler.Mailer,
		Config:       handler.Config,
	}
}

// HandleAuthRegister creates a plain user profile with no balance, no PIN and
// no identity verification.
func (h *AuthHandler) HandleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email     string              `json:"email"`
		Password  string              `json:"password"`
		FullName  string              `json:"full_name"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FullName = strings.TrimSpace(input.FullName)

	// password strength is reported on its own, before the other fields
	_, errs := gopass.Validate(input.Password)
	if errs != nil {
		h.ErrHandler.FailedValidation(w, r, errs)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")
	input.Validator.Check(validator.NotBlank(input.FullName), "Full name is required")
	input.Validator.Check(validator.MaxRunes(input.FullName, 120), "Full name is too long")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	_, found, err := h.ProfileRepo.GetByEmail(input.Email)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if found {
		h.ErrHandler.FailedValidation(w, r, []string{"Email is already in use"})
		return
	}

	hashedPassword, err := gopass.Hash(input.Password)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	profile := &models.Profile{
		Email:          input.Email,
		HashedPassword: hashedPassword,
	}
	profile.FullName.String, profile.FullName.Valid = input.FullName, true

	profileID, err := h.ProfileRepo.Insert(profile)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			h.ErrHandler.FailedValidation(w, r, []string{"Email is already in use"})
			return
		}
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	ip := clientIP(r)

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(repository.NewActivityLog(profileID, repository.ActionUserRegistered, map[string]any{
			"email": input.Email,
		}, ip))
		return err
	})

	h.Helper.BackgroundTask(r, func() error {
		emailData := h.Helper.NewEmailData()
		emailData["Name"] = input.FullName

		return h.Mailer.Send(input.Email, emailData, "welcome.tmpl")
	})

	data := map[string]string{
		"id":    profileID,
		"email": input.Email,
	}

	err = response.JSONCreatedResponse(w, data, "Account created successfully")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *AuthHandler) HandleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email     string              `json:"email"`
		Password  string              `json:"password"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")
	input.Validator.Check(validator.NotBlank(input.Password), "Password is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	profile, found, err := h.ProfileRepo.GetByEmail(input.Email)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.FailedValidation(w, r, []string{"Incorrect email/password"})
		return
	}

	ip := clientIP(r)

	failures, err := h.ActivityRepo.CountConsecutiveActions(profile.ID, repository.ActionUserLoginFailed, repository.LoginActions, loginAttemptLimit)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if failures >= loginAttemptLimit {
		h.ErrHandler.Forbidden(w, r, accountLockedMessage, nil)
		return
	}

	passwordMatches, err := gopass.ComparePasswordAndHash(input.Password, profile.HashedPassword)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !passwordMatches {
		// recorded before responding so the next attempt sees it
		_, err = h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionUserLoginFailed, nil, ip))
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}

		if failures+1 >= loginAttemptLimit {
			h.ErrHandler.Forbidden(w, r, accountLockedMessage, nil)
			return
		}

		h.ErrHandler.FailedValidation(w, r, []string{"Incorrect email/password"})
		return
	}

	_, err = h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionUserLogin, nil, ip))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		return h.ProfileRepo.UpdateLastLogin(profile.ID)
	})

	now := time.Now()
	expiry := now.Add(tokenLifetime)

	var claims jwt.Claims
	claims.Subject = profile.ID
	claims.ID = uuid.NewString()
	claims.Issued = jwt.NewNumericTime(now)
	claims.NotBefore = jwt.NewNumericTime(now)
	claims.Expires = jwt.NewNumericTime(expiry)

	claims.Issuer = h.Config.BaseURL
	claims.Audiences = []string{h.Config.BaseURL}

	jwtBytes, err := claims.HMACSign(jwt.HS256, []byte(h.Config.Jwt.SecretKey))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]string{
		"auth_token":   string(jwtBytes),
		"token_expiry": expiry.Format(time.RFC3339),
	}

	err = response.JSONOkResponse(w, data, "Login successful", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleAuthLogout denies the presented token for the rest of its lifetime.
func (h *AuthHandler) HandleAuthLogout(w http.ResponseWriter, r *http.Request) {
	profile := context.ContextGetAuthenticatedProfile(r)

	token, ok := context.ContextGetToken(r)
	if ok && token.ID != "" {
		ttl := time.Until(time.Unix(token.Expiry, 0))
		if token.Expiry == 0 {
			ttl = tokenLifetime
		}

		if ttl > 0 {
			err := h.Cache.Set(r.Context(), middleware.DeniedTokenKey(token.ID), "1", ttl)
			if err != nil {
				h.ErrHandler.ServerError(w, r, err)
				return
			}
		}
	}

	ip := clientIP(r)
	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionUserLogout, nil, ip))
		return err
	})

	err := response.JSONOkResponse(w, nil, "Signed out", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
