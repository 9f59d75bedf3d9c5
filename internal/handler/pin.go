package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cradoe/vestra/internal/cache"
	"github.com/cradoe/vestra/internal/context"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/helper"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/pin"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/request"
	"github.com/cradoe/vestra/internal/response"
	"github.com/cradoe/vestra/internal/smtp"
	"github.com/cradoe/vestra/internal/validator"
	"github.com/google/uuid"
)

// PinCooldown is the minimum gap between two PIN generations by one admin.
const PinCooldown = 5 * time.Second

type PinHandler struct {
	ProfileRepo  repository.ProfileRepository
	ActivityRepo repository.ActivityRepository

	Gate       *pin.Gate
	Cache      cache.Store
	ErrHandler *errHandler.ErrorRepository
	Helper     *helper.HelperRepository
	Mailer     smtp.MailerInterface
}

func NewPinHandler(handler *PinHandler) *PinHandler {
	return &PinHandler{
		ProfileRepo:  handler.ProfileRepo,
		ActivityRepo: handler.ActivityRepo,
		Gate:         handler.Gate,
		Cache:        handler.Cache,
		ErrHandler:   handler.ErrHandler,
		Helper:       handler.Helper,
		Mailer:       handler.Mailer,
	}
}

func cooldownKey(adminID string) string {
	return fmt.Sprintf("pin-cooldown:%s", adminID)
}

// HandleVerificationStatus reports whether withdrawals are unlocked for the caller.
func (h *PinHandler) HandleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	profile := context.ContextGetAuthenticatedProfile(r)

	verified, expiresAt, err := h.Gate.Status(r.Context(), profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	failures, err := h.ActivityRepo.CountConsecutiveActions(profile.ID, repository.ActionPinVerificationFailed, repository.PinActions, pin.MaxFailedAttempts)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"verified":   verified,
		"pin_status": profile.PinStatus,
		"locked":     failures >= pin.MaxFailedAttempts,
		"expires_at": nil,
	}
	if verified {
		data["expires_at"] = expiresAt
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleVerifyPin checks the caller's PIN and, when it matches, unlocks the
// withdrawal form for a limited time. Every attempt is recorded and a run of
// failures locks verification until a new PIN is issued.
func (h *PinHandler) HandleVerifyPin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Pin string `json:"pin"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	profile := context.ContextGetAuthenticatedProfile(r)
	ip := clientIP(r)

	release, ok := h.lockAttempts(w, r, profile.ID)
	if !ok {
		return
	}
	defer release()

	if !h.checkPin(w, r, profile, input.Pin) {
		return
	}

	err = h.ProfileRepo.RecordPinUse(profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	_, err = h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionPinVerified, nil, ip))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	expiresAt, err := h.Gate.Open(r.Context(), profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"verified":   true,
		"expires_at": expiresAt,
	}

	err = response.JSONOkResponse(w, data, "PIN verified successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// lockAttempts takes the caller's PIN attempt lock for the rest of the
// request, so attempts by one user run one at a time and the failure count
// read in checkPin is never stale.
func (h *PinHandler) lockAttempts(w http.ResponseWriter, r *http.Request, userID string) (release func(), ok bool) {
	acquired, err := h.Gate.Acquire(r.Context(), userID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return nil, false
	}

	if !acquired {
		w.Header().Set("Retry-After", "1")
		h.ErrHandler.TooManyRequests(w, r, "Another PIN attempt is in progress")
		return nil, false
	}

	return func() { h.Gate.Release(r.Context(), userID) }, true
}

// checkPin runs one attempt at the caller's current PIN and records a failure.
// The caller must hold the attempt lock. On any failure the response has been
// written and false is returned.
func (h *PinHandler) checkPin(w http.ResponseWriter, r *http.Request, profile *models.Profile, input string) bool {
	failures, err := h.ActivityRepo.CountConsecutiveActions(profile.ID, repository.ActionPinVerificationFailed, repository.PinActions, pin.MaxFailedAttempts)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return false
	}

	if failures >= pin.MaxFailedAttempts {
		h.ErrHandler.Forbidden(w, r, pin.ErrLocked.Error(), nil)
		return false
	}

	checkErr := pin.Check(profile, input, time.Now())

	switch {
	case checkErr == nil:
		return true
	case errors.Is(checkErr, pin.ErrInvalidFormat),
		errors.Is(checkErr, pin.ErrNotActive),
		errors.Is(checkErr, pin.ErrExpired),
		errors.Is(checkErr, pin.ErrIncorrect):
	default:
		h.ErrHandler.ServerError(w, r, checkErr)
		return false
	}

	if errors.Is(checkErr, pin.ErrExpired) {
		err = h.ProfileRepo.ExpirePin(profile.ID)
		if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
			h.ErrHandler.ServerError(w, r, err)
			return false
		}
	}

	_, err = h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionPinVerificationFailed, map[string]any{
		"reason": checkErr.Error(),
	}, clientIP(r)))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return false
	}

	if failures+1 >= pin.MaxFailedAttempts {
		h.ErrHandler.Forbidden(w, r, pin.ErrLocked.Error(), nil)
		return false
	}

	h.ErrHandler.FailedValidation(w, r, map[string]any{
		"reason":             checkErr.Error(),
		"attempts_remaining": pin.MaxFailedAttempts - failures - 1,
	})
	return false
}

// HandleChangePin replaces the caller's PIN with one of their choosing after
// checking the current one. Only an active PIN can be changed; its status and
// expiry carry over and any verified state is dropped.
func (h *PinHandler) HandleChangePin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CurrentPin string              `json:"current_pin"`
		NewPin     string              `json:"new_pin"`
		ConfirmPin string              `json:"confirm_pin"`
		Validator  validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(input.CurrentPin != "", "Current PIN is required")
	input.Validator.Check(pin.ValidFormat(input.NewPin), "PIN must be exactly 4 digits")
	input.Validator.Check(input.NewPin == input.ConfirmPin, "PINs do not match")
	input.Validator.Check(input.NewPin != input.CurrentPin, "New PIN must differ from the current PIN")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	profile := context.ContextGetAuthenticatedProfile(r)

	release, ok := h.lockAttempts(w, r, profile.ID)
	if !ok {
		return
	}
	defer release()

	if !h.checkPin(w, r, profile, input.CurrentPin) {
		return
	}

	pinHash, err := pin.Hash(input.NewPin)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = h.ProfileRepo.ChangePin(profile.ID, pinHash)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			h.ErrHandler.Forbidden(w, r, "PIN is no longer active", nil)
			return
		}
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	_, err = h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionPinChanged, nil, clientIP(r)))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = h.Gate.Close(r.Context(), profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"pin_status":     profile.PinStatus,
		"pin_expires_at": profile.PinExpiresAt.Time,
	}

	err = response.JSONOkResponse(w, data, "PIN changed successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *PinHandler) HandleListPins(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.ProfileRepo.ListWithPins()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]ProfileResponseData, len(profiles))
	for i := range profiles {
		data[i] = newProfileResponse(&profiles[i])
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleGeneratePin issues a new PIN for the user in the path, replacing any
// existing one. The plaintext PIN is returned to the admin once and emailed
// to the user.
func (h *PinHandler) HandleGeneratePin(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if uuid.Validate(userID) != nil {
		h.ErrHandler.NotFound(w, r)
		return
	}

	admin := context.ContextGetAuthenticatedProfile(r)

	acquired, err := h.Cache.SetNX(r.Context(), cooldownKey(admin.ID), "1", PinCooldown)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !acquired {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(PinCooldown.Seconds())))
		h.ErrHandler.TooManyRequests(w, r, "Please wait before generating another PIN")
		return
	}

	profile, found, err := h.ProfileRepo.GetOne(userID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	plain, err := pin.Generate()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	pinHash, err := pin.Hash(plain)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	expiresAt := pin.ExpiresAt(time.Now())

	err = h.ProfileRepo.SetPin(profile.ID, pinHash, expiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			h.ErrHandler.NotFound(w, r)
			return
		}
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	_, err = h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionPinGenerated, map[string]any{
		"admin_id":   admin.ID,
		"expires_at": expiresAt,
	}, clientIP(r)))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = h.Gate.Close(r.Context(), profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		emailData := h.Helper.NewEmailData()
		emailData["Name"] = profile.DisplayName()
		emailData["Pin"] = plain
		emailData["ExpiresAt"] = expiresAt

		return h.Mailer.Send(profile.Email, emailData, "pin-issued.tmpl")
	})

	data := map[string]any{
		"user_id":    profile.ID,
		"pin":        plain,
		"expires_at": expiresAt,
	}

	err = response.JSONCreatedResponse(w, data, "PIN generated successfully")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *PinHandler) HandleRevokePin(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if uuid.Validate(userID) != nil {
		h.ErrHandler.NotFound(w, r)
		return
	}

	admin := context.ContextGetAuthenticatedProfile(r)

	err := h.ProfileRepo.RevokePin(userID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			h.ErrHandler.NotFound(w, r)
			return
		}
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	_, err = h.ActivityRepo.Insert(repository.NewActivityLog(userID, repository.ActionPinRevoked, map[string]any{
		"admin_id": admin.ID,
	}, clientIP(r)))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = h.Gate.Close(r.Context(), userID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, nil, "PIN revoked successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleNotifyPin reminds the user that an active PIN is waiting for them.
func (h *PinHandler) HandleNotifyPin(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if uuid.Validate(userID) != nil {
		h.ErrHandler.NotFound(w, r)
		return
	}

	admin := context.ContextGetAuthenticatedProfile(r)

	profile, found, err := h.ProfileRepo.GetOne(userID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	var v validator.Validator
	v.Check(profile.PinStatus == models.PinStatusActive, "User has no active PIN")
	if v.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, v.Errors)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		emailData := h.Helper.NewEmailData()
		emailData["Name"] = profile.DisplayName()

		return h.Mailer.Send(profile.Email, emailData, "pin-notification.tmpl")
	})

	_, err = h.ActivityRepo.Insert(repository.NewActivityLog(profile.ID, repository.ActionPinSent, map[string]any{
		"admin_id": admin.ID,
	}, clientIP(r)))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, nil, "Notification sent", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
