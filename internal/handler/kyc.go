package handler

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cradoe/vestra/internal/context"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/file"
	"github.com/cradoe/vestra/internal/helper"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/request"
	"github.com/cradoe/vestra/internal/response"
	"github.com/cradoe/vestra/internal/stream"
	"github.com/cradoe/vestra/internal/validator"
	"github.com/google/uuid"
)

var (
	ssnItinRX = regexp.MustCompile(`^[0-9]{3}-?[0-9]{2}-?[0-9]{4}$`)
	agiRX     = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)
)

var filingStatuses = []string{"single", "married_joint", "married_separate", "head_of_household", "qualifying_widow"}

// minimum age to hold an account
const minimumAge = 18

// the three documents plus the text fields
const maxSubmissionSize = 3*file.MaxDocumentSize + 1<<20

// kycUploadTimeout replaces the server-wide read and write deadlines for a
// submission, which has to stream up to three documents in and out again.
const kycUploadTimeout = 2 * time.Minute

type KycHandler struct {
	KycRepo repository.KycRepository

	Uploader   file.Uploader
	Producer   stream.Producer
	ErrHandler *errHandler.ErrorRepository
	Helper     *helper.HelperRepository
}

func NewKycHandler(handler *KycHandler) *KycHandler {
	return &KycHandler{
		KycRepo:    handler.KycRepo,
		Uploader:   handler.Uploader,
		Producer:   handler.Producer,
		ErrHandler: handler.ErrHandler,
		Helper:     handler.Helper,
	}
}

var errKycAlreadySubmitted = errors.New("you already have a submission under review or approved")

type document struct {
	field    string
	required bool
	url      string
}

// HandleSubmitKYC accepts the identity form as multipart data. Documents are
// stored first and their URLs saved with the submission. A caller with a
// submission under review or approved is turned away before anything is read
// or stored.
func (h *KycHandler) HandleSubmitKYC(w http.ResponseWriter, r *http.Request) {
	profile := context.ContextGetAuthenticatedProfile(r)

	latest, found, err := h.KycRepo.LatestByUser(profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if found && (latest.Status == models.KycStatusPending || latest.Status == models.KycStatusApproved) {
		h.ErrHandler.Conflict(w, r, errKycAlreadySubmitted)
		return
	}

	err = extendDeadlines(w, kycUploadTimeout)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionSize)

	err = r.ParseMultipartForm(1 << 20)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			h.ErrHandler.FailedValidation(w, r, []string{file.ErrTooLarge.Error()})
			return
		}
		h.ErrHandler.BadRequest(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var v validator.Validator

	legalName := strings.TrimSpace(r.FormValue("legal_name"))
	ssnItin := strings.TrimSpace(r.FormValue("ssn_itin"))
	dobValue := strings.TrimSpace(r.FormValue("dob"))
	currentAddress := strings.TrimSpace(r.FormValue("current_address"))
	previousAddress := strings.TrimSpace(r.FormValue("previous_address"))
	filingStatus := strings.TrimSpace(r.FormValue("filing_status"))
	agi := strings.TrimSpace(r.FormValue("agi"))

	v.Check(validator.NotBlank(legalName), "Legal name is required")
	v.Check(validator.MaxRunes(legalName, 120), "Legal name is too long")
	v.Check(validator.Matches(ssnItin, ssnItinRX), "SSN/ITIN must be 9 digits")
	v.Check(validator.NotBlank(currentAddress), "Current address is required")
	v.Check(validator.MaxRunes(currentAddress, 300), "Current address is too long")
	v.Check(validator.MaxRunes(previousAddress, 300), "Previous address is too long")

	dob, dobErr := time.Parse(time.DateOnly, dobValue)
	v.Check(dobErr == nil, "Date of birth must be in YYYY-MM-DD format")
	if dobErr == nil {
		v.Check(!dob.AddDate(minimumAge, 0, 0).After(time.Now()), fmt.Sprintf("You must be at least %d years old", minimumAge))
	}

	if filingStatus != "" {
		v.Check(validator.PermittedValue(filingStatus, filingStatuses...), "Unknown filing status")
	}
	if agi != "" {
		v.Check(validator.Matches(agi, agiRX), "AGI must be a number")
	}

	if v.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, v.Errors)
		return
	}

	documents := []*document{
		{field: "id_front", required: true},
		{field: "id_back", required: true},
		{field: "tax_document"},
	}

	for _, doc := range documents {
		f, header, err := r.FormFile(doc.field)
		if errors.Is(err, http.ErrMissingFile) {
			if doc.required {
				v.AddError(fmt.Sprintf("%s is required", doc.field))
			}
			continue
		}
		if err != nil {
			h.ErrHandler.BadRequest(w, r, err)
			return
		}

		url, err := h.store(r, profile.ID, doc.field, f, header)
		f.Close()

		if errors.Is(err, file.ErrTooLarge) || errors.Is(err, file.ErrUnsupportedType) {
			v.AddError(fmt.Sprintf("%s: %s", doc.field, err.Error()))
			continue
		}
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}

		doc.url = url
	}

	if v.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, v.Errors)
		return
	}

	submission := &models.KYCSubmission{
		UserID:          profile.ID,
		LegalName:       legalName,
		SsnItin:         strings.ReplaceAll(ssnItin, "-", ""),
		Dob:             dob,
		CurrentAddress:  currentAddress,
		PreviousAddress: sql.NullString{String: previousAddress, Valid: previousAddress != ""},
		FilingStatus:    sql.NullString{String: filingStatus, Valid: filingStatus != ""},
		Agi:             sql.NullString{String: agi, Valid: agi != ""},
		IDFrontURL:      documents[0].url,
		IDBackURL:       documents[1].url,
		TaxDocumentURL:  sql.NullString{String: documents[2].url, Valid: documents[2].url != ""},
	}

	err = h.KycRepo.Submit(submission, clientIP(r))
	if err != nil {
		if errors.Is(err, repository.ErrKycAlreadySubmitted) {
			h.ErrHandler.Conflict(w, r, errKycAlreadySubmitted)
			return
		}
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONCreatedResponse(w, newKYCSubmissionResponse(submission), "Verification submitted for review")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// extendDeadlines moves the connection's read and write deadlines to d from
// now. Writers that cannot set deadlines are left alone.
func extendDeadlines(w http.ResponseWriter, d time.Duration) error {
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(d)

	err := rc.SetReadDeadline(deadline)
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}

	err = rc.SetWriteDeadline(deadline)
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}

	return nil
}

// store sniffs and uploads one document, returning its public URL.
func (h *KycHandler) store(r *http.Request, userID, field string, f multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > file.MaxDocumentSize {
		return "", file.ErrTooLarge
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]

	contentType, ext, err := file.DetectDocumentType(head)
	if err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("kyc/%s/%s-%s%s", userID, field, uuid.NewString(), ext)
	body := io.MultiReader(bytes.NewReader(head), f)

	return h.Uploader.Upload(r.Context(), objectName, body, header.Size, contentType)
}

func (h *KycHandler) HandleMyKYC(w http.ResponseWriter, r *http.Request) {
	profile := context.ContextGetAuthenticatedProfile(r)

	submission, found, err := h.KycRepo.LatestByUser(profile.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		data := map[string]string{"kyc_status": models.KycStatusNone}
		err = response.JSONOkResponse(w, data, "No submission found", nil)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	err = response.JSONOkResponse(w, newKYCSubmissionResponse(submission), "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *KycHandler) HandleListSubmissions(w http.ResponseWriter, r *http.Request) {
	queryValues := retrieveUrlQueryValues(r)

	if queryValues.Status != "" && !validator.PermittedValue(queryValues.Status,
		models.KycStatusPending, models.KycStatusApproved, models.KycStatusRejected) {
		h.ErrHandler.FailedValidation(w, r, []string{"Unknown submission status"})
		return
	}

	submissions, err := h.KycRepo.List(queryValues.Status)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]KYCSubmissionResponseData, len(submissions))
	for i := range submissions {
		data[i] = newKYCSubmissionResponse(&submissions[i])
	}

	err = response.JSONOkResponse(w, data, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleDecideSubmission approves or rejects a pending submission and mirrors
// the outcome onto the owner's profile.
func (h *KycHandler) HandleDecideSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("id")
	if uuid.Validate(submissionID) != nil {
		h.ErrHandler.NotFound(w, r)
		return
	}

	var input struct {
		Status    string              `json:"status"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.PermittedValue(input.Status, models.KycStatusApproved, models.KycStatusRejected),
		"Status must be approved or rejected")
	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	reviewer := context.ContextGetAuthenticatedProfile(r)

	submission, err := h.KycRepo.Decide(submissionID, repository.KycDecision{
		ReviewerID: reviewer.ID,
		Status:     input.Status,
		IP:         clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.ErrHandler.NotFound(w, r)
		case errors.Is(err, repository.ErrNotPending):
			h.ErrHandler.Conflict(w, r, errors.New("Submission has already been reviewed"))
		default:
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		return stream.Publish(h.Producer, stream.TopicKYCDecided, stream.KYCDecidedEvent{
			SubmissionID: submission.ID,
			UserID:       submission.UserID,
			Status:       submission.Status,
		})
	})

	err = response.JSONOkResponse(w, newKYCSubmissionResponse(submission), "Submission "+submission.Status, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
