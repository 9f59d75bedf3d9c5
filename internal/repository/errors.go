package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrDuplicateEmail      = errors.New("a user with this email address already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotPending          = errors.New("record has already been processed")
	ErrAmountOutOfRange    = errors.New("amount is outside the plan limits")
	ErrPlanInactive        = errors.New("investment plan is not active")
	ErrKycAlreadySubmitted = errors.New("a KYC submission is already pending or approved")
	ErrNegativeBalance     = errors.New("balance cannot be negative")
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
