// Package pin issues, hashes and checks the four-digit withdrawal PIN and
// keeps the short-lived "verified" state that unlocks the withdrawal form.
package pin

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPin = 1000
	maxPin = 9999

	// MaxFailedAttempts consecutive failures lock verification until a new PIN is issued.
	MaxFailedAttempts = 5
)

var (
	ErrInvalidFormat = errors.New("invalid PIN format")
	ErrNotActive     = errors.New("PIN is not active")
	ErrExpired       = errors.New("PIN has expired")
	ErrIncorrect     = errors.New("incorrect PIN")
	ErrLocked        = errors.New("too many failed attempts, ask an administrator to issue a new PIN")
)

var hashCost = bcrypt.DefaultCost

// Generate returns a uniformly random PIN in [1000, 9999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxPin-minPin+1))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+minPin), nil
}

func Hash(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ExpiresAt is the expiry of a PIN issued at t.
func ExpiresAt(t time.Time) time.Time {
	return t.AddDate(0, 6, 0)
}

func ValidFormat(input string) bool {
	return validator.Matches(input, validator.PinRX)
}

// Check decides whether input unlocks the profile's PIN at time now. It does
// not record the attempt.
func Check(profile *models.Profile, input string, now time.Time) error {
	if !ValidFormat(input) {
		return ErrInvalidFormat
	}

	if profile.PinStatus != models.PinStatusActive {
		return ErrNotActive
	}

	if profile.PinExpiresAt.Valid && now.After(profile.PinExpiresAt.Time) {
		return ErrExpired
	}

	if !profile.PinHash.Valid || profile.PinHash.String == "" {
		return ErrIncorrect
	}

	err := bcrypt.CompareHashAndPassword([]byte(profile.PinHash.String), []byte(input))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrIncorrect
	}
	return err
}
