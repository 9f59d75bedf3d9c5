package context

import (
	"context"
	"net/http"

	"github.com/cradoe/vestra/internal/models"
)

type contextKey string

const (
	authenticatedProfileContextKey = contextKey("authenticatedProfile")
	tokenContextKey                = contextKey("token")
)

func ContextSetAuthenticatedProfile(r *http.Request, profile *models.Profile) *http.Request {
	ctx := context.WithValue(r.Context(), authenticatedProfileContextKey, profile)
	return r.WithContext(ctx)
}

func ContextGetAuthenticatedProfile(r *http.Request) *models.Profile {
	profile, ok := r.Context().Value(authenticatedProfileContextKey).(*models.Profile)
	if !ok {
		return nil
	}

	return profile
}

// TokenInfo is what logout needs to put a token on the deny list.
type TokenInfo struct {
	ID     string
	Expiry int64
}

func ContextSetToken(r *http.Request, token TokenInfo) *http.Request {
	ctx := context.WithValue(r.Context(), tokenContextKey, token)
	return r.WithContext(ctx)
}

func ContextGetToken(r *http.Request) (TokenInfo, bool) {
	token, ok := r.Context().Value(tokenContextKey).(TokenInfo)
	return token, ok
}
