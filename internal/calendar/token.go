package calendar

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

// The adapter reports failures with the sentinels the booking side already
// understands, so callers can match either name.
var (
	ErrAuthExpired      = appointment.ErrCalendarAuthExpired
	ErrUnavailable      = appointment.ErrCalendarUnavailable
	ErrNotAuthenticated = appointment.ErrCalendarNotConnected

	ErrTokenNotFound = errors.New("calendar token not found")
)

// Token is the persisted OAuth credential of the practice calendar.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	// CreatedAt is when staff granted access; refreshes keep it.
	CreatedAt time.Time `json:"created_at"`
}

func tokenFromOAuth(t *oauth2.Token) Token {
	return Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

func (t Token) oauth() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// expiresWithin reports whether the access token is missing or expires
// before now+buffer.
func (t Token) expiresWithin(now time.Time, buffer time.Duration) bool {
	if t.AccessToken == "" {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Add(buffer).Before(t.Expiry)
}

// TokenStore keeps exactly one token. Get returns ErrTokenNotFound when
// nothing is stored.
type TokenStore interface {
	Get(ctx context.Context) (*Token, error)
	Set(ctx context.Context, t Token) error
	Delete(ctx context.Context) error
}
