package appointment

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid appointment token")

type publicClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenSigner issues the token patients use to view or cancel their
// appointment without an account. The token carries no time claims, so it
// is a pure function of (id, email, secret): changing the email breaks it.
type TokenSigner struct {
	secret []byte
}

func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

func (s *TokenSigner) Generate(a *Appointment) (string, error) {
	claims := publicClaims{
		Email:            a.Email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: a.ID.String()},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign appointment token: %w", err)
	}
	return token, nil
}

func (s *TokenSigner) Verify(a *Appointment, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	claims := publicClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	if claims.Subject != a.ID.String() || claims.Email != a.Email {
		return ErrInvalidToken
	}
	return nil
}

// Links builds the public view and cancel URLs embedded in patient emails.
type Links struct {
	baseURL string
	signer  *TokenSigner
}

func NewLinks(baseURL string, signer *TokenSigner) *Links {
	return &Links{baseURL: baseURL, signer: signer}
}

func (l *Links) ViewURL(a *Appointment) (string, error) {
	token, err := l.signer.Generate(a)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/appointment/%s/%s", l.baseURL, a.ID, token), nil
}

func (l *Links) CancelURL(a *Appointment) (string, error) {
	view, err := l.ViewURL(a)
	if err != nil {
		return "", err
	}
	return view + "/cancel", nil
}
