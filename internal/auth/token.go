// Package auth signs and verifies the access/refresh token pair and hashes
// account passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dom/account-backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenKind int

const (
	AccessToken TokenKind = iota + 1
	RefreshToken
)

func (k TokenKind) String() string {
	switch k {
	case AccessToken:
		return "access"
	case RefreshToken:
		return "refresh"
	default:
		return "unknown"
	}
}

var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenInvalid   = errors.New("token is invalid")
)

type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// AccountID is the subject the token was issued for.
func (c *Claims) AccountID() string {
	return c.Subject
}

type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

type TokenIssuer struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		accessTTL:     cfg.AccessTTL,
		refreshSecret: []byte(cfg.RefreshSecret),
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

func (i *TokenIssuer) IssueAccessToken(account *domain.Account) (string, error) {
	claims := i.registered(account.ID, i.accessTTL)
	return i.sign(&Claims{
		RegisteredClaims: claims,
		Username:         account.Username,
		Email:            account.Email,
		FullName:         account.FullName,
	}, i.accessSecret)
}

func (i *TokenIssuer) IssueRefreshToken(accountID string) (string, error) {
	return i.sign(&Claims{RegisteredClaims: i.registered(accountID, i.refreshTTL)}, i.refreshSecret)
}

// Verify checks signature and expiry against the secret for kind. Failures
// wrap one of the ErrToken* sentinels.
func (i *TokenIssuer) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	secret, err := i.secretFor(kind)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (i *TokenIssuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *TokenIssuer) sign(claims *Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (i *TokenIssuer) secretFor(kind TokenKind) ([]byte, error) {
	switch kind {
	case AccessToken:
		return i.accessSecret, nil
	case RefreshToken:
		return i.refreshSecret, nil
	default:
		return nil, fmt.Errorf("%w: unknown token kind %d", ErrTokenInvalid, kind)
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
