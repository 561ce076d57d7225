package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dom/account-backend/internal/api/response"
	"github.com/dom/account-backend/internal/auth"
	"go.uber.org/zap"
)

type contextKey string

const (
	AccountIDKey contextKey = "accountID"

	AccessTokenCookie = "accessToken"
)

type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid access token. The accessToken cookie
// and the "Authorization: Bearer" header are both tried, so a stale cookie
// does not shadow a valid header.
func Auth(validator TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := validate(validator, accessTokens(r))
			if err != nil {
				response.Error(w, r, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), AccountIDKey, claims.AccountID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetAccountID(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(AccountIDKey).(string)
	return accountID, ok && accountID != ""
}

func validate(validator TokenValidator, tokens []string) (*auth.Claims, error) {
	if len(tokens) == 0 {
		return validator.ValidateAccessToken("")
	}
	var firstErr error
	for _, token := range tokens {
		claims, err := validator.ValidateAccessToken(token)
		if err == nil {
			return claims, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func accessTokens(r *http.Request) []string {
	var tokens []string
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
