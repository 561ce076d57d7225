package handlers

import (
	"net/http"
	"time"

	"github.com/dom/account-backend/internal/api/middleware"
	"github.com/dom/account-backend/internal/service"
)

const refreshTokenCookie = "refreshToken"

func (h *AccountHandler) setSessionCookies(w http.ResponseWriter, tokens service.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, h.cfg.AccessTokenTTL))
	http.SetCookie(w, h.cookie(refreshTokenCookie, tokens.RefreshToken, h.cfg.RefreshTokenTTL))
}

func (h *AccountHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, refreshTokenCookie} {
		cookie := h.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func (h *AccountHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
