package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dom/account-backend/internal/api/middleware"
	"github.com/dom/account-backend/internal/api/response"
	"github.com/dom/account-backend/internal/config"
	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/service"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts *service.AccountService
	cfg      *config.Config
	logger   *zap.Logger
}

func NewAccountHandler(accounts *service.AccountService, cfg *config.Config, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, cfg: cfg, logger: logger.Named("http")}
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type LoginResponse struct {
	User         *domain.Account `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.cfg.MaxUploadBytes); err != nil {
		h.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads := &uploadSet{dir: h.cfg.UploadDir}
	defer uploads.cleanup()

	avatarPath, err := uploads.save(r, "avatar")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	coverPath, err := uploads.save(r, "coverImage")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username:       r.FormValue("username"),
		FullName:       r.FormValue("fullName"),
		Email:          r.FormValue("email"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, http.StatusCreated, account, "User registered successfully")
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, domain.ValidationError("Invalid request body").WithCause(err))
		return
	}

	result, err := h.accounts.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookies(w, result.Tokens)
	response.Success(w, http.StatusOK, LoginResponse{
		User:         result.Account,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		h.fail(w, r, domain.Unauthorized("Unauthorized request"))
		return
	}

	if err := h.accounts.Logout(r.Context(), accountID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	response.Success(w, http.StatusOK, struct{}{}, "User logged out")
}

// RefreshToken reads the refresh token from its cookie, falling back to the
// JSON body for clients that do not keep cookies.
func (h *AccountHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.fail(w, r, domain.ValidationError("Invalid request body").WithCause(err))
			return
		}
		token = req.RefreshToken
	}

	tokens, err := h.accounts.RefreshSession(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookies(w, *tokens)
	response.Success(w, http.StatusOK, TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		h.fail(w, r, domain.Unauthorized("Unauthorized request"))
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, domain.ValidationError("Invalid request body").WithCause(err))
		return
	}

	err := h.accounts.ChangePassword(r.Context(), accountID, service.ChangePasswordInput{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		h.fail(w, r, domain.Unauthorized("Unauthorized request"))
		return
	}

	account, err := h.accounts.GetCurrentAccount(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, account, "Current user fetched successfully")
}

func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		h.fail(w, r, domain.Unauthorized("Unauthorized request"))
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, domain.ValidationError("Invalid request body").WithCause(err))
		return
	}

	account, err := h.accounts.UpdateProfile(r.Context(), accountID, service.UpdateProfileInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, account, "Account details updated successfully")
}

func (h *AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", h.accounts.UpdateAvatar, "Avatar updated successfully")
}

func (h *AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", h.accounts.UpdateCoverImage, "Cover image updated successfully")
}

func (h *AccountHandler) replaceImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(ctx context.Context, accountID, path string) (*domain.Account, error),
	message string,
) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		h.fail(w, r, domain.Unauthorized("Unauthorized request"))
		return
	}

	if err := parseMultipart(w, r, h.cfg.MaxUploadBytes); err != nil {
		h.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads := &uploadSet{dir: h.cfg.UploadDir}
	defer uploads.cleanup()

	path, err := uploads.save(r, field)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	account, err := update(r.Context(), accountID, path)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, account, message)
}

func (h *AccountHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	response.Error(w, r, h.logger, err)
}
