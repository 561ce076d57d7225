package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dom/account-backend/internal/auth"
	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/ratelimit"
	"github.com/dom/account-backend/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type TokenIssuer interface {
	IssueAccessToken(account *domain.Account) (string, error)
	IssueRefreshToken(accountID string) (string, error)
	Verify(token string, kind auth.TokenKind) (*auth.Claims, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// MediaStore turns a local temporary file into a durable public URL. Upload
// removes the local file on every path.
type MediaStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Delete(ctx context.Context, url string) error
}

type LoginLimiter interface {
	Check(ctx context.Context, identifier string) error
	RecordFailure(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

type AccountService struct {
	accounts  repository.AccountRepository
	tokens    TokenIssuer
	passwords PasswordHasher
	media     MediaStore
	limiter   LoginLimiter
	logger    *zap.Logger
}

// NewAccountService wires the lifecycle manager. limiter may be nil, which
// disables login throttling.
func NewAccountService(
	accounts repository.AccountRepository,
	tokens TokenIssuer,
	passwords PasswordHasher,
	media MediaStore,
	limiter LoginLimiter,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		tokens:    tokens,
		passwords: passwords,
		media:     media,
		limiter:   limiter,
		logger:    logger.Named("account"),
	}
}

type RegisterInput struct {
	Username       string
	FullName       string
	Email          string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

type UpdateProfileInput struct {
	FullName string
	Email    string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type LoginResult struct {
	Account *domain.Account
	Tokens  TokenPair
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	fullName := strings.TrimSpace(input.FullName)

	var missing []string
	for _, field := range []struct{ name, value string }{
		{"username", username},
		{"fullName", fullName},
		{"email", email},
		{"password", strings.TrimSpace(input.Password)},
	} {
		if field.value == "" {
			missing = append(missing, field.name+" is required")
		}
	}
	if len(missing) > 0 {
		return nil, domain.ValidationError("All fields are required").WithErrors(missing...)
	}
	if len(input.Password) > auth.MaxPasswordBytes {
		return nil, passwordTooLong()
	}

	_, err := s.accounts.GetByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return nil, domain.Conflict("User with same username or email already exists")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, domain.InternalError("Something went wrong while registering the user").
			WithCause(errors.Wrap(err, "lookup existing account"))
	}

	if input.AvatarPath == "" {
		return nil, domain.ValidationError("Avatar file is required")
	}

	avatarURL, err := s.media.Upload(ctx, input.AvatarPath)
	if err != nil || avatarURL == "" {
		return nil, domain.UploadError("Avatar upload failed").WithCause(err)
	}

	coverURL, err := s.media.Upload(ctx, input.CoverImagePath)
	if err != nil {
		s.logger.Warn("cover image upload failed, continuing without it", zap.Error(err))
		coverURL = ""
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		s.discardMedia(ctx, avatarURL, coverURL)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, passwordTooLong()
		}
		return nil, domain.InternalError("Something went wrong while registering the user").
			WithCause(errors.Wrap(err, "hash password"))
	}

	account := &domain.Account{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		s.discardMedia(ctx, avatarURL, coverURL)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Conflict("User with same username or email already exists")
		}
		return nil, domain.InternalError("Something went wrong while registering the user").
			WithCause(errors.Wrap(err, "create account"))
	}

	created, err := s.accounts.GetByID(ctx, account.ID)
	if err != nil {
		return nil, domain.InternalError("Something went wrong while registering the user").
			WithCause(errors.Wrap(err, "read back created account"))
	}

	s.logger.Info("account registered", zap.String("accountId", created.ID), zap.String("username", created.Username))
	return created.Sanitized(), nil
}

func (s *AccountService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" && email == "" {
		return nil, domain.ValidationError("Username or email is required")
	}

	identifier := username
	if identifier == "" {
		identifier = email
	}
	if err := s.checkLimiter(ctx, identifier); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByUsernameOrEmail(ctx, username, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.recordFailure(ctx, identifier)
		return nil, domain.NotFound("User does not exist")
	} else if err != nil {
		return nil, domain.InternalError("Something went wrong while logging in").
			WithCause(errors.Wrap(err, "lookup account"))
	}
	accountKey := accountLimiterKey(account.ID)
	if err := s.checkLimiter(ctx, accountKey); err != nil {
		return nil, err
	}

	ok, err := s.passwords.Compare(account.PasswordHash, input.Password)
	if err != nil {
		return nil, domain.InternalError("Something went wrong while logging in").
			WithCause(errors.Wrap(err, "compare password"))
	}
	if !ok {
		s.recordFailure(ctx, identifier, accountKey)
		return nil, domain.Unauthorized("Invalid user credentials")
	}

	tokens, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.SetRefreshToken(ctx, account.ID, tokens.RefreshToken); err != nil {
		return nil, domain.InternalError("Something went wrong while generating tokens").
			WithCause(errors.Wrap(err, "store refresh token"))
	}

	s.resetLimiter(ctx, accountKey, account.Username, account.Email)
	s.logger.Info("account logged in", zap.String("accountId", account.ID))

	return &LoginResult{Account: account.Sanitized(), Tokens: *tokens}, nil
}

// Logout clears the stored refresh token. It succeeds for accounts that are
// already logged out or no longer exist.
func (s *AccountService) Logout(ctx context.Context, accountID string) error {
	err := s.accounts.SetRefreshToken(ctx, accountID, "")
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.InternalError("Something went wrong while logging out").
			WithCause(errors.Wrap(err, "clear refresh token"))
	}
	return nil
}

// RefreshSession exchanges a refresh token for a new pair. The presented
// token must equal the one currently stored for the account, so each refresh
// token can be used once.
func (s *AccountService) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, domain.Unauthorized("Unauthorized request")
	}

	claims, err := s.tokens.Verify(refreshToken, auth.RefreshToken)
	if err != nil {
		s.logger.Debug("refresh token rejected", zap.Error(err))
		return nil, domain.Unauthorized(refreshFailureMessage(err)).WithCause(err)
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Unauthorized("Invalid refresh token")
	} else if err != nil {
		return nil, domain.InternalError("Something went wrong while refreshing the session").
			WithCause(errors.Wrap(err, "lookup account"))
	}

	if account.RefreshToken != refreshToken {
		return nil, domain.Unauthorized("Refresh token is expired or used")
	}

	tokens, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}

	swapped, err := s.accounts.RotateRefreshToken(ctx, account.ID, refreshToken, tokens.RefreshToken)
	if err != nil {
		return nil, domain.InternalError("Something went wrong while generating tokens").
			WithCause(errors.Wrap(err, "rotate refresh token"))
	}
	if !swapped {
		return nil, domain.Unauthorized("Refresh token is expired or used")
	}

	return tokens, nil
}

// ChangePassword replaces the password hash. The stored refresh token is kept,
// so sessions opened before the change stay valid.
func (s *AccountService) ChangePassword(ctx context.Context, accountID string, input ChangePasswordInput) error {
	if input.NewPassword == "" {
		return domain.ValidationError("New password is required")
	}
	if input.NewPassword != input.ConfirmPassword {
		return domain.ValidationError("New password and confirm password do not match")
	}
	if len(input.NewPassword) > auth.MaxPasswordBytes {
		return passwordTooLong()
	}

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	ok, err := s.passwords.Compare(account.PasswordHash, input.OldPassword)
	if err != nil {
		return domain.InternalError("Something went wrong while changing the password").
			WithCause(errors.Wrap(err, "compare password"))
	}
	if !ok {
		return domain.ValidationError("Invalid old password")
	}

	hash, err := s.passwords.Hash(input.NewPassword)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return passwordTooLong()
	}
	if err != nil {
		return domain.InternalError("Something went wrong while changing the password").
			WithCause(errors.Wrap(err, "hash password"))
	}
	if _, err := s.accounts.Update(ctx, accountID, domain.AccountPatch{PasswordHash: &hash}); err != nil {
		return s.updateFailure(err)
	}
	return nil
}

func (s *AccountService) GetCurrentAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.Sanitized(), nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*domain.Account, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if fullName == "" || email == "" {
		return nil, domain.ValidationError("All fields are required")
	}

	owner, err := s.accounts.GetByUsernameOrEmail(ctx, "", email)
	switch {
	case err == nil && owner.ID != accountID:
		return nil, domain.Conflict("Email is already in use")
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, domain.InternalError("Something went wrong while updating the account").
			WithCause(errors.Wrap(err, "lookup email owner"))
	}

	updated, err := s.accounts.Update(ctx, accountID, domain.AccountPatch{FullName: &fullName, Email: &email})
	if err != nil {
		return nil, s.updateFailure(err)
	}
	return updated.Sanitized(), nil
}

func (s *AccountService) UpdateAvatar(ctx context.Context, accountID, avatarPath string) (*domain.Account, error) {
	if avatarPath == "" {
		return nil, domain.ValidationError("Avatar file is missing")
	}
	return s.replaceMedia(ctx, accountID, avatarPath, "avatar",
		func(a *domain.Account) string { return a.AvatarURL },
		func(url string) domain.AccountPatch { return domain.AccountPatch{AvatarURL: &url} },
	)
}

func (s *AccountService) UpdateCoverImage(ctx context.Context, accountID, coverImagePath string) (*domain.Account, error) {
	if coverImagePath == "" {
		return nil, domain.ValidationError("Cover image file is missing")
	}
	return s.replaceMedia(ctx, accountID, coverImagePath, "cover image",
		func(a *domain.Account) string { return a.CoverImageURL },
		func(url string) domain.AccountPatch { return domain.AccountPatch{CoverImageURL: &url} },
	)
}

// ValidateAccessToken returns the claims of a valid access token.
func (s *AccountService) ValidateAccessToken(token string) (*auth.Claims, error) {
	if token == "" {
		return nil, domain.Unauthorized("Unauthorized request")
	}
	claims, err := s.tokens.Verify(token, auth.AccessToken)
	if err != nil {
		return nil, domain.Unauthorized("Invalid access token").WithCause(err)
	}
	return claims, nil
}

// replaceMedia uploads the new file before touching the account, then removes
// the object it replaced.
func (s *AccountService) replaceMedia(
	ctx context.Context,
	accountID, path, label string,
	current func(*domain.Account) string,
	patch func(url string) domain.AccountPatch,
) (*domain.Account, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	url, err := s.media.Upload(ctx, path)
	if err != nil || url == "" {
		return nil, domain.UploadError("Error while uploading " + label).WithCause(err)
	}

	updated, err := s.accounts.Update(ctx, accountID, patch(url))
	if err != nil {
		s.discardMedia(ctx, url)
		return nil, s.updateFailure(err)
	}

	if previous := current(account); previous != "" && previous != url {
		s.discardMedia(ctx, previous)
	}
	return updated.Sanitized(), nil
}

func (s *AccountService) issueTokens(account *domain.Account) (*TokenPair, error) {
	accessToken, err := s.tokens.IssueAccessToken(account)
	if err != nil {
		return nil, domain.InternalError("Something went wrong while generating tokens").
			WithCause(errors.Wrap(err, "issue access token"))
	}
	refreshToken, err := s.tokens.IssueRefreshToken(account.ID)
	if err != nil {
		return nil, domain.InternalError("Something went wrong while generating tokens").
			WithCause(errors.Wrap(err, "issue refresh token"))
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *AccountService) getAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound("User does not exist")
	} else if err != nil {
		return nil, domain.InternalError("Something went wrong").WithCause(errors.Wrap(err, "lookup account"))
	}
	return account, nil
}

func (s *AccountService) updateFailure(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.NotFound("User does not exist")
	case errors.Is(err, repository.ErrDuplicate):
		return domain.Conflict("Email is already in use")
	default:
		return domain.InternalError("Something went wrong while updating the account").
			WithCause(errors.Wrap(err, "update account"))
	}
}

func (s *AccountService) discardMedia(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := s.media.Delete(ctx, url); err != nil {
			s.logger.Warn("delete media failed", zap.String("url", url), zap.Error(err))
		}
	}
}

func (s *AccountService) checkLimiter(ctx context.Context, identifier string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(ctx, identifier)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrLimited):
		return domain.TooManyRequests("Too many failed login attempts, try again later")
	default:
		s.logger.Warn("login limiter unavailable", zap.Error(err))
		return nil
	}
}

func (s *AccountService) recordFailure(ctx context.Context, keys ...string) {
	if s.limiter == nil {
		return
	}
	for _, key := range keys {
		if err := s.limiter.RecordFailure(ctx, key); err != nil {
			s.logger.Warn("record login failure", zap.Error(err))
		}
	}
}

func (s *AccountService) resetLimiter(ctx context.Context, keys ...string) {
	if s.limiter == nil {
		return
	}
	for _, key := range keys {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.Warn("reset login failures", zap.Error(err))
		}
	}
}

// accountLimiterKey counts failures per account, whichever identifier the
// client logged in with.
func accountLimiterKey(accountID string) string {
	return "account:" + accountID
}

func passwordTooLong() *domain.AppError {
	return domain.ValidationError(fmt.Sprintf("Password must be at most %d bytes", auth.MaxPasswordBytes))
}

func refreshFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Refresh token is expired"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "Refresh token is malformed"
	case errors.Is(err, auth.ErrTokenSignature):
		return "Refresh token signature is invalid"
	default:
		return "Invalid refresh token"
	}
}
