package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dom/account-backend/internal/config"
	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/service"
	"github.com/dom/account-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireAppError(t *testing.T, err error, status int) *domain.AppError {
	t.Helper()

	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, appErr.Status, "unexpected status for %v", err)
	return appErr
}

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      service.RegisterInput
		withAvatar bool
		withCover  bool
		setup      func(t *testing.T, env *testutil.TestEnv)
		wantStatus int
		check      func(t *testing.T, env *testutil.TestEnv, account *domain.Account)
	}{
		{
			name: "successful registration",
			input: service.RegisterInput{
				Username: "ana",
				FullName: "Ana",
				Email:    "ana@x.com",
				Password: "p1",
			},
			withAvatar: true,
			check: func(t *testing.T, env *testutil.TestEnv, account *domain.Account) {
				assert.NotEmpty(t, account.ID)
				assert.Equal(t, "ana", account.Username)
				assert.Equal(t, "ana@x.com", account.Email)
				assert.NotEmpty(t, account.AvatarURL)
				assert.Empty(t, account.CoverImageURL)
				assert.Empty(t, account.PasswordHash)
				assert.Empty(t, account.RefreshToken)
				assert.Equal(t, 1, env.Media.Attempts())

				payload, err := json.Marshal(account)
				require.NoError(t, err)
				testutil.AssertNoCredentials(t, payload)
			},
		},
		{
			name: "normalizes username and email",
			input: service.RegisterInput{
				Username: "  Ana ",
				FullName: "Ana",
				Email:    "Ana@X.com",
				Password: "p1",
			},
			withAvatar: true,
			check: func(t *testing.T, env *testutil.TestEnv, account *domain.Account) {
				assert.Equal(t, "ana", account.Username)
				assert.Equal(t, "ana@x.com", account.Email)
			},
		},
		{
			name: "stores cover image when provided",
			input: service.RegisterInput{
				Username: "ana",
				FullName: "Ana",
				Email:    "ana@x.com",
				Password: "p1",
			},
			withAvatar: true,
			withCover:  true,
			check: func(t *testing.T, env *testutil.TestEnv, account *domain.Account) {
				assert.NotEmpty(t, account.CoverImageURL)
				assert.NotEqual(t, account.AvatarURL, account.CoverImageURL)
				assert.Equal(t, 2, env.Media.Attempts())
			},
		},
		{
			name: "blank field",
			input: service.RegisterInput{
				Username: "ana",
				FullName: "   ",
				Email:    "ana@x.com",
				Password: "p1",
			},
			withAvatar: true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "password longer than bcrypt accepts",
			input: service.RegisterInput{
				Username: "ana",
				FullName: "Ana",
				Email:    "ana@x.com",
				Password: strings.Repeat("p", 73),
			},
			withAvatar: true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate username",
			input: service.RegisterInput{
				Username: "taken",
				FullName: "Ana",
				Email:    "fresh@x.com",
				Password: "p1",
			},
			withAvatar: true,
			setup: func(t *testing.T, env *testutil.TestEnv) {
				testutil.NewAccountBuilder().WithUsername("taken").Build(t, env.Repos.Account)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "duplicate email differing in case",
			input: service.RegisterInput{
				Username: "fresh",
				FullName: "Ana",
				Email:    "Taken@X.com",
				Password: "p1",
			},
			withAvatar: true,
			setup: func(t *testing.T, env *testutil.TestEnv) {
				testutil.NewAccountBuilder().WithEmail("taken@x.com").Build(t, env.Repos.Account)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "missing avatar",
			input: service.RegisterInput{
				Username: "ana",
				FullName: "Ana",
				Email:    "ana@x.com",
				Password: "p1",
			},
			withCover:  true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "avatar upload fails",
			input: service.RegisterInput{
				Username: "ana",
				FullName: "Ana",
				Email:    "ana@x.com",
				Password: "p1",
			},
			withAvatar: true,
			setup: func(t *testing.T, env *testutil.TestEnv) {
				env.Media.FailUploads(true)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "media store returns no url",
			input: service.RegisterInput{
				Username: "ana",
				FullName: "Ana",
				Email:    "ana@x.com",
				Password: "p1",
			},
			withAvatar: true,
			setup: func(t *testing.T, env *testutil.TestEnv) {
				env.Media.ReturnEmptyURLs(true)
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			if tt.setup != nil {
				tt.setup(t, env)
			}

			input := tt.input
			if tt.withAvatar {
				input.AvatarPath = testutil.WriteTempImage(t, env.Config.UploadDir)
			}
			if tt.withCover {
				input.CoverImagePath = testutil.WriteTempImage(t, env.Config.UploadDir)
			}

			account, err := env.Services.Account.Register(ctx, input)

			if tt.wantStatus != 0 {
				requireAppError(t, err, tt.wantStatus)
				assert.Nil(t, account)
				return
			}

			require.NoError(t, err)
			if input.AvatarPath != "" {
				_, statErr := os.Stat(input.AvatarPath)
				assert.True(t, os.IsNotExist(statErr), "avatar temp file should be removed")
			}
			if tt.check != nil {
				tt.check(t, env, account)
			}
		})
	}
}

func TestAccountService_Register_ReportsMissingFields(t *testing.T) {
	env := testutil.NewTestEnv(t)

	_, err := env.Services.Account.Register(context.Background(), service.RegisterInput{
		Username:   "ana",
		AvatarPath: testutil.WriteTempImage(t, env.Config.UploadDir),
	})

	appErr := requireAppError(t, err, http.StatusBadRequest)
	assert.Equal(t, "All fields are required", appErr.Message)
	assert.ElementsMatch(t, []string{
		"fullName is required",
		"email is required",
		"password is required",
	}, appErr.Errors)
	assert.Zero(t, env.Media.Attempts(), "no upload should be attempted")
}

func TestAccountService_Register_LongPasswordSkipsUpload(t *testing.T) {
	env := testutil.NewTestEnv(t)

	_, err := env.Services.Account.Register(context.Background(), service.RegisterInput{
		Username:   "ana",
		FullName:   "Ana",
		Email:      "ana@x.com",
		Password:   strings.Repeat("p", 80),
		AvatarPath: testutil.WriteTempImage(t, env.Config.UploadDir),
	})

	appErr := requireAppError(t, err, http.StatusBadRequest)
	assert.Contains(t, appErr.Message, "at most 72 bytes")
	assert.Zero(t, env.Media.Attempts(), "no upload should be attempted")
}

func TestAccountService_Register_MissingAvatarSkipsUpload(t *testing.T) {
	env := testutil.NewTestEnv(t)

	_, err := env.Services.Account.Register(context.Background(), service.RegisterInput{
		Username:       "ana",
		FullName:       "Ana",
		Email:          "ana@x.com",
		Password:       "p1",
		CoverImagePath: testutil.WriteTempImage(t, env.Config.UploadDir),
	})

	requireAppError(t, err, http.StatusBadRequest)
	assert.Zero(t, env.Media.Attempts())

	_, lookupErr := env.Repos.Account.GetByUsernameOrEmail(context.Background(), "ana", "")
	assert.Error(t, lookupErr, "no account should be stored")
}

func TestAccountService_Login(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      service.LoginInput
		wantStatus int
	}{
		{
			name:  "by username",
			input: service.LoginInput{Username: "ana", Password: "secret"},
		},
		{
			name:  "by email in another case",
			input: service.LoginInput{Email: "ANA@x.com", Password: "secret"},
		},
		{
			name:       "wrong password",
			input:      service.LoginInput{Username: "ana", Password: "nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown account",
			input:      service.LoginInput{Username: "bob", Password: "secret"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "no identifier",
			input:      service.LoginInput{Password: "secret"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			existing, _ := testutil.NewAccountBuilder().
				WithUsername("ana").
				WithEmail("ana@x.com").
				WithPassword("secret").
				Build(t, env.Repos.Account)

			result, err := env.Services.Account.Login(ctx, tt.input)

			stored, lookupErr := env.Repos.Account.GetByID(ctx, existing.ID)
			require.NoError(t, lookupErr)

			if tt.wantStatus != 0 {
				requireAppError(t, err, tt.wantStatus)
				assert.Nil(t, result)
				assert.Empty(t, stored.RefreshToken, "no token may be stored on failure")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, existing.ID, result.Account.ID)
			assert.Empty(t, result.Account.PasswordHash)
			assert.Empty(t, result.Account.RefreshToken)
			assert.NotEmpty(t, result.Tokens.AccessToken)
			assert.NotEmpty(t, result.Tokens.RefreshToken)
			assert.Equal(t, result.Tokens.RefreshToken, stored.RefreshToken)

			claims, err := env.Services.Account.ValidateAccessToken(result.Tokens.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, existing.ID, claims.AccountID())
			assert.Equal(t, "ana", claims.Username)
		})
	}
}

func TestAccountService_LoginThrottling(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t, testutil.WithLoginLimiter())
	testutil.NewAccountBuilder().WithUsername("ana").WithPassword("secret").Build(t, env.Repos.Account)

	accounts := env.Services.Account
	for i := 0; i < env.Config.LoginMaxAttempts; i++ {
		_, err := accounts.Login(ctx, service.LoginInput{Username: "ana", Password: "wrong"})
		requireAppError(t, err, http.StatusUnauthorized)
	}

	_, err := accounts.Login(ctx, service.LoginInput{Username: "ana", Password: "secret"})
	requireAppError(t, err, http.StatusTooManyRequests)

	env.Redis.FastForward(env.Config.LoginWindow + time.Second)

	_, err = accounts.Login(ctx, service.LoginInput{Username: "ana", Password: "secret"})
	require.NoError(t, err)
}

func TestAccountService_LoginThrottling_AlternatingIdentifiers(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t, testutil.WithLoginLimiter())
	testutil.NewAccountBuilder().WithUsername("ana").WithEmail("ana@x.com").WithPassword("secret").Build(t, env.Repos.Account)

	accounts := env.Services.Account
	attempts := []service.LoginInput{
		{Username: "ana", Password: "wrong"},
		{Email: "ana@x.com", Password: "wrong"},
		{Username: "ANA", Password: "wrong"},
	}
	require.Len(t, attempts, env.Config.LoginMaxAttempts)
	for _, input := range attempts {
		_, err := accounts.Login(ctx, input)
		requireAppError(t, err, http.StatusUnauthorized)
	}

	_, err := accounts.Login(ctx, service.LoginInput{Email: "ana@x.com", Password: "secret"})
	requireAppError(t, err, http.StatusTooManyRequests)
}

func TestAccountService_LoginSuccessResetsFailures(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t, testutil.WithLoginLimiter())
	testutil.NewAccountBuilder().WithUsername("ana").WithPassword("secret").Build(t, env.Repos.Account)

	accounts := env.Services.Account
	for i := 0; i < env.Config.LoginMaxAttempts-1; i++ {
		_, err := accounts.Login(ctx, service.LoginInput{Username: "ana", Password: "wrong"})
		requireAppError(t, err, http.StatusUnauthorized)
	}

	_, err := accounts.Login(ctx, service.LoginInput{Username: "ana", Password: "secret"})
	require.NoError(t, err)

	for i := 0; i < env.Config.LoginMaxAttempts; i++ {
		_, err := accounts.Login(ctx, service.LoginInput{Username: "ana", Password: "wrong"})
		requireAppError(t, err, http.StatusUnauthorized)
	}
}

func TestAccountService_LoginLimiterUnavailable(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t, testutil.WithLoginLimiter())
	testutil.NewAccountBuilder().WithUsername("ana").WithPassword("secret").Build(t, env.Repos.Account)

	env.Redis.Close()

	_, err := env.Services.Account.Login(ctx, service.LoginInput{Username: "ana", Password: "secret"})
	require.NoError(t, err, "login must not depend on the limiter backend")
}

func TestAccountService_RefreshSession(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t)
	account, password := testutil.NewAccountBuilder().Build(t, env.Repos.Account)
	accounts := env.Services.Account

	login, err := accounts.Login(ctx, service.LoginInput{Username: account.Username, Password: password})
	require.NoError(t, err)

	refreshed, err := accounts.RefreshSession(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.RefreshToken, refreshed.RefreshToken)
	assert.NotEmpty(t, refreshed.AccessToken)

	stored, err := env.Repos.Account.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, refreshed.RefreshToken, stored.RefreshToken)

	_, err = accounts.RefreshSession(ctx, login.Tokens.RefreshToken)
	appErr := requireAppError(t, err, http.StatusUnauthorized)
	assert.Equal(t, "Refresh token is expired or used", appErr.Message)

	_, err = accounts.RefreshSession(ctx, refreshed.RefreshToken)
	require.NoError(t, err, "the latest token stays usable")
}

func TestAccountService_RefreshSession_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		configure   func(*config.Config)
		token       func(t *testing.T, env *testutil.TestEnv, login *service.LoginResult) string
		wantMessage string
	}{
		{
			name: "no token",
			token: func(t *testing.T, env *testutil.TestEnv, login *service.LoginResult) string {
				return ""
			},
			wantMessage: "Unauthorized request",
		},
		{
			name: "garbage token",
			token: func(t *testing.T, env *testutil.TestEnv, login *service.LoginResult) string {
				return "not-a-token"
			},
			wantMessage: "Refresh token is malformed",
		},
		{
			name: "access token presented as refresh token",
			token: func(t *testing.T, env *testutil.TestEnv, login *service.LoginResult) string {
				return login.Tokens.AccessToken
			},
			wantMessage: "Refresh token signature is invalid",
		},
		{
			name: "expired token",
			configure: func(cfg *config.Config) {
				cfg.RefreshTokenTTL = -time.Minute
			},
			token: func(t *testing.T, env *testutil.TestEnv, login *service.LoginResult) string {
				return login.Tokens.RefreshToken
			},
			wantMessage: "Refresh token is expired",
		},
		{
			name: "after logout",
			token: func(t *testing.T, env *testutil.TestEnv, login *service.LoginResult) string {
				require.NoError(t, env.Services.Account.Logout(ctx, login.Account.ID))
				return login.Tokens.RefreshToken
			},
			wantMessage: "Refresh token is expired or used",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []testutil.EnvOption
			if tt.configure != nil {
				opts = append(opts, testutil.WithConfig(tt.configure))
			}
			env := testutil.NewTestEnv(t, opts...)
			account, password := testutil.NewAccountBuilder().Build(t, env.Repos.Account)

			login, err := env.Services.Account.Login(ctx, service.LoginInput{Username: account.Username, Password: password})
			require.NoError(t, err)

			pair, err := env.Services.Account.RefreshSession(ctx, tt.token(t, env, login))
			appErr := requireAppError(t, err, http.StatusUnauthorized)
			assert.Equal(t, tt.wantMessage, appErr.Message)
			assert.Nil(t, pair)
		})
	}
}

func TestAccountService_RefreshSession_ConcurrentReuse(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t)
	account, password := testutil.NewAccountBuilder().Build(t, env.Repos.Account)

	login, err := env.Services.Account.Login(ctx, service.LoginInput{Username: account.Username, Password: password})
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pair, err := env.Services.Account.RefreshSession(ctx, login.Tokens.RefreshToken)
			if err != nil {
				var appErr *domain.AppError
				if assert.ErrorAs(t, err, &appErr) {
					assert.Equal(t, http.StatusUnauthorized, appErr.Status)
				}
				return
			}
			mu.Lock()
			winners = append(winners, pair.RefreshToken)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	stored, err := env.Repos.Account.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.RefreshToken)
}

func TestAccountService_Logout(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t)
	account, password := testutil.NewAccountBuilder().Build(t, env.Repos.Account)

	_, err := env.Services.Account.Login(ctx, service.LoginInput{Username: account.Username, Password: password})
	require.NoError(t, err)

	require.NoError(t, env.Services.Account.Logout(ctx, account.ID))
	require.NoError(t, env.Services.Account.Logout(ctx, account.ID), "logout is idempotent")
	require.NoError(t, env.Services.Account.Logout(ctx, "00000000-0000-0000-0000-000000000000"))

	stored, err := env.Repos.Account.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)
}

func TestAccountService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		accountID  func(account *domain.Account) string
		input      service.ChangePasswordInput
		wantStatus int
	}{
		{
			name:  "success",
			input: service.ChangePasswordInput{OldPassword: "old-secret", NewPassword: "new-secret", ConfirmPassword: "new-secret"},
		},
		{
			name:       "confirmation mismatch",
			input:      service.ChangePasswordInput{OldPassword: "old-secret", NewPassword: "new-secret", ConfirmPassword: "other"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong old password",
			input:      service.ChangePasswordInput{OldPassword: "guess", NewPassword: "new-secret", ConfirmPassword: "new-secret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "new password longer than bcrypt accepts",
			input:      service.ChangePasswordInput{OldPassword: "old-secret", NewPassword: strings.Repeat("n", 80), ConfirmPassword: strings.Repeat("n", 80)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty new password",
			input:      service.ChangePasswordInput{OldPassword: "old-secret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown account",
			accountID:  func(*domain.Account) string { return "00000000-0000-0000-0000-000000000000" },
			input:      service.ChangePasswordInput{OldPassword: "old-secret", NewPassword: "new-secret", ConfirmPassword: "new-secret"},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			account, _ := testutil.NewAccountBuilder().WithPassword("old-secret").Build(t, env.Repos.Account)
			accountID := account.ID
			if tt.accountID != nil {
				accountID = tt.accountID(account)
			}

			login, err := env.Services.Account.Login(ctx, service.LoginInput{Username: account.Username, Password: "old-secret"})
			require.NoError(t, err)

			err = env.Services.Account.ChangePassword(ctx, accountID, tt.input)

			stored, lookupErr := env.Repos.Account.GetByID(ctx, account.ID)
			require.NoError(t, lookupErr)

			if tt.wantStatus != 0 {
				requireAppError(t, err, tt.wantStatus)
				assert.Equal(t, account.PasswordHash, stored.PasswordHash, "hash must be unchanged")
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, account.PasswordHash, stored.PasswordHash)
			assert.Equal(t, login.Tokens.RefreshToken, stored.RefreshToken, "existing session is kept")

			_, err = env.Services.Account.Login(ctx, service.LoginInput{Username: account.Username, Password: "old-secret"})
			requireAppError(t, err, http.StatusUnauthorized)
			_, err = env.Services.Account.Login(ctx, service.LoginInput{Username: account.Username, Password: "new-secret"})
			require.NoError(t, err)
		})
	}
}

func TestAccountService_GetCurrentAccount(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t)
	account, _ := testutil.NewAccountBuilder().Build(t, env.Repos.Account)

	current, err := env.Services.Account.GetCurrentAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.Username, current.Username)
	assert.Empty(t, current.PasswordHash)

	_, err = env.Services.Account.GetCurrentAccount(ctx, "00000000-0000-0000-0000-000000000000")
	requireAppError(t, err, http.StatusNotFound)
}

func TestAccountService_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      service.UpdateProfileInput
		wantStatus int
		check      func(t *testing.T, account *domain.Account)
	}{
		{
			name:  "updates name and email",
			input: service.UpdateProfileInput{FullName: "Ana Maria", Email: "Ana.Maria@X.com"},
			check: func(t *testing.T, account *domain.Account) {
				assert.Equal(t, "Ana Maria", account.FullName)
				assert.Equal(t, "ana.maria@x.com", account.Email)
				assert.Empty(t, account.PasswordHash)
			},
		},
		{
			name:  "keeps own email",
			input: service.UpdateProfileInput{FullName: "Ana Maria", Email: "ana@x.com"},
			check: func(t *testing.T, account *domain.Account) {
				assert.Equal(t, "ana@x.com", account.Email)
			},
		},
		{
			name:       "email owned by another account",
			input:      service.UpdateProfileInput{FullName: "Ana", Email: "bob@x.com"},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing email",
			input:      service.UpdateProfileInput{FullName: "Ana"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing full name",
			input:      service.UpdateProfileInput{Email: "ana@x.com"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			account, _ := testutil.NewAccountBuilder().WithEmail("ana@x.com").Build(t, env.Repos.Account)
			testutil.NewAccountBuilder().WithEmail("bob@x.com").Build(t, env.Repos.Account)

			updated, err := env.Services.Account.UpdateProfile(ctx, account.ID, tt.input)

			if tt.wantStatus != 0 {
				requireAppError(t, err, tt.wantStatus)
				stored, lookupErr := env.Repos.Account.GetByID(ctx, account.ID)
				require.NoError(t, lookupErr)
				assert.Equal(t, "ana@x.com", stored.Email)
				return
			}

			require.NoError(t, err)
			tt.check(t, updated)
		})
	}
}

func TestAccountService_UpdateAvatar(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces and deletes previous object", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		account, _ := testutil.NewAccountBuilder().Build(t, env.Repos.Account)
		path := testutil.WriteTempImage(t, env.Config.UploadDir)

		updated, err := env.Services.Account.UpdateAvatar(ctx, account.ID, path)
		require.NoError(t, err)
		assert.NotEmpty(t, updated.AvatarURL)
		assert.NotEqual(t, account.AvatarURL, updated.AvatarURL)
		assert.Equal(t, []string{account.AvatarURL}, env.Media.Deleted())

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("previous object deletion failure is not surfaced", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		account, _ := testutil.NewAccountBuilder().Build(t, env.Repos.Account)
		env.Media.FailDeletes(true)

		updated, err := env.Services.Account.UpdateAvatar(ctx, account.ID, testutil.WriteTempImage(t, env.Config.UploadDir))
		require.NoError(t, err)
		assert.NotEqual(t, account.AvatarURL, updated.AvatarURL)
	})

	t.Run("missing file", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		account, _ := testutil.NewAccountBuilder().Build(t, env.Repos.Account)

		_, err := env.Services.Account.UpdateAvatar(ctx, account.ID, "")
		requireAppError(t, err, http.StatusBadRequest)
		assert.Zero(t, env.Media.Attempts())
	})

	t.Run("upload failure leaves account untouched", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		account, _ := testutil.NewAccountBuilder().Build(t, env.Repos.Account)
		env.Media.ReturnEmptyURLs(true)

		_, err := env.Services.Account.UpdateAvatar(ctx, account.ID, testutil.WriteTempImage(t, env.Config.UploadDir))
		requireAppError(t, err, http.StatusBadRequest)

		stored, lookupErr := env.Repos.Account.GetByID(ctx, account.ID)
		require.NoError(t, lookupErr)
		assert.Equal(t, account.AvatarURL, stored.AvatarURL)
		assert.Empty(t, env.Media.Deleted())
	})

	t.Run("unknown account", func(t *testing.T) {
		env := testutil.NewTestEnv(t)

		_, err := env.Services.Account.UpdateAvatar(ctx, "00000000-0000-0000-0000-000000000000",
			testutil.WriteTempImage(t, env.Config.UploadDir))
		requireAppError(t, err, http.StatusNotFound)
	})
}

func TestAccountService_UpdateCoverImage(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t)
	account, _ := testutil.NewAccountBuilder().Build(t, env.Repos.Account)

	first, err := env.Services.Account.UpdateCoverImage(ctx, account.ID, testutil.WriteTempImage(t, env.Config.UploadDir))
	require.NoError(t, err)
	assert.NotEmpty(t, first.CoverImageURL)
	assert.Equal(t, account.AvatarURL, first.AvatarURL)
	assert.Empty(t, env.Media.Deleted(), "nothing to delete without a previous cover")

	second, err := env.Services.Account.UpdateCoverImage(ctx, account.ID, testutil.WriteTempImage(t, env.Config.UploadDir))
	require.NoError(t, err)
	assert.Equal(t, []string{first.CoverImageURL}, env.Media.Deleted())
	assert.NotEqual(t, first.CoverImageURL, second.CoverImageURL)

	_, err = env.Services.Account.UpdateCoverImage(ctx, account.ID, "")
	requireAppError(t, err, http.StatusBadRequest)
}

func TestAccountService_ValidateAccessToken(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestEnv(t)
	account, password := testutil.NewAccountBuilder().Build(t, env.Repos.Account)

	login, err := env.Services.Account.Login(ctx, service.LoginInput{Username: account.Username, Password: password})
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "access token", token: login.Tokens.AccessToken},
		{name: "refresh token", token: login.Tokens.RefreshToken, wantErr: true},
		{name: "empty", token: "", wantErr: true},
		{name: "garbage", token: "abc.def.ghi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := env.Services.Account.ValidateAccessToken(tt.token)
			if tt.wantErr {
				requireAppError(t, err, http.StatusUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, account.ID, claims.AccountID())
		})
	}
}
