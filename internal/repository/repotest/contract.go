// Package repotest holds the behavioral suite every AccountRepository
// implementation runs in its own tests.
package repotest

import (
	"context"
	"sync"
	"testing"

	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository. Implementations backed by a shared
// database must truncate it before returning.
type Factory func(t *testing.T) repository.AccountRepository

func newAccount(username string) *domain.Account {
	return &domain.Account{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: "hash",
		AvatarURL:    "https://media.example.com/avatars/" + username + ".png",
	}
}

func RunAccountRepositoryContract(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("create assigns id", func(t *testing.T) {
		repo := factory(t)
		account := newAccount("ana")

		require.NoError(t, repo.Create(ctx, account))
		assert.NotEmpty(t, account.ID)
		assert.False(t, account.CreatedAt.IsZero())

		got, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana", got.Username)
		assert.Equal(t, "ana@example.com", got.Email)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.Empty(t, got.CoverImageURL)
		assert.Empty(t, got.RefreshToken)
	})

	t.Run("create rejects duplicate username and email", func(t *testing.T) {
		repo := factory(t)
		require.NoError(t, repo.Create(ctx, newAccount("ana")))

		sameUsername := newAccount("ana")
		sameUsername.Email = "other@example.com"
		assert.ErrorIs(t, repo.Create(ctx, sameUsername), repository.ErrDuplicate)

		sameEmail := newAccount("bob")
		sameEmail.Email = "ana@example.com"
		assert.ErrorIs(t, repo.Create(ctx, sameEmail), repository.ErrDuplicate)
	})

	t.Run("get by id missing", func(t *testing.T) {
		repo := factory(t)
		_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("get by username or email", func(t *testing.T) {
		repo := factory(t)
		account := newAccount("ana")
		require.NoError(t, repo.Create(ctx, account))

		tests := []struct {
			name     string
			username string
			email    string
			wantErr  error
		}{
			{name: "by username", username: "ana"},
			{name: "by email", email: "ana@example.com"},
			{name: "either matches", username: "nobody", email: "ana@example.com"},
			{name: "no match", username: "nobody", email: "nobody@example.com", wantErr: repository.ErrNotFound},
			{name: "empty selectors", wantErr: repository.ErrNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.GetByUsernameOrEmail(ctx, tt.username, tt.email)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, account.ID, got.ID)
			})
		}
	})

	t.Run("update applies only set fields", func(t *testing.T) {
		repo := factory(t)
		account := newAccount("ana")
		require.NoError(t, repo.Create(ctx, account))

		fullName := "Ana Maria"
		cover := "https://media.example.com/covers/ana.png"
		got, err := repo.Update(ctx, account.ID, domain.AccountPatch{FullName: &fullName, CoverImageURL: &cover})
		require.NoError(t, err)

		assert.Equal(t, "Ana Maria", got.FullName)
		assert.Equal(t, cover, got.CoverImageURL)
		assert.Equal(t, "ana@example.com", got.Email)
		assert.Equal(t, account.AvatarURL, got.AvatarURL)
	})

	t.Run("update email collision", func(t *testing.T) {
		repo := factory(t)
		ana := newAccount("ana")
		require.NoError(t, repo.Create(ctx, ana))
		require.NoError(t, repo.Create(ctx, newAccount("bob")))

		email := "bob@example.com"
		_, err := repo.Update(ctx, ana.ID, domain.AccountPatch{Email: &email})
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("update missing account", func(t *testing.T) {
		repo := factory(t)
		fullName := "Ghost"
		_, err := repo.Update(ctx, "00000000-0000-0000-0000-000000000000", domain.AccountPatch{FullName: &fullName})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("set refresh token overwrites and clears", func(t *testing.T) {
		repo := factory(t)
		account := newAccount("ana")
		require.NoError(t, repo.Create(ctx, account))

		require.NoError(t, repo.SetRefreshToken(ctx, account.ID, "first"))
		require.NoError(t, repo.SetRefreshToken(ctx, account.ID, "second"))
		got, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "second", got.RefreshToken)

		require.NoError(t, repo.SetRefreshToken(ctx, account.ID, ""))
		require.NoError(t, repo.SetRefreshToken(ctx, account.ID, ""))
		got, err = repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Empty(t, got.RefreshToken)
	})

	t.Run("rotate refresh token is compare and swap", func(t *testing.T) {
		repo := factory(t)
		account := newAccount("ana")
		require.NoError(t, repo.Create(ctx, account))
		require.NoError(t, repo.SetRefreshToken(ctx, account.ID, "current"))

		swapped, err := repo.RotateRefreshToken(ctx, account.ID, "stale", "next")
		require.NoError(t, err)
		assert.False(t, swapped)

		swapped, err = repo.RotateRefreshToken(ctx, account.ID, "current", "next")
		require.NoError(t, err)
		assert.True(t, swapped)

		got, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "next", got.RefreshToken)
	})

	t.Run("concurrent rotations have one winner", func(t *testing.T) {
		repo := factory(t)
		account := newAccount("ana")
		require.NoError(t, repo.Create(ctx, account))
		require.NoError(t, repo.SetRefreshToken(ctx, account.ID, "shared"))

		const racers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				swapped, err := repo.RotateRefreshToken(ctx, account.ID, "shared", "next-"+string(rune('a'+i)))
				assert.NoError(t, err)
				if swapped {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})
}
