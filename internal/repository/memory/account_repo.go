// Package memory is an in-process AccountRepository used by tests and by
// STORE_DRIVER=memory for local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/repository"
	"github.com/google/uuid"
)

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

func NewAccountRepository() *accountRepository {
	return &accountRepository{accounts: make(map[string]domain.Account)}
}

func NewRepositories() *repository.Repositories {
	return &repository.Repositories{Account: NewAccountRepository()}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return repository.ErrDuplicate
		}
	}

	now := time.Now().UTC()
	account.ID = uuid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &account, nil
}

func (r *accountRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.Account, error) {
	if username == "" && email == "" {
		return nil, repository.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if (username != "" && account.Username == username) || (email != "" && account.Email == email) {
			found := account
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *accountRepository) Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	if patch.Email != nil {
		for otherID, other := range r.accounts {
			if otherID != id && other.Email == *patch.Email {
				return nil, repository.ErrDuplicate
			}
		}
		account.Email = *patch.Email
	}
	if patch.FullName != nil {
		account.FullName = *patch.FullName
	}
	if patch.AvatarURL != nil {
		account.AvatarURL = *patch.AvatarURL
	}
	if patch.CoverImageURL != nil {
		account.CoverImageURL = *patch.CoverImageURL
	}
	if patch.PasswordHash != nil {
		account.PasswordHash = *patch.PasswordHash
	}
	account.UpdatedAt = time.Now().UTC()
	r.accounts[id] = account

	return &account, nil
}

func (r *accountRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.RefreshToken = token
	r.accounts[id] = account
	return nil
}

func (r *accountRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok || account.RefreshToken != expected {
		return false, nil
	}
	account.RefreshToken = next
	r.accounts[id] = account
	return true, nil
}
