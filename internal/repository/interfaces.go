package repository

import (
	"context"
	"errors"

	"github.com/dom/account-backend/internal/domain"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

type AccountRepository interface {
	// Create assigns the account a new id and timestamps before storing it.
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByUsernameOrEmail matches either selector; empty selectors are ignored.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.Account, error)
	Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken replaces the stored refresh token only while it still
	// equals expected. It reports whether the swap happened.
	RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
}

type Repositories struct {
	Account AccountRepository
}
