package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC()
	account.ID = uuid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	return translate(r.db.WithContext(ctx).Create(account).Error)
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	var account domain.Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *accountRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.Account, error) {
	query := r.db.WithContext(ctx)
	switch {
	case username != "" && email != "":
		query = query.Where("username = ? OR email = ?", username, email)
	case username != "":
		query = query.Where("username = ?", username)
	case email != "":
		query = query.Where("email = ?", email)
	default:
		return nil, repository.ErrNotFound
	}

	var account domain.Account
	if err := query.First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *accountRepository) Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if patch.FullName != nil {
		fields["full_name"] = *patch.FullName
	}
	if patch.Email != nil {
		fields["email"] = *patch.Email
	}
	if patch.AvatarURL != nil {
		fields["avatar_url"] = *patch.AvatarURL
	}
	if patch.CoverImageURL != nil {
		fields["cover_image_url"] = *patch.CoverImageURL
	}
	if patch.PasswordHash != nil {
		fields["password_hash"] = *patch.PasswordHash
	}

	result := r.db.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *accountRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}

	result := r.db.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Update("refresh_token", token)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND refresh_token = ?", id, expected).
		Update("refresh_token", next)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repository.ErrDuplicate
	default:
		return err
	}
}
