package mongo

import (
	"context"
	"time"

	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type accountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *accountRepository {
	return &accountRepository{collection: db.Collection(accountsCollection)}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	account.ID = uuid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return errors.Wrap(err, "insert account failed")
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *accountRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.Account, error) {
	var selectors bson.A
	if username != "" {
		selectors = append(selectors, bson.M{"username": username})
	}
	if email != "" {
		selectors = append(selectors, bson.M{"email": email})
	}
	if len(selectors) == 0 {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"$or": selectors})
}

func (r *accountRepository) Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	set := bson.M{"updatedAt": time.Now().UTC().Truncate(time.Millisecond)}
	if patch.FullName != nil {
		set["fullName"] = *patch.FullName
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.AvatarURL != nil {
		set["avatarUrl"] = *patch.AvatarURL
	}
	if patch.CoverImageURL != nil {
		set["coverImageUrl"] = *patch.CoverImageURL
	}
	if patch.PasswordHash != nil {
		set["passwordHash"] = *patch.PasswordHash
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var account domain.Account
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&account)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, repository.ErrDuplicate
	case err != nil:
		return nil, errors.Wrap(err, "update account failed")
	}
	return &account, nil
}

func (r *accountRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"refreshToken": token}})
	if err != nil {
		return errors.Wrap(err, "set refresh token failed")
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "refreshToken": expected},
		bson.M{"$set": bson.M{"refreshToken": next}},
	)
	if err != nil {
		return false, errors.Wrap(err, "rotate refresh token failed")
	}
	return result.MatchedCount == 1, nil
}

func (r *accountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var account domain.Account
	err := r.collection.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "find account failed")
	}
	return &account, nil
}
