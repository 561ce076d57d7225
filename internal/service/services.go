package service

import (
	"github.com/dom/account-backend/internal/auth"
	"github.com/dom/account-backend/internal/config"
	"github.com/dom/account-backend/internal/repository"
	"go.uber.org/zap"
)

type Services struct {
	Account *AccountService
}

// NewServices builds the service layer. limiter may be nil.
func NewServices(repos *repository.Repositories, media MediaStore, limiter LoginLimiter, cfg *config.Config, logger *zap.Logger) *Services {
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	passwords := auth.NewPasswordHasher(cfg.BcryptCost)

	return &Services{
		Account: NewAccountService(repos.Account, tokens, passwords, media, limiter, logger),
	}
}
