package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/auth"
	"github.com/tallyhq/tallycrm-backend/pkg/config"
	"github.com/tallyhq/tallycrm-backend/pkg/db"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TenantBootstrapper seeds the rows every new account starts with.
type TenantBootstrapper interface {
	BootstrapTenant(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) error
}

// ServiceParams groups dependencies for the accounts service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Bootstrappers     []TenantBootstrapper
	JWT               config.JWTConfig
	Password          config.PasswordConfig
}

// Service orchestrates registration, login and profile management.
type Service struct {
	repo          Repository
	txRunner      txRunner
	bootstrappers []TenantBootstrapper
	jwtCfg        config.JWTConfig
	passwordCfg   config.PasswordConfig
}

// NewService builds an accounts service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &Service{
		repo:          params.Repo,
		txRunner:      params.TransactionRunner,
		bootstrappers: params.Bootstrappers,
		jwtCfg:        params.JWT,
		passwordCfg:   params.Password,
	}, nil
}

// RegisterInput carries the fields accepted at signup.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName *string
}

// Register creates a user plus the tenant defaults (free subscription,
// starter pipeline) in one transaction.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		CompanyName:  input.CompanyName,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if txErr := s.repo.WithTx(tx).Create(ctx, user); txErr != nil {
			if db.IsUniqueViolation(txErr, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return txErr
		}
		for _, b := range s.bootstrappers {
			if txErr := b.BootstrapTenant(ctx, tx, user.ID); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LoginResult bundles the authenticated user with a fresh access token.
type LoginResult struct {
	User  *models.User
	Token string
}

// Login verifies credentials and mints an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := auth.MintAccessToken(s.jwtCfg, time.Now(), auth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &LoginResult{User: user, Token: token}, nil
}

// GetProfile loads the user by id.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return user, nil
}

// ProfileUpdate carries optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	FirstName       *string
	LastName        *string
	CompanyName     *string
	ResendAPIKey    *string
	ResendFromEmail *string
	ResendFromName  *string
}

// UpdateProfile applies partial profile changes, including per-tenant
// email credentials.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}
	if update.CompanyName != nil {
		user.CompanyName = update.CompanyName
	}
	if update.ResendAPIKey != nil {
		user.ResendAPIKey = update.ResendAPIKey
	}
	if update.ResendFromEmail != nil {
		user.ResendFromEmail = update.ResendFromEmail
	}
	if update.ResendFromName != nil {
		user.ResendFromName = update.ResendFromName
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword re-hashes after verifying the current password.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if len(next) < 8 {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is incorrect")
	}
	hash, err := security.HashPassword(next, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user.PasswordHash = hash
	return s.repo.Update(ctx, user)
}
